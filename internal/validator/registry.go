// Package validator contains the built-in gate validators and the ordered
// registry the gate engine executes them from. Validators are registered
// statically at startup; there is no reflection-based discovery.
package validator

import (
	"sort"

	"github.com/gatewright/gatewright/internal/domain/gate"
)

// GateNames maps gate numbers to display names.
var GateNames = map[int]string{
	0: "structure",
	1: "content",
	2: "tests",
}

// Registry holds validators grouped by gate, ordered by (gate, order).
type Registry struct {
	byGate map[int][]gate.Validator
	gates  []int
}

// NewRegistry builds a registry from the given validators.
func NewRegistry(validators ...gate.Validator) *Registry {
	byGate := make(map[int][]gate.Validator)
	for _, v := range validators {
		byGate[v.Gate()] = append(byGate[v.Gate()], v)
	}

	var gates []int
	for g, vs := range byGate {
		sort.Slice(vs, func(i, j int) bool { return vs[i].Order() < vs[j].Order() })
		gates = append(gates, g)
	}
	sort.Ints(gates)

	return &Registry{byGate: byGate, gates: gates}
}

// Defaults returns a registry with all built-in validators.
func Defaults() *Registry {
	return NewRegistry(
		&ManifestPresent{},
		&SpecFileLocated{},
		&ForbiddenPatterns{},
		&IncompleteCode{},
		&FileSizeAdvisory{},
		&TestNaming{},
		&DangerModeAdvisory{},
	)
}

// Gates returns the gate numbers in ascending order.
func (r *Registry) Gates() []int {
	return r.gates
}

// ForGate returns the validators of one gate in declared order.
func (r *Registry) ForGate(n int) []gate.Validator {
	return r.byGate[n]
}

// GateName returns the display name for a gate number.
func (r *Registry) GateName(n int) string {
	return GateNames[n]
}
