package gate_test

import (
	"testing"

	"github.com/gatewright/gatewright/internal/domain/gate"
)

func vr(code string, status gate.ValidatorStatus, hard bool) gate.ValidatorResult {
	return gate.ValidatorResult{Code: code, Name: code, Status: status, HardBlock: hard}
}

func TestAggregateAllPassed(t *testing.T) {
	gr := gate.Aggregate(0, "structure", []gate.ValidatorResult{
		vr("a", gate.StatusPassed, true),
		vr("b", gate.StatusSkipped, false),
	}, false)
	if !gr.Passed {
		t.Fatal("expected gate to pass")
	}
	if gr.PassedCount != 2 || gr.FailedCount != 0 || gr.WarningCount != 0 {
		t.Errorf("unexpected counts: %+v", gr)
	}
}

func TestAggregateHardBlockFailureFailsGate(t *testing.T) {
	gr := gate.Aggregate(1, "", []gate.ValidatorResult{
		vr("a", gate.StatusPassed, true),
		vr("b", gate.StatusFailed, true),
		vr("c", gate.StatusWarning, false),
	}, false)
	if gr.Passed {
		t.Fatal("hard-block failure must fail the gate")
	}
	if gr.FailedCount != 1 || gr.WarningCount != 1 || gr.PassedCount != 1 {
		t.Errorf("unexpected counts: %+v", gr)
	}
}

func TestAggregateSoftFailureDoesNotBlock(t *testing.T) {
	gr := gate.Aggregate(1, "", []gate.ValidatorResult{
		vr("soft", gate.StatusFailed, false),
	}, false)
	if !gr.Passed {
		t.Fatal("soft validator failure must not block the gate")
	}
	if gr.FailedCount != 1 {
		t.Errorf("failure should still be counted: %+v", gr)
	}
}

func TestAggregateWarningNeverBlocksByDefault(t *testing.T) {
	gr := gate.Aggregate(2, "", []gate.ValidatorResult{
		vr("hard", gate.StatusWarning, true),
	}, false)
	if !gr.Passed {
		t.Fatal("warnings must not block without promotion policy")
	}
}

func TestAggregatePromoteWarningsHardBlockOnly(t *testing.T) {
	gr := gate.Aggregate(2, "", []gate.ValidatorResult{
		vr("hard", gate.StatusWarning, true),
	}, true)
	if gr.Passed {
		t.Fatal("promoted warning from hard-block validator must fail the gate")
	}

	gr = gate.Aggregate(2, "", []gate.ValidatorResult{
		vr("soft", gate.StatusWarning, false),
	}, true)
	if !gr.Passed {
		t.Fatal("promotion applies to hard-block validators only")
	}
}

func TestValidatorResultPassed(t *testing.T) {
	if !vr("a", gate.StatusPassed, false).Passed() {
		t.Error("PASSED should count as passed")
	}
	if !vr("a", gate.StatusSkipped, false).Passed() {
		t.Error("SKIPPED should count as passed")
	}
	if vr("a", gate.StatusFailed, false).Passed() {
		t.Error("FAILED should not count as passed")
	}
	if vr("a", gate.StatusWarning, false).Passed() {
		t.Error("WARNING should not count as passed")
	}
}
