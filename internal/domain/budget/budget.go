// Package budget implements token-spend accounting for agent pipeline phases.
package budget

// Status is the verdict of a budget check.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusExceeded Status = "exceeded"
)

// DefaultWarnRatio is the fraction of the limit at which warnings start.
const DefaultWarnRatio = 0.8

// Budget is a per-phase ceiling on cumulative input tokens.
// A Limit of 0 disables all checks.
type Budget struct {
	Limit     int64   `json:"limit" yaml:"limit"`
	WarnRatio float64 `json:"warn_ratio,omitempty" yaml:"warn_ratio,omitempty"`
}

// Check is the result of evaluating cumulative usage against a Budget.
type Check struct {
	Status      Status  `json:"status"`
	PercentUsed float64 `json:"percent_used"`
	Limit       int64   `json:"limit"`
	Used        int64   `json:"used"`
}

// Evaluate returns the budget status for the given cumulative input tokens.
// Usage strictly above the limit is exceeded; usage at or above the warn
// threshold (but within the limit) is a warning.
func (b Budget) Evaluate(cumulativeIn int64) Check {
	if b.Limit <= 0 {
		return Check{Status: StatusOK, Limit: b.Limit, Used: cumulativeIn}
	}

	ratio := b.WarnRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultWarnRatio
	}

	pct := float64(cumulativeIn) / float64(b.Limit) * 100
	c := Check{PercentUsed: pct, Limit: b.Limit, Used: cumulativeIn}

	switch {
	case cumulativeIn > b.Limit:
		c.Status = StatusExceeded
	case pct >= ratio*100:
		c.Status = StatusWarning
	default:
		c.Status = StatusOK
	}
	return c
}
