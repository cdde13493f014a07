package budget_test

import (
	"testing"

	"github.com/gatewright/gatewright/internal/domain/budget"
)

func TestEvaluateUnderThreshold(t *testing.T) {
	b := budget.Budget{Limit: 10000}
	c := b.Evaluate(5000)
	if c.Status != budget.StatusOK {
		t.Fatalf("expected ok, got %q", c.Status)
	}
	if c.PercentUsed != 50 {
		t.Errorf("expected 50%%, got %v", c.PercentUsed)
	}
}

func TestEvaluateWarningAtThreshold(t *testing.T) {
	b := budget.Budget{Limit: 10000}
	c := b.Evaluate(8500)
	if c.Status != budget.StatusWarning {
		t.Fatalf("expected warning, got %q", c.Status)
	}
	if c.PercentUsed != 85 {
		t.Errorf("expected 85%%, got %v", c.PercentUsed)
	}
}

func TestEvaluateExactLimitIsWarningNotExceeded(t *testing.T) {
	b := budget.Budget{Limit: 10000}
	c := b.Evaluate(10000)
	if c.Status != budget.StatusWarning {
		t.Fatalf("usage == limit should warn, not exceed; got %q", c.Status)
	}
}

func TestEvaluateExceeded(t *testing.T) {
	b := budget.Budget{Limit: 10000}
	c := b.Evaluate(11000)
	if c.Status != budget.StatusExceeded {
		t.Fatalf("expected exceeded, got %q", c.Status)
	}
	if c.PercentUsed != 110 {
		t.Errorf("expected 110%%, got %v", c.PercentUsed)
	}
}

func TestEvaluateZeroLimitDisablesChecks(t *testing.T) {
	b := budget.Budget{Limit: 0}
	if c := b.Evaluate(999999); c.Status != budget.StatusOK {
		t.Fatalf("limit 0 must disable checks, got %q", c.Status)
	}
}

func TestEvaluateCustomWarnRatio(t *testing.T) {
	b := budget.Budget{Limit: 1000, WarnRatio: 0.5}
	if c := b.Evaluate(400); c.Status != budget.StatusOK {
		t.Errorf("40%% under 0.5 ratio should be ok, got %q", c.Status)
	}
	if c := b.Evaluate(500); c.Status != budget.StatusWarning {
		t.Errorf("50%% at 0.5 ratio should warn, got %q", c.Status)
	}
}

func TestEvaluateInvalidWarnRatioFallsBack(t *testing.T) {
	b := budget.Budget{Limit: 1000, WarnRatio: 1.5}
	if c := b.Evaluate(800); c.Status != budget.StatusWarning {
		t.Errorf("invalid ratio should fall back to 0.8, got %q", c.Status)
	}
}
