package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failingN(n int) func() error {
	count := 0
	return func() error {
		count++
		if count <= n {
			return errBoom
		}
		return nil
	}
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	for range 10 {
		if err := b.Execute(func() error { return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	for range 3 {
		_ = b.Execute(func() error { return errBoom })
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker should fail fast, got %v", err)
	}
}

func TestBreakerHalfOpenProbeRecovers(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	base := time.Now()
	b.now = func() time.Time { return base }

	_ = b.Execute(func() error { return errBoom })
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	// After the cooldown a probe is allowed and success closes the circuit.
	b.now = func() time.Time { return base.Add(2 * time.Minute) }
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should run, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("successful probe should close the circuit, got %s", b.State())
	}
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	base := time.Now()
	b.now = func() time.Time { return base }

	_ = b.Execute(func() error { return errBoom })
	b.now = func() time.Time { return base.Add(2 * time.Minute) }

	if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("probe should run the call, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("failed probe should reopen, got %s", b.State())
	}
}

func TestBreakerFailureCountResetsOnSuccess(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	fn := failingN(2)
	_ = b.Execute(fn)
	_ = b.Execute(fn)
	if err := b.Execute(fn); err != nil {
		t.Fatal(err)
	}
	// Two more failures should not open the circuit (threshold is 3).
	_ = b.Execute(func() error { return errBoom })
	_ = b.Execute(func() error { return errBoom })
	if b.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", b.State())
	}
}
