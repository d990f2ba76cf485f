package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errDiskFull = errors.New("write cache file: no space left on device")

func newTestBreaker(timeout time.Duration) *Breaker {
	return New(Config{
		Name:             "flush",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          timeout,
	})
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := newTestBreaker(time.Minute)

	if err := b.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("Expected closed state, got %v", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker(time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Call(func() error { return errDiskFull }); !errors.Is(err, errDiskFull) {
			t.Errorf("Expected the commit error to pass through, got %v", err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("Expected open state, got %v", b.State())
	}

	// Open breaker rejects without running the function.
	ran := false
	err := b.Call(func() error { ran = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got %v", err)
	}
	if ran {
		t.Error("Expected the attempt to be rejected before running")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(time.Minute)

	b.Call(func() error { return errDiskFull })
	b.Call(func() error { return nil })
	b.Call(func() error { return errDiskFull })

	if b.State() != StateClosed {
		t.Errorf("Expected non-consecutive failures to leave the breaker closed, got %v", b.State())
	}
}

func TestBreaker_HalfOpenProbeAfterTimeout(t *testing.T) {
	b := newTestBreaker(30 * time.Millisecond)

	b.Call(func() error { return errDiskFull })
	b.Call(func() error { return errDiskFull })
	if b.State() != StateOpen {
		t.Fatalf("Expected open state, got %v", b.State())
	}

	time.Sleep(50 * time.Millisecond)

	if err := b.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected half-open probe to run, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("Expected half-open state after one probe success, got %v", b.State())
	}
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := newTestBreaker(30 * time.Millisecond)

	b.Call(func() error { return errDiskFull })
	b.Call(func() error { return errDiskFull })
	time.Sleep(50 * time.Millisecond)

	b.Call(func() error { return nil })
	b.Call(func() error { return nil })

	if b.State() != StateClosed {
		t.Errorf("Expected closed state after recovery, got %v", b.State())
	}
}

func TestBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	b := newTestBreaker(30 * time.Millisecond)

	b.Call(func() error { return errDiskFull })
	b.Call(func() error { return errDiskFull })
	time.Sleep(50 * time.Millisecond)

	b.Call(func() error { return errDiskFull })

	if b.State() != StateOpen {
		t.Errorf("Expected failed probe to reopen the breaker, got %v", b.State())
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New(Config{Name: "defaults"})
	if b.failureThreshold != 5 || b.successThreshold != 2 || b.timeout != 60*time.Second {
		t.Errorf("Unexpected defaults: %d/%d/%v", b.failureThreshold, b.successThreshold, b.timeout)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}
