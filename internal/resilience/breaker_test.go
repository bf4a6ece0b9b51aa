package resilience

import (
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("backend unreachable")

func TestClosedStateAllowsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)
	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for range 3 {
		_ = b.Execute(func() error { return errTest })
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while open")
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Execute(func() error { return errTest })
	}

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", b.State())
	}

	called := false
	err = b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error in half-open, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called in half-open")
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after half-open success, got %s", b.State())
	}
}

func TestHalfOpenAllowsSingleTrial(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errTest })
	now = now.Add(2 * time.Second)

	var inner error
	outer := b.Execute(func() error {
		// A second caller arriving while the trial is in flight is rejected.
		inner = b.Execute(func() error { return nil })
		return nil
	})
	if outer != nil {
		t.Fatalf("expected trial call to succeed, got %v", outer)
	}
	if !errors.Is(inner, ErrCircuitOpen) {
		t.Fatalf("expected concurrent trial to be rejected, got %v", inner)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Execute(func() error { return errTest })
	}

	now = now.Add(2 * time.Second)

	_ = b.Execute(func() error { return errTest })

	b.mu.Lock()
	if b.state != StateOpen {
		t.Fatalf("expected state open after half-open failure, got %s", b.state)
	}
	b.mu.Unlock()

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after reopen, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)

	_ = b.Execute(func() error { return errTest })
	_ = b.Execute(func() error { return errTest })

	_ = b.Execute(func() error { return nil })

	_ = b.Execute(func() error { return errTest })
	_ = b.Execute(func() error { return errTest })

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestStaleCallDoesNotDecideTrial(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	// A slow call admitted while the circuit is still closed.
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	slowDone := make(chan error, 1)
	go func() {
		slowDone <- b.Execute(func() error {
			close(slowStarted)
			<-releaseSlow
			return nil
		})
	}()
	<-slowStarted

	_ = b.Execute(func() error { return errTest })
	now = now.Add(2 * time.Second)

	trialStarted := make(chan struct{})
	releaseTrial := make(chan struct{})
	trialDone := make(chan error, 1)
	go func() {
		trialDone <- b.Execute(func() error {
			close(trialStarted)
			<-releaseTrial
			return errTest
		})
	}()
	<-trialStarted

	close(releaseSlow)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow call: unexpected error %v", err)
	}

	if b.State() != StateHalfOpen {
		t.Fatalf("stale success must not close the circuit, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected a second trial to be rejected, got %v", err)
	}

	close(releaseTrial)
	if err := <-trialDone; !errors.Is(err, errTest) {
		t.Fatalf("trial: expected errTest, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("failed trial must reopen the circuit, got %s", b.State())
	}
}
