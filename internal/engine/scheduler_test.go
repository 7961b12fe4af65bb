package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFiresOnce(t *testing.T) {
	var fired atomic.Int32
	var s dispatchScheduler

	s.Arm(10*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected exactly one fire, got %d", got)
	}
}

func TestSchedulerCancelPreventsFire(t *testing.T) {
	var fired atomic.Int32
	var s dispatchScheduler

	s.Arm(50*time.Millisecond, func() { fired.Add(1) })
	s.Cancel()

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("expected no fire after cancel, got %d", got)
	}
}

func TestSchedulerCancelIsIdempotent(t *testing.T) {
	var s dispatchScheduler
	s.Cancel()
	s.Arm(time.Hour, func() {})
	s.Cancel()
	s.Cancel()
}

func TestSchedulerRearmReplacesPendingTimer(t *testing.T) {
	var first, second atomic.Int32
	var s dispatchScheduler

	s.Arm(time.Hour, func() { first.Add(1) })
	s.Arm(10*time.Millisecond, func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := first.Load(); got != 0 {
		t.Fatalf("expected replaced timer to never fire, got %d", got)
	}
	if got := second.Load(); got != 1 {
		t.Fatalf("expected replacement timer to fire once, got %d", got)
	}
}
