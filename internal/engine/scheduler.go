package engine

import (
	"sync"
	"time"
)

// dispatchScheduler owns the single deferred hand-off timer. Arming always
// cancels the previous timer first, so at most one is outstanding.
type dispatchScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Arm schedules fn after delay, replacing any pending timer.
func (s *dispatchScheduler) Arm(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, fn)
}

// Cancel stops any pending timer. Idempotent; a cancelled fn never runs.
func (s *dispatchScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
