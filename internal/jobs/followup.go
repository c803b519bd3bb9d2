package jobs

import (
	"log"
	"sync"
	"time"
)

// FollowUpScheduler arms one-shot post-delivery timers keyed by user id.
// Scheduling again for the same user replaces the pending timer, so a
// second order never produces two follow-ups; canceling a user whose timer
// already fired (or never existed) is a no-op.
type FollowUpScheduler struct {
	delay  time.Duration
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewFollowUpScheduler creates a scheduler firing each follow-up after the
// given delay.
func NewFollowUpScheduler(delay time.Duration) *FollowUpScheduler {
	return &FollowUpScheduler{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the follow-up for a user, replacing any pending one.
func (s *FollowUpScheduler) Schedule(userID string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.timers[userID]; exists {
		timer.Stop()
	}

	s.timers[userID] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, userID)
		s.mu.Unlock()

		fn()
	})

	log.Printf("Follow-up scheduled for %s in %v", userID, s.delay)
}

// Cancel disarms the pending follow-up for a user, if any.
func (s *FollowUpScheduler) Cancel(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.timers[userID]; exists {
		timer.Stop()
		delete(s.timers, userID)
		log.Printf("Follow-up canceled for %s", userID)
	}
}

// Stop disarms every pending follow-up (shutdown path).
func (s *FollowUpScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, userID)
	}
}
