// Package reconnect decides whether and when the next connection attempt
// fires after a failure.
//
// The policy is a fixed delay with a bounded number of attempts. The counter
// resets on every successful open; once it reaches the maximum the scheduler
// is exhausted and schedules nothing until a success resets it.
package reconnect

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Defaults
const (
	DefaultMaxAttempts = 5
	DefaultDelay       = 3 * time.Second
)

// Errors
var (
	ErrExhausted    = errors.New("reconnect attempts exhausted")
	ErrTimerPending = errors.New("reconnect already pending")
)

// Policy configures the scheduler.
type Policy struct {
	MaxAttempts int           // Maximum consecutive attempts (0 disables reconnection)
	Delay       time.Duration // Fixed delay before each attempt
}

// DefaultPolicy returns 5 attempts, 3 seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
	}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be >= 0, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %v", p.Delay)
	}
	return nil
}

// Timer is the handle of an armed one-shot timer.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a one-shot timer. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAfterFunc replaces the timer implementation.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = fn
	}
}

// Scheduler tracks the attempt counter and owns at most one pending timer.
type Scheduler struct {
	policy    Policy
	afterFunc AfterFunc

	mu       sync.Mutex
	attempts int
	pending  Timer
	seq      uint64 // Identifies the armed timer; bumped on cancel
}

// NewScheduler creates a scheduler for the given policy.
func NewScheduler(policy Policy, opts ...Option) *Scheduler {
	s := &Scheduler{
		policy:    policy,
		afterFunc: stdAfterFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnFailure records a failed or closed connection. If attempts remain it
// increments the counter and arms a timer that calls fire after the policy
// delay; it returns the attempt number being scheduled. Once the counter has
// reached the maximum it returns ErrExhausted and arms nothing.
func (s *Scheduler) OnFailure(fire func()) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return s.attempts, ErrTimerPending
	}
	if s.attempts >= s.policy.MaxAttempts {
		return s.attempts, ErrExhausted
	}

	s.attempts++
	s.seq++
	seq := s.seq
	s.pending = s.afterFunc(s.policy.Delay, func() {
		s.mu.Lock()
		if s.seq != seq || s.pending == nil {
			// Cancelled after the timer had already started firing.
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()

		fire()
	})

	return s.attempts, nil
}

// OnSuccess resets the attempt counter.
func (s *Scheduler) OnSuccess() {
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()
}

// Cancel stops a pending timer. The attempt counter is kept. It reports
// whether a timer was pending.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return false
	}
	s.pending.Stop()
	s.pending = nil
	s.seq++
	return true
}

// Attempts returns the current attempt counter.
func (s *Scheduler) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Exhausted reports whether no further attempt can be scheduled.
func (s *Scheduler) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending == nil && s.attempts >= s.policy.MaxAttempts
}
