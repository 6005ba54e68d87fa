// Package libroutine provides a small circuit breaker and a group of managed
// background loops built on top of it. It guards infrastructure bootstrap
// (ExecuteWithRetry) and periodic maintenance cycles (Group.StartLoop); it is
// deliberately not applied to vendor model calls.
package libroutine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// ErrCircuitOpen is returned when the breaker rejects an execution.
var ErrCircuitOpen = errors.New("libroutine: circuit open")

// Routine is a failure-counting circuit breaker around an operation.
type Routine struct {
	mu           sync.Mutex
	state        State
	failureCount int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	halfOpenBusy bool
}

// NewRoutine creates a breaker that opens after threshold consecutive
// failures and probes again after resetTimeout.
func NewRoutine(threshold int, resetTimeout time.Duration) *Routine {
	if threshold < 1 {
		threshold = 1
	}
	return &Routine{
		state:        Closed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// Allow reports whether an execution may proceed right now. In half-open
// state only a single probe call is admitted at a time.
func (r *Routine) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Closed:
		return true
	case Open:
		if time.Since(r.openedAt) >= r.resetTimeout {
			r.state = HalfOpen
			r.halfOpenBusy = true
			return true
		}
		return false
	case HalfOpen:
		if r.halfOpenBusy {
			return false
		}
		r.halfOpenBusy = true
		return true
	}
	return false
}

// Execute runs fn under the breaker, recording success or failure.
func (r *Routine) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.Allow() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	r.record(err)
	return err
}

// ExecuteWithRetry retries fn up to maxRetries times with a fixed pause,
// passing each attempt through the breaker. Used to ride out slow
// infrastructure startup (database, kv, message bus).
func (r *Routine) ExecuteWithRetry(ctx context.Context, pause time.Duration, maxRetries int, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = r.Execute(ctx, fn)
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return lastErr
}

// Loop repeatedly runs fn at the given interval until ctx is done. A send on
// triggerChan forces an immediate run. Errors are handed to onError and
// counted by the breaker.
func (r *Routine) Loop(ctx context.Context, interval time.Duration, triggerChan chan struct{}, fn func(ctx context.Context) error, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		if err := r.Execute(ctx, fn); err != nil && !errors.Is(err, ErrCircuitOpen) {
			onError(err)
		}
	}
	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		case <-triggerChan:
			run()
		}
	}
}

// ForceOpen opens the breaker regardless of the failure count.
func (r *Routine) ForceOpen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Open
	r.openedAt = time.Now()
}

// ForceClose closes the breaker and resets the failure count.
func (r *Routine) ForceClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Closed
	r.failureCount = 0
	r.halfOpenBusy = false
}

// GetState returns the current breaker state.
func (r *Routine) GetState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Open && time.Since(r.openedAt) >= r.resetTimeout {
		return HalfOpen
	}
	return r.state
}

// GetThreshold returns the configured failure threshold.
func (r *Routine) GetThreshold() int {
	return r.threshold
}

// GetResetTimeout returns the configured reset timeout.
func (r *Routine) GetResetTimeout() time.Duration {
	return r.resetTimeout
}

func (r *Routine) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		r.state = Closed
		r.failureCount = 0
		r.halfOpenBusy = false
		return
	}

	if r.state == HalfOpen {
		r.state = Open
		r.openedAt = time.Now()
		r.halfOpenBusy = false
		return
	}

	r.failureCount++
	if r.failureCount >= r.threshold {
		r.state = Open
		r.openedAt = time.Now()
	}
}
