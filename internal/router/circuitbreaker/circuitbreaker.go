// Package circuitbreaker tracks per-gateway health so routing can skip
// gateways that are failing.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/yourorg/payment-adapter/internal/schema"
)

// State is the circuit state for one gateway.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

const (
	defaultFailureThreshold         = 5
	defaultOpenStateTimeout         = 30 * time.Second
	defaultHalfOpenSuccessThreshold = 2
)

type gatewayState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	openUntil            time.Time
}

// CircuitBreaker is an in-memory breaker keyed by gateway. A gateway whose
// circuit is Open is excluded from fee-optimized routing until the open
// timeout elapses, then probed through HalfOpen.
type CircuitBreaker struct {
	mu                       sync.RWMutex
	gateways                 map[schema.Gateway]*gatewayState
	failureThreshold         int
	openStateTimeout         time.Duration
	halfOpenSuccessThreshold int
}

func New() *CircuitBreaker {
	return NewWithSettings(defaultFailureThreshold, defaultOpenStateTimeout, defaultHalfOpenSuccessThreshold)
}

func NewWithSettings(failThreshold int, openTimeout time.Duration, halfOpenSuccess int) *CircuitBreaker {
	return &CircuitBreaker{
		gateways:                 make(map[schema.Gateway]*gatewayState),
		failureThreshold:         failThreshold,
		openStateTimeout:         openTimeout,
		halfOpenSuccessThreshold: halfOpenSuccess,
	}
}

// caller must hold the write lock
func (cb *CircuitBreaker) getState(g schema.Gateway) *gatewayState {
	gs, exists := cb.gateways[g]
	if !exists {
		gs = &gatewayState{state: Closed}
		cb.gateways[g] = gs
	}
	return gs
}

// IsHealthy reports whether requests may be routed to the gateway. It takes
// the write lock because an expired Open circuit transitions to HalfOpen here.
func (cb *CircuitBreaker) IsHealthy(g schema.Gateway) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.getState(g)
	switch gs.state {
	case Closed:
		return true
	case Open:
		if time.Now().After(gs.openUntil) {
			gs.state = HalfOpen
			gs.consecutiveSuccesses = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		gs.state = Closed
		return true
	}
}

func (cb *CircuitBreaker) RecordFailure(g schema.Gateway) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.getState(g)
	gs.lastFailureTime = time.Now()

	switch gs.state {
	case Closed:
		gs.consecutiveFailures++
		if gs.consecutiveFailures >= cb.failureThreshold {
			gs.state = Open
			gs.openUntil = time.Now().Add(cb.openStateTimeout)
		}
	case HalfOpen:
		// A failed probe re-opens the circuit immediately.
		gs.state = Open
		gs.openUntil = time.Now().Add(cb.openStateTimeout)
		gs.consecutiveFailures = 0
		gs.consecutiveSuccesses = 0
	case Open:
		// openUntil is not extended by failures that slip through.
	}
}

func (cb *CircuitBreaker) RecordSuccess(g schema.Gateway) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.getState(g)
	switch gs.state {
	case Closed:
		gs.consecutiveFailures = 0
	case HalfOpen:
		gs.consecutiveSuccesses++
		if gs.consecutiveSuccesses >= cb.halfOpenSuccessThreshold {
			gs.state = Closed
			gs.consecutiveFailures = 0
			gs.consecutiveSuccesses = 0
		}
	case Open:
		// Success only matters in Closed or HalfOpen.
	}
}

// GetState is read-only and never transitions Open to HalfOpen; transitions
// happen in IsHealthy and the Record calls.
func (cb *CircuitBreaker) GetState(g schema.Gateway) State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	gs, exists := cb.gateways[g]
	if !exists {
		return Closed
	}
	return gs.state
}
