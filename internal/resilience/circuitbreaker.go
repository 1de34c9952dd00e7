package resilience

import (
	"sync"
	"time"

	"github.com/sertdev/inference-gateway/internal/gwerr"
)

// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
var ErrCircuitOpen = gwerr.ErrCircuitOpen

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // failing, rejecting requests
	StateHalfOpen              // probing for recovery
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreakerOpts configures the circuit breaker behavior.
type CircuitBreakerOpts struct {
	Threshold int           // consecutive failures before opening (default 5)
	Timeout   time.Duration // time in Open before transitioning to HalfOpen (default 30s)
}

func (o *CircuitBreakerOpts) withDefaults() CircuitBreakerOpts {
	out := *o
	if out.Threshold <= 0 {
		out.Threshold = 5
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	return out
}

// CircuitBreaker implements the circuit breaker pattern with a single
// in-flight half-open probe: at most one trial call is ever let through
// while the breaker is deciding whether an upstream has recovered.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	probeInFlight   bool
	lastFailureTime time.Time
	opts            CircuitBreakerOpts
}

// NewCircuitBreaker creates a new circuit breaker with the given options.
func NewCircuitBreaker(opts CircuitBreakerOpts) *CircuitBreaker {
	opts = opts.withDefaults()
	return &CircuitBreaker{
		state: StateClosed,
		opts:  opts,
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Snapshot describes the breaker's externally observable state.
type Snapshot struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitempty"`
	ProbeInFlight        bool      `json:"probe_in_flight"`
}

// StateSnapshot reports a point-in-time view of the breaker for
// introspection endpoints.
func (cb *CircuitBreaker) StateSnapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := cb.currentState()
	return Snapshot{
		State:               s.String(),
		ConsecutiveFailures: cb.failures,
		LastFailureAt:       cb.lastFailureTime,
		ProbeInFlight:        cb.probeInFlight,
	}
}

// currentState returns the state, transitioning Open→HalfOpen if the
// recovery timeout has elapsed. Must be called with mu held.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.opts.Timeout {
		cb.state = StateHalfOpen
		cb.probeInFlight = false
	}
	return cb.state
}

// Release clears an in-flight half-open probe without affecting the
// failure counter or state, for callers whose outcome was caller-origin
// cancellation rather than a true success or failure.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeInFlight = false
}

// Allow checks if a request is allowed. If allowed, it returns a done
// function that the caller must invoke exactly once with the result.
// Returns ErrCircuitOpen if the circuit is open, or if a half-open probe is
// already in flight.
func (cb *CircuitBreaker) Allow() (done func(success bool), err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateClosed:
		// Allow all requests.
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if cb.probeInFlight {
			return nil, ErrCircuitOpen
		}
		cb.probeInFlight = true
	}

	return func(success bool) {
		cb.mu.Lock()
		defer cb.mu.Unlock()

		wasProbe := cb.state == StateHalfOpen
		if success {
			cb.failures = 0
			cb.state = StateClosed
			cb.probeInFlight = false
		} else {
			cb.failures++
			cb.lastFailureTime = time.Now()
			if wasProbe || cb.failures >= cb.opts.Threshold {
				cb.state = StateOpen
			}
			cb.probeInFlight = false
		}
	}, nil
}
