package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls immediately after repeated failures.
	CircuitOpen
	// CircuitHalfOpen admits a single probe call to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected by an open circuit.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitConfig controls breaker behavior.
type CircuitConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a probe is
	// admitted.
	ResetTimeout time.Duration

	// OnStateChange is invoked on every transition.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitConfig returns the breaker policy used for source adapters.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Circuit is a consecutive-failure circuit breaker. Safe for concurrent use.
type Circuit struct {
	cfg CircuitConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewCircuit creates a breaker in the closed state.
func NewCircuit(cfg CircuitConfig) *Circuit {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Circuit{cfg: cfg, state: CircuitClosed, now: time.Now}
}

// Allow reports whether a call may proceed, transitioning to half-open
// when the reset timeout has elapsed.
func (c *Circuit) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if c.now().Sub(c.openedAt) >= c.cfg.ResetTimeout {
			c.transition(CircuitHalfOpen)
			return true
		}
		return false
	case CircuitHalfOpen:
		// Only one probe at a time; further calls wait out the probe.
		return false
	}
	return false
}

// RecordSuccess closes the circuit and clears the failure count.
func (c *Circuit) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	if c.state != CircuitClosed {
		c.transition(CircuitClosed)
	}
}

// RecordFailure counts a failure, opening the circuit at the threshold.
// A failed half-open probe reopens immediately.
func (c *Circuit) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	if c.state == CircuitHalfOpen || (c.state == CircuitClosed && c.failures >= c.cfg.FailureThreshold) {
		c.openedAt = c.now()
		c.transition(CircuitOpen)
	}
}

// State returns the current breaker state.
func (c *Circuit) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// withNow fixes the clock for tests.
func (c *Circuit) withNow(now func() time.Time) *Circuit {
	c.now = now
	return c
}

func (c *Circuit) transition(to CircuitState) {
	from := c.state
	c.state = to
	if c.cfg.OnStateChange != nil && from != to {
		c.cfg.OnStateChange(from, to)
	}
}
