package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuit_OpensAtThreshold(t *testing.T) {
	c := NewCircuit(CircuitConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	require.Equal(t, CircuitClosed, c.State())
	c.RecordFailure()
	c.RecordFailure()
	assert.Equal(t, CircuitClosed, c.State())
	assert.True(t, c.Allow())

	c.RecordFailure()
	assert.Equal(t, CircuitOpen, c.State())
	assert.False(t, c.Allow())
}

func TestCircuit_SuccessResetsFailureCount(t *testing.T) {
	c := NewCircuit(CircuitConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	c.RecordFailure()
	c.RecordFailure()
	c.RecordSuccess()
	c.RecordFailure()
	c.RecordFailure()
	assert.Equal(t, CircuitClosed, c.State(), "non-consecutive failures must not open the circuit")
}

func TestCircuit_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	c := NewCircuit(CircuitConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second}).
		withNow(func() time.Time { return now })

	c.RecordFailure()
	require.Equal(t, CircuitOpen, c.State())
	assert.False(t, c.Allow())

	// After the reset timeout one probe is admitted, further calls wait.
	now = now.Add(31 * time.Second)
	assert.True(t, c.Allow())
	assert.Equal(t, CircuitHalfOpen, c.State())
	assert.False(t, c.Allow())

	c.RecordSuccess()
	assert.Equal(t, CircuitClosed, c.State())
	assert.True(t, c.Allow())
}

func TestCircuit_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	c := NewCircuit(CircuitConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second}).
		withNow(func() time.Time { return now })

	c.RecordFailure()
	now = now.Add(31 * time.Second)
	require.True(t, c.Allow())
	require.Equal(t, CircuitHalfOpen, c.State())

	c.RecordFailure()
	assert.Equal(t, CircuitOpen, c.State())
	assert.False(t, c.Allow())
}

func TestCircuit_OnStateChange(t *testing.T) {
	var changes []string
	c := NewCircuit(CircuitConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			changes = append(changes, from.String()+"->"+to.String())
		},
	})

	c.RecordFailure()
	c.RecordSuccess()
	assert.Equal(t, []string{"closed->open", "open->closed"}, changes)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}
