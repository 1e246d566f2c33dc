package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
	}
	b := New(cfg)
	failing := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, failing })
		require.ErrorIs(t, err, failing)
	}

	assert.Equal(t, StateOpen, b.State())

	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	cfg := &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	}
	b := New(cfg)
	_, _ = b.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	require.Equal(t, StateOpen, b.State())

	time.Sleep(2 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	result, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, b.State())
}

func TestExecuteWithFallback_UsesFallbackWhenOpen(t *testing.T) {
	cfg := &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Hour,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	}
	b := New(cfg)
	_, _ = b.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	require.Equal(t, StateOpen, b.State())

	value, err := ExecuteWithFallback(b,
		func() (string, error) { return "live", nil },
		func(err error) (string, error) { return "cached", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "cached", value)
}

func TestManager_GetReusesBreaker(t *testing.T) {
	m := NewManager(nil)
	a := m.Get("entitlement-source")
	b := m.Get("entitlement-source")
	assert.Same(t, a, b)
	assert.NotSame(t, a, m.Get("provisioner"))
}

func TestCollaboratorBreakers_ProvisionerTripsFasterThanEntitlementCache(t *testing.T) {
	c := NewCollaboratorBreakers()
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, _ = c.Provisioner.Execute(func() (interface{}, error) { return nil, failing })
	}
	assert.Equal(t, StateOpen, c.Provisioner.State(), "provisioner should trip after a short run of consecutive failures")

	for i := 0; i < 3; i++ {
		_, _ = c.EntitlementCache.Execute(func() (interface{}, error) { return nil, failing })
	}
	assert.Equal(t, StateClosed, c.EntitlementCache.State(), "entitlement cache should stay closed below its volume/ratio threshold")
}

func TestCollaboratorBreakers_HealthStatusReflectsOpenBreakers(t *testing.T) {
	c := NewCollaboratorBreakers()
	status, detail := c.HealthStatus()
	assert.Equal(t, "HEALTHY", status)
	assert.Equal(t, "CLOSED", detail["entitlement-cache"])
	assert.Equal(t, "CLOSED", detail["provisioner"])

	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, _ = c.Provisioner.Execute(func() (interface{}, error) { return nil, failing })
	}

	status, detail = c.HealthStatus()
	assert.Equal(t, "DEGRADED", status)
	assert.Equal(t, "OPEN", detail["provisioner"])
}
