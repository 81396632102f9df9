package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTimeoutsDefaults(t *testing.T) {
	timeouts, err := LoadTimeouts()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, timeouts.LoadBalancerActive)
	assert.Equal(t, 15*time.Minute, timeouts.ServiceStable)
	assert.Equal(t, 10*time.Minute, timeouts.ServiceDrain)
	assert.Equal(t, 30*time.Second, timeouts.DeleteConfirm)
	assert.Equal(t, 10*time.Second, timeouts.PollInterval)
	assert.Equal(t, 3*time.Second, timeouts.DeletePollInterval)
}

func TestLoadTimeoutsEnvOverrides(t *testing.T) {
	t.Setenv("ECSTACK_TIMEOUT_LB_ACTIVE", "2m")
	t.Setenv("ECSTACK_POLL_INTERVAL", "500ms")

	timeouts, err := LoadTimeouts()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, timeouts.LoadBalancerActive)
	assert.Equal(t, 500*time.Millisecond, timeouts.PollInterval)
	// Untouched fields keep their defaults.
	assert.Equal(t, 15*time.Minute, timeouts.ServiceStable)
}

func TestLoadTimeoutsRejectsGarbage(t *testing.T) {
	t.Setenv("ECSTACK_TIMEOUT_SERVICE_DRAIN", "soon")

	_, err := LoadTimeouts()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout environment")
}
