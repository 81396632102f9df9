package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstack/ecstack/internal/config"
	"github.com/ecstack/ecstack/internal/manifest"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
	"github.com/ecstack/ecstack/internal/provisioning/destroy"
)

func TestDown_RunsAllStepsAndClearsManifest(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ECSTACK_STATE_DIR", dir)

	store := manifest.NewStore(dir)
	require.NoError(t, store.Save("demo", &manifest.Manifest{VPCID: "vpc-1"}))

	var order []string
	steps := []destroy.Step{
		{Name: "compute", Run: func(context.Context) error { order = append(order, "compute"); return nil }},
		{Name: "network", Run: func(context.Context) error { order = append(order, "network"); return nil }},
	}
	stubFactories(t, nil, steps)

	require.NoError(t, Down(context.Background(), "demo", "eu-west-1"))
	assert.Equal(t, []string{"compute", "network"}, order)

	m, err := store.Load("demo")
	require.NoError(t, err)
	assert.Nil(t, m, "manifest must be cleared after teardown")
}

func TestDown_StepFailuresAreNotFatal(t *testing.T) {
	t.Setenv("ECSTACK_STATE_DIR", t.TempDir())

	var order []string
	steps := []destroy.Step{
		{Name: "compute", Run: func(context.Context) error { order = append(order, "compute"); return errors.New("still draining") }},
		{Name: "network", Run: func(context.Context) error { order = append(order, "network"); return nil }},
	}
	stubFactories(t, nil, steps)

	require.NoError(t, Down(context.Background(), "demo", "eu-west-1"),
		"partial teardown failures are reported, not returned")
	assert.Equal(t, []string{"compute", "network"}, order)
}

func TestDown_WithoutManifestFallsBackToNames(t *testing.T) {
	t.Setenv("ECSTACK_STATE_DIR", t.TempDir())

	var resolved *destroy.Targets
	stubFactories(t, nil, nil)
	origSteps := buildTeardownSteps
	buildTeardownSteps = func(c *awsapi.Clients, targets *destroy.Targets, timeouts *config.Timeouts, obs provisioning.Observer) []destroy.Step {
		resolved = targets
		return nil
	}
	t.Cleanup(func() { buildTeardownSteps = origSteps })

	require.NoError(t, Down(context.Background(), "demo", "eu-west-1"))
	require.NotNil(t, resolved)
	assert.False(t, resolved.FromManifest)
	assert.Equal(t, "demo", resolved.Cluster)
	assert.Equal(t, "/ecs/demo", resolved.LogGroup)
	assert.Equal(t, "demo-123456789012-bucket", resolved.BucketName)
}

func TestDown_AccountResolutionFailureTolerated(t *testing.T) {
	t.Setenv("ECSTACK_STATE_DIR", t.TempDir())

	var resolved *destroy.Targets
	stubFactories(t, nil, nil)
	resolveAccount = func(context.Context, *awsapi.Clients) (string, error) {
		return "", errors.New("sts unavailable")
	}
	origSteps := buildTeardownSteps
	buildTeardownSteps = func(c *awsapi.Clients, targets *destroy.Targets, timeouts *config.Timeouts, obs provisioning.Observer) []destroy.Step {
		resolved = targets
		return nil
	}
	t.Cleanup(func() { buildTeardownSteps = origSteps })

	require.NoError(t, Down(context.Background(), "demo", "eu-west-1"))
	require.NotNil(t, resolved)
	assert.Empty(t, resolved.BucketName, "no account id means no bucket name to guess")
}

func TestDefaultTeardownSteps_BucketOnlyWhenNamed(t *testing.T) {
	clients := &awsapi.Clients{}
	timeouts := &config.Timeouts{}
	obs := newObserver()

	withBucket := defaultTeardownSteps(clients, &destroy.Targets{Name: "demo", BucketName: "demo-123-bucket"}, timeouts, obs)
	names := make([]string, 0, len(withBucket))
	for _, s := range withBucket {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"compute", "registry", "logsink", "identity", "loadbalancer", "network", "bucket"}, names)

	withoutBucket := defaultTeardownSteps(clients, &destroy.Targets{Name: "demo"}, timeouts, obs)
	assert.Len(t, withoutBucket, 6)
	for _, s := range withoutBucket {
		assert.NotEqual(t, "bucket", s.Name)
	}
}
