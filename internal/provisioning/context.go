package provisioning

import (
	"context"

	"github.com/ecstack/ecstack/internal/config"
	"github.com/ecstack/ecstack/internal/manifest"
)

// Context wraps all dependencies and state needed by a provisioning phase.
type Context struct {
	context.Context
	Config    *config.StackConfig
	State     *State
	Observer  Observer
	Timeouts  *config.Timeouts
	Manifests *manifest.Store
}

// NewContext creates a new provisioning context with an empty state.
func NewContext(
	ctx context.Context,
	cfg *config.StackConfig,
	observer Observer,
	timeouts *config.Timeouts,
	manifests *manifest.Store,
) *Context {
	return &Context{
		Context:   ctx,
		Config:    cfg,
		State:     NewState(),
		Observer:  observer,
		Timeouts:  timeouts,
		Manifests: manifests,
	}
}
