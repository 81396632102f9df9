// Package provisioning defines the phase pipeline that creates a stack and
// the shared state its phases communicate through.
package provisioning

import (
	"fmt"
	"time"
)

// Phase is one resource family's creation step. Phases run in dependency
// order; each reads earlier results from the shared state and appends its
// own.
type Phase interface {
	Name() string
	Provision(ctx *Context) error
}

// RunPhases executes the phases sequentially, failing fast on the first
// error. After every successful phase the manifest is checkpointed, so a
// later failure never loses track of resources created so far. A failed run
// leaves the stack in a mixed state; it is never rolled back automatically
// and must be torn down explicitly.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting provisioning of stack %s with %d phases...", ctx.Config.Name, len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		ctx.Observer.Printf("[%s] starting", name)

		if err := phase.Provision(ctx); err != nil {
			ctx.Observer.Printf("[%s] failed: %v", name, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		checkpoint(ctx)

		ctx.Observer.Printf("[%s] completed in %v", name, time.Since(phaseStart).Round(time.Millisecond))
	}

	ctx.Observer.Printf("Provisioning completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// checkpoint persists the identifiers collected so far. Persisting is
// best-effort: a write failure must not abort provisioning, only degrade a
// later teardown to name-derived lookups.
func checkpoint(ctx *Context) {
	if ctx.Manifests == nil {
		return
	}
	if err := ctx.Manifests.Save(ctx.Config.Name, ctx.State.Manifest()); err != nil {
		ctx.Observer.Warnf("failed to checkpoint manifest: %v", err)
	}
}
