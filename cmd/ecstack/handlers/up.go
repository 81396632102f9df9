// Package handlers implements command execution for the ecstack CLI.
//
// Commands in the commands package bind flags and delegate here. The
// factory variables below are the seams tests replace with fakes.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ecstack/ecstack/internal/config"
	"github.com/ecstack/ecstack/internal/logging"
	"github.com/ecstack/ecstack/internal/manifest"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
	"github.com/ecstack/ecstack/internal/provisioning/bucket"
	"github.com/ecstack/ecstack/internal/provisioning/compute"
	"github.com/ecstack/ecstack/internal/provisioning/identity"
	"github.com/ecstack/ecstack/internal/provisioning/loadbalancer"
	"github.com/ecstack/ecstack/internal/provisioning/logsink"
	"github.com/ecstack/ecstack/internal/provisioning/network"
	"github.com/ecstack/ecstack/internal/provisioning/registry"
)

// Factory function variables - can be replaced in tests.
var (
	newClients   = awsapi.New
	loadTimeouts = config.LoadTimeouts
	buildPhases  = defaultPhases

	resolveAccount = func(ctx context.Context, c *awsapi.Clients) (string, error) {
		return c.AccountID(ctx)
	}
)

// newObserver builds the progress observer. Progress lines go to stdout;
// the final JSON document is printed separately.
func newObserver() provisioning.Observer {
	level := logging.ParseLevel(os.Getenv("ECSTACK_LOG_LEVEL"))
	return provisioning.NewConsoleObserver(logging.NewLogger(os.Stdout, level))
}

// stateDir returns the directory manifests are kept in.
func stateDir() string {
	return os.Getenv("ECSTACK_STATE_DIR")
}

// Up handles the up command. It provisions the configured resource kinds in
// dependency order and prints the resulting manifest. A provisioning error
// aborts the remaining phases and propagates; resources created so far stay
// recorded in the manifest and are never rolled back automatically.
func Up(ctx context.Context, cfg *config.StackConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	obs := newObserver()

	clients, err := newClients(ctx, cfg.Region)
	if err != nil {
		return err
	}
	timeouts, err := loadTimeouts()
	if err != nil {
		return err
	}

	store := manifest.NewStore(stateDir())
	pctx := provisioning.NewContext(ctx, cfg, obs, timeouts, store)

	accountID, err := resolveAccount(ctx, clients)
	if err != nil {
		return err
	}
	pctx.State.AccountID = accountID

	// A manifest from an earlier run makes the pipeline idempotent: phases
	// whose identifiers are already recorded are skipped rather than
	// re-created.
	prev, err := store.Load(cfg.Name)
	if err != nil {
		return err
	}
	if prev != nil {
		obs.Printf("found existing manifest for %s, resuming", cfg.Name)
		pctx.State.Restore(prev)
	}

	phases, err := buildPhases(cfg.Kinds, clients)
	if err != nil {
		return err
	}

	if err := provisioning.RunPhases(pctx, phases); err != nil {
		// Surface the identifiers created before the failure; the stack is
		// left as-is for an explicit down.
		if perr := printJSON(pctx.State.Manifest()); perr != nil {
			obs.Warnf("failed to print partial state: %v", perr)
		}
		return fmt.Errorf("up failed: %w", err)
	}

	return printJSON(pctx.State.Manifest())
}

// defaultPhases maps the configured resource kinds onto their provisioners,
// preserving the given order.
func defaultPhases(kinds []config.Kind, clients *awsapi.Clients) ([]provisioning.Phase, error) {
	phases := make([]provisioning.Phase, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case config.KindBucket:
			phases = append(phases, bucket.NewProvisioner(clients.S3))
		case config.KindNetwork:
			phases = append(phases, network.NewProvisioner(clients.EC2))
		case config.KindLoadBalancer:
			phases = append(phases, loadbalancer.NewProvisioner(clients.ELB))
		case config.KindRegistry:
			phases = append(phases, registry.NewProvisioner(clients.ECR))
		case config.KindLogSink:
			phases = append(phases, logsink.NewProvisioner(clients.Logs))
		case config.KindIdentity:
			phases = append(phases, identity.NewProvisioner(clients.IAM))
		case config.KindCompute:
			phases = append(phases, compute.NewProvisioner(clients.ECS))
		default:
			return nil, fmt.Errorf("no provisioner for resource kind %q", kind)
		}
	}
	return phases, nil
}

// printJSON writes the final machine-readable document to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
