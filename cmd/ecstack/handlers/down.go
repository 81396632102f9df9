package handlers

import (
	"context"

	"github.com/ecstack/ecstack/internal/config"
	"github.com/ecstack/ecstack/internal/manifest"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
	"github.com/ecstack/ecstack/internal/provisioning/bucket"
	"github.com/ecstack/ecstack/internal/provisioning/compute"
	"github.com/ecstack/ecstack/internal/provisioning/destroy"
	"github.com/ecstack/ecstack/internal/provisioning/identity"
	"github.com/ecstack/ecstack/internal/provisioning/loadbalancer"
	"github.com/ecstack/ecstack/internal/provisioning/logsink"
	"github.com/ecstack/ecstack/internal/provisioning/network"
	"github.com/ecstack/ecstack/internal/provisioning/registry"
)

// buildTeardownSteps assembles the reverse-dependency-order teardown
// sequence. Replaced in tests.
var buildTeardownSteps = defaultTeardownSteps

// Down handles the down command. It resolves the stack's resources from the
// manifest (or name-derived defaults), tears everything down best-effort,
// clears the manifest, and prints the report. Down never fails for partial
// teardown failures; those are reported, not returned.
func Down(ctx context.Context, name, region string) error {
	obs := newObserver()

	clients, err := newClients(ctx, region)
	if err != nil {
		return err
	}
	timeouts, err := loadTimeouts()
	if err != nil {
		return err
	}

	store := manifest.NewStore(stateDir())
	m, err := store.Load(name)
	if err != nil {
		obs.Warnf("failed to read manifest: %v", err)
		m = nil
	}
	if m == nil {
		obs.Warnf("no manifest for stack %s; deleting by name-derived defaults", name)
	}

	accountID, err := resolveAccount(ctx, clients)
	if err != nil {
		obs.Warnf("failed to resolve account id: %v", err)
		accountID = ""
	}

	targets := destroy.Resolve(m, name, accountID)
	report := destroy.Run(ctx, obs, buildTeardownSteps(clients, targets, timeouts, obs))

	if err := store.Clear(name); err != nil {
		obs.Warnf("failed to clear manifest: %v", err)
	}

	obs.Printf("stack %s teardown finished", name)
	return printJSON(report)
}

func defaultTeardownSteps(
	clients *awsapi.Clients,
	t *destroy.Targets,
	timeouts *config.Timeouts,
	obs provisioning.Observer,
) []destroy.Step {
	computeProv := compute.NewProvisioner(clients.ECS)
	registryProv := registry.NewProvisioner(clients.ECR)
	logsinkProv := logsink.NewProvisioner(clients.Logs)
	identityProv := identity.NewProvisioner(clients.IAM)
	lbProv := loadbalancer.NewProvisioner(clients.ELB)
	networkProv := network.NewProvisioner(clients.EC2)

	steps := []destroy.Step{
		{Name: "compute", Run: func(ctx context.Context) error {
			return computeProv.Teardown(ctx, obs, compute.TeardownSpec{
				Cluster:       t.Cluster,
				Service:       t.Service,
				TaskFamily:    t.TaskFamily,
				DrainTimeout:  timeouts.ServiceDrain,
				ConfirmWindow: timeouts.DeleteConfirm,
				PollInterval:  timeouts.DeletePollInterval,
			})
		}},
		{Name: "registry", Run: func(ctx context.Context) error {
			return registryProv.Teardown(ctx, obs, t.RepositoryName)
		}},
		{Name: "logsink", Run: func(ctx context.Context) error {
			return logsinkProv.Teardown(ctx, obs, t.LogGroup)
		}},
		{Name: "identity", Run: func(ctx context.Context) error {
			return identityProv.Teardown(ctx, obs, t.RoleName)
		}},
		{Name: "loadbalancer", Run: func(ctx context.Context) error {
			return lbProv.Teardown(ctx, obs, t.Name)
		}},
		{Name: "network", Run: func(ctx context.Context) error {
			return networkProv.Teardown(ctx, obs, network.TeardownSpec{
				Name:          t.Name,
				VPCID:         t.VPCID,
				ConfirmWindow: timeouts.DeleteConfirm,
				PollInterval:  timeouts.DeletePollInterval,
			})
		}},
	}

	// Without an account id there is no bucket name to guess, so the step
	// is dropped rather than attempted against an empty name.
	if t.BucketName != "" {
		bucketProv := bucket.NewProvisioner(clients.S3)
		steps = append(steps, destroy.Step{Name: "bucket", Run: func(ctx context.Context) error {
			return bucketProv.Teardown(ctx, obs, t.BucketName)
		}})
	}
	return steps
}
