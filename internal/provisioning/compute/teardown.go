package compute

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
	"github.com/ecstack/ecstack/internal/wait"
)

// TeardownSpec is the input to Teardown.
type TeardownSpec struct {
	Cluster       string
	Service       string
	TaskFamily    string
	DrainTimeout  time.Duration
	ConfirmWindow time.Duration
	PollInterval  time.Duration
}

// Teardown drains and deletes the service, deletes the cluster, and
// deregisters every active task definition revision. A drain that never
// reaches zero is tolerated; the force delete proceeds regardless.
func (p *Provisioner) Teardown(ctx context.Context, obs provisioning.Observer, spec TeardownSpec) error {
	if _, err := p.api.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(spec.Cluster),
		Service:      aws.String(spec.Service),
		DesiredCount: aws.Int32(0),
	}); err != nil {
		if !awsapi.IsNotFound(err) {
			obs.Warnf("[compute] failed to scale service %s to zero: %v", spec.Service, err)
		}
	} else {
		if err := wait.Until(ctx, func(ctx context.Context) (bool, error) {
			out, err := p.api.DescribeServices(ctx, &ecs.DescribeServicesInput{
				Cluster:  aws.String(spec.Cluster),
				Services: []string{spec.Service},
			})
			if err != nil {
				return false, err
			}
			if len(out.Services) == 0 {
				return true, nil
			}
			return out.Services[0].RunningCount == 0, nil
		}, "service drain", spec.DrainTimeout, spec.PollInterval); err != nil {
			obs.Warnf("[compute] service %s did not drain: %v", spec.Service, err)
		}
	}

	if _, err := p.api.DeleteService(ctx, &ecs.DeleteServiceInput{
		Cluster: aws.String(spec.Cluster),
		Service: aws.String(spec.Service),
		Force:   aws.Bool(true),
	}); err != nil && !awsapi.IsNotFound(err) {
		obs.Warnf("[compute] failed to delete service %s: %v", spec.Service, err)
	}

	if _, err := p.api.DeleteCluster(ctx, &ecs.DeleteClusterInput{
		Cluster: aws.String(spec.Cluster),
	}); err != nil {
		if !awsapi.IsNotFound(err) {
			obs.Warnf("[compute] failed to delete cluster %s: %v", spec.Cluster, err)
		}
	} else if err := wait.Until(ctx, func(ctx context.Context) (bool, error) {
		return p.clusterGone(ctx, spec.Cluster)
	}, "cluster deletion", spec.ConfirmWindow, spec.PollInterval); err != nil {
		obs.Warnf("[compute] cluster %s deletion unconfirmed: %v", spec.Cluster, err)
	}

	p.deregisterTaskDefinitions(ctx, obs, spec.TaskFamily)
	return nil
}

// clusterGone reports whether no cluster ARN ends with the given name.
func (p *Provisioner) clusterGone(ctx context.Context, name string) (bool, error) {
	out, err := p.api.ListClusters(ctx, &ecs.ListClustersInput{})
	if err != nil {
		return false, err
	}
	for _, arn := range out.ClusterArns {
		if strings.HasSuffix(arn, "/"+name) {
			return false, nil
		}
	}
	return true, nil
}

// deregisterTaskDefinitions deregisters every active revision of the family.
func (p *Provisioner) deregisterTaskDefinitions(ctx context.Context, obs provisioning.Observer, family string) {
	var next *string
	for {
		out, err := p.api.ListTaskDefinitions(ctx, &ecs.ListTaskDefinitionsInput{
			FamilyPrefix: aws.String(family),
			Status:       ecstypes.TaskDefinitionStatusActive,
			NextToken:    next,
		})
		if err != nil {
			obs.Warnf("[compute] failed to list task definitions for %s: %v", family, err)
			return
		}
		for _, arn := range out.TaskDefinitionArns {
			if _, err := p.api.DeregisterTaskDefinition(ctx, &ecs.DeregisterTaskDefinitionInput{
				TaskDefinition: aws.String(arn),
			}); err != nil && !awsapi.IsNotFound(err) {
				obs.Warnf("[compute] failed to deregister %s: %v", arn, err)
			}
		}
		if out.NextToken == nil {
			return
		}
		next = out.NextToken
	}
}
