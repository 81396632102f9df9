package compute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstack/ecstack/internal/provisioning"
)

func teardownSpec() TeardownSpec {
	return TeardownSpec{
		Cluster:       "demo",
		Service:       "demo",
		TaskFamily:    "demo",
		DrainTimeout:  50 * time.Millisecond,
		ConfirmWindow: 50 * time.Millisecond,
		PollInterval:  time.Millisecond,
	}
}

func TestTeardown_DrainsThenDeletes(t *testing.T) {
	t.Parallel()

	var order []string
	running := int32(1)
	mock := &mockECS{
		updateService: func(in *ecs.UpdateServiceInput) (*ecs.UpdateServiceOutput, error) {
			order = append(order, "scale-zero")
			assert.Equal(t, int32(0), aws.ToInt32(in.DesiredCount))
			running = 0
			return &ecs.UpdateServiceOutput{}, nil
		},
		describeServices: func(*ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error) {
			return &ecs.DescribeServicesOutput{
				Services: []ecstypes.Service{{RunningCount: running}},
			}, nil
		},
		deleteService: func(in *ecs.DeleteServiceInput) (*ecs.DeleteServiceOutput, error) {
			order = append(order, "delete-service")
			assert.True(t, aws.ToBool(in.Force))
			return &ecs.DeleteServiceOutput{}, nil
		},
		deleteCluster: func(*ecs.DeleteClusterInput) (*ecs.DeleteClusterOutput, error) {
			order = append(order, "delete-cluster")
			return &ecs.DeleteClusterOutput{}, nil
		},
		listClusters: func(*ecs.ListClustersInput) (*ecs.ListClustersOutput, error) {
			return &ecs.ListClustersOutput{}, nil
		},
		listTaskDefinitions: func(*ecs.ListTaskDefinitionsInput) (*ecs.ListTaskDefinitionsOutput, error) {
			order = append(order, "list-taskdefs")
			return &ecs.ListTaskDefinitionsOutput{}, nil
		},
	}

	obs := provisioning.NewMockObserver()
	err := NewProvisioner(mock).Teardown(context.Background(), obs, teardownSpec())
	require.NoError(t, err)
	assert.Equal(t, []string{"scale-zero", "delete-service", "delete-cluster", "list-taskdefs"}, order)
	assert.Empty(t, obs.Warnings)
}

func TestTeardown_UnfinishedDrainIsWarnedNotFatal(t *testing.T) {
	t.Parallel()

	serviceDeleted := false
	mock := &mockECS{
		describeServices: func(*ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error) {
			return &ecs.DescribeServicesOutput{
				Services: []ecstypes.Service{{RunningCount: 1}},
			}, nil
		},
		deleteService: func(*ecs.DeleteServiceInput) (*ecs.DeleteServiceOutput, error) {
			serviceDeleted = true
			return &ecs.DeleteServiceOutput{}, nil
		},
	}

	obs := provisioning.NewMockObserver()
	err := NewProvisioner(mock).Teardown(context.Background(), obs, teardownSpec())
	require.NoError(t, err)
	assert.True(t, serviceDeleted, "force delete must proceed after an unfinished drain")
	assert.NotEmpty(t, obs.Warnings)
}

func TestTeardown_AbsentServiceTolerated(t *testing.T) {
	t.Parallel()

	mock := &mockECS{
		updateService: func(*ecs.UpdateServiceInput) (*ecs.UpdateServiceOutput, error) {
			return nil, &ecstypes.ServiceNotFoundException{}
		},
		deleteService: func(*ecs.DeleteServiceInput) (*ecs.DeleteServiceOutput, error) {
			return nil, &ecstypes.ServiceNotFoundException{}
		},
		deleteCluster: func(*ecs.DeleteClusterInput) (*ecs.DeleteClusterOutput, error) {
			return nil, &ecstypes.ClusterNotFoundException{}
		},
	}

	obs := provisioning.NewMockObserver()
	err := NewProvisioner(mock).Teardown(context.Background(), obs, teardownSpec())
	require.NoError(t, err)
	assert.Empty(t, obs.Warnings)
}

func TestTeardown_ConfirmsClusterDeletion(t *testing.T) {
	t.Parallel()

	lists := 0
	mock := &mockECS{
		listClusters: func(*ecs.ListClustersInput) (*ecs.ListClustersOutput, error) {
			lists++
			if lists < 3 {
				return &ecs.ListClustersOutput{
					ClusterArns: []string{"arn:aws:ecs:eu-west-1:123456789012:cluster/demo"},
				}, nil
			}
			return &ecs.ListClustersOutput{
				ClusterArns: []string{"arn:aws:ecs:eu-west-1:123456789012:cluster/other"},
			}, nil
		},
	}

	obs := provisioning.NewMockObserver()
	err := NewProvisioner(mock).Teardown(context.Background(), obs, teardownSpec())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lists, 3)
}

func TestTeardown_DeregistersAllRevisions(t *testing.T) {
	t.Parallel()

	var deregistered []string
	pages := 0
	mock := &mockECS{
		listTaskDefinitions: func(in *ecs.ListTaskDefinitionsInput) (*ecs.ListTaskDefinitionsOutput, error) {
			pages++
			assert.Equal(t, "demo", aws.ToString(in.FamilyPrefix))
			assert.Equal(t, ecstypes.TaskDefinitionStatusActive, in.Status)
			if pages == 1 {
				return &ecs.ListTaskDefinitionsOutput{
					TaskDefinitionArns: []string{"arn:task:1", "arn:task:2"},
					NextToken:          aws.String("next"),
				}, nil
			}
			return &ecs.ListTaskDefinitionsOutput{
				TaskDefinitionArns: []string{"arn:task:3"},
			}, nil
		},
		deregisterTaskDefinition: func(in *ecs.DeregisterTaskDefinitionInput) (*ecs.DeregisterTaskDefinitionOutput, error) {
			deregistered = append(deregistered, aws.ToString(in.TaskDefinition))
			return &ecs.DeregisterTaskDefinitionOutput{}, nil
		},
	}

	err := NewProvisioner(mock).Teardown(context.Background(), provisioning.NewMockObserver(), teardownSpec())
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:task:1", "arn:task:2", "arn:task:3"}, deregistered)
}

func TestTeardown_EveryStepFailingStillCompletes(t *testing.T) {
	t.Parallel()

	boom := errors.New("access denied")
	mock := &mockECS{
		updateService:       func(*ecs.UpdateServiceInput) (*ecs.UpdateServiceOutput, error) { return nil, boom },
		deleteService:       func(*ecs.DeleteServiceInput) (*ecs.DeleteServiceOutput, error) { return nil, boom },
		deleteCluster:       func(*ecs.DeleteClusterInput) (*ecs.DeleteClusterOutput, error) { return nil, boom },
		listTaskDefinitions: func(*ecs.ListTaskDefinitionsInput) (*ecs.ListTaskDefinitionsOutput, error) { return nil, boom },
	}

	obs := provisioning.NewMockObserver()
	err := NewProvisioner(mock).Teardown(context.Background(), obs, teardownSpec())
	require.NoError(t, err)
	assert.Len(t, obs.Warnings, 4)
}
