// Package compute provisions the stack's ECS cluster, task definition, and
// Fargate service.
package compute

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
	"github.com/ecstack/ecstack/internal/wait"
)

// API is the ECS surface the provisioner needs.
type API interface {
	DescribeClusters(ctx context.Context, in *ecs.DescribeClustersInput, opts ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
	CreateCluster(ctx context.Context, in *ecs.CreateClusterInput, opts ...func(*ecs.Options)) (*ecs.CreateClusterOutput, error)
	RegisterTaskDefinition(ctx context.Context, in *ecs.RegisterTaskDefinitionInput, opts ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	DescribeServices(ctx context.Context, in *ecs.DescribeServicesInput, opts ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	CreateService(ctx context.Context, in *ecs.CreateServiceInput, opts ...func(*ecs.Options)) (*ecs.CreateServiceOutput, error)
	UpdateService(ctx context.Context, in *ecs.UpdateServiceInput, opts ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	DeleteService(ctx context.Context, in *ecs.DeleteServiceInput, opts ...func(*ecs.Options)) (*ecs.DeleteServiceOutput, error)
	ListTaskDefinitions(ctx context.Context, in *ecs.ListTaskDefinitionsInput, opts ...func(*ecs.Options)) (*ecs.ListTaskDefinitionsOutput, error)
	DeregisterTaskDefinition(ctx context.Context, in *ecs.DeregisterTaskDefinitionInput, opts ...func(*ecs.Options)) (*ecs.DeregisterTaskDefinitionOutput, error)
	DeleteCluster(ctx context.Context, in *ecs.DeleteClusterInput, opts ...func(*ecs.Options)) (*ecs.DeleteClusterOutput, error)
	ListClusters(ctx context.Context, in *ecs.ListClustersInput, opts ...func(*ecs.Options)) (*ecs.ListClustersOutput, error)
}

// Provisioner creates and tears down the stack's compute resources.
type Provisioner struct {
	api API
}

// NewProvisioner creates a new compute provisioner.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "compute"
}

// Provision implements the provisioning.Phase interface. Compute depends on
// every other resource family, so missing records are hard errors rather
// than something to paper over.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	st := ctx.State
	switch {
	case st.Network == nil:
		return fmt.Errorf("compute requires a network record; network phase has not run")
	case st.LoadBalancer == nil:
		return fmt.Errorf("compute requires a load balancer record; loadbalancer phase has not run")
	case st.RegistryURI == "":
		return fmt.Errorf("compute requires a registry; registry phase has not run")
	case st.LogGroup == "":
		return fmt.Errorf("compute requires a log group; logsink phase has not run")
	case st.RoleARN == "":
		return fmt.Errorf("compute requires an execution role; identity phase has not run")
	}

	cfg := ctx.Config

	cluster, err := p.EnsureCluster(ctx, naming.Cluster(cfg.Name))
	if err != nil {
		return err
	}
	st.Cluster = cluster
	ctx.Observer.Printf("[compute] cluster %s", cluster)

	taskDefARN, err := p.RegisterTaskDefinition(ctx, TaskDefinitionSpec{
		Name:          cfg.Name,
		Region:        cfg.Region,
		AccountID:     st.AccountID,
		LogGroup:      st.LogGroup,
		ContainerPort: cfg.ContainerPort,
		CPU:           cfg.CPU,
		Memory:        cfg.Memory,
		RoleARN:       st.RoleARN,
		Image:         cfg.ImageOverride,
	})
	if err != nil {
		return err
	}
	st.TaskDefinitionARN = taskDefARN
	ctx.Observer.Printf("[compute] task definition %s", taskDefARN)

	if err := p.CreateOrUpdateService(ctx, ServiceSpec{
		Name:           naming.Service(cfg.Name),
		Cluster:        cluster,
		TaskDefinition: taskDefARN,
		SubnetIDs:      st.Network.SubnetIDs,
		SecurityGroup:  st.Network.ServiceSecurityGroupID,
		TargetGroupARN: st.LoadBalancer.TargetGroupARN,
		ContainerPort:  cfg.ContainerPort,
		Wait:           cfg.Wait,
		StableTimeout:  ctx.Timeouts.ServiceStable,
		PollInterval:   ctx.Timeouts.PollInterval,
	}, ctx.Observer); err != nil {
		return err
	}
	st.Service = naming.Service(cfg.Name)
	return nil
}

// EnsureCluster creates the cluster unless an active one with that name
// already exists.
func (p *Provisioner) EnsureCluster(ctx context.Context, name string) (string, error) {
	out, err := p.api.DescribeClusters(ctx, &ecs.DescribeClustersInput{Clusters: []string{name}})
	if err != nil {
		return "", fmt.Errorf("failed to describe cluster %s: %w", name, err)
	}
	for _, c := range out.Clusters {
		if aws.ToString(c.Status) == "ACTIVE" {
			return name, nil
		}
	}
	if _, err := p.api.CreateCluster(ctx, &ecs.CreateClusterInput{ClusterName: aws.String(name)}); err != nil {
		return "", fmt.Errorf("failed to create cluster %s: %w", name, err)
	}
	return name, nil
}

// TaskDefinitionSpec is the input to RegisterTaskDefinition.
type TaskDefinitionSpec struct {
	Name          string
	Region        string
	AccountID     string
	LogGroup      string
	ContainerPort int32
	CPU           int32
	Memory        int32
	RoleARN       string
	Image         string // empty means the stack's own repository, tag latest
}

// RegisterTaskDefinition registers a new task definition revision. Task
// definitions are versioned and never updated in place, so every call
// produces a new revision.
func (p *Provisioner) RegisterTaskDefinition(ctx context.Context, spec TaskDefinitionSpec) (string, error) {
	image := spec.Image
	if image == "" {
		image = naming.DefaultImage(spec.AccountID, spec.Region, spec.Name)
	}

	out, err := p.api.RegisterTaskDefinition(ctx, &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(naming.TaskFamily(spec.Name)),
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		Cpu:                     aws.String(strconv.Itoa(int(spec.CPU))),
		Memory:                  aws.String(strconv.Itoa(int(spec.Memory))),
		ExecutionRoleArn:        aws.String(spec.RoleARN),
		RuntimePlatform: &ecstypes.RuntimePlatform{
			CpuArchitecture:       ecstypes.CPUArchitectureX8664,
			OperatingSystemFamily: ecstypes.OSFamilyLinux,
		},
		ContainerDefinitions: []ecstypes.ContainerDefinition{{
			Name:      aws.String(spec.Name),
			Image:     aws.String(image),
			Essential: aws.Bool(true),
			PortMappings: []ecstypes.PortMapping{{
				ContainerPort: aws.Int32(spec.ContainerPort),
				HostPort:      aws.Int32(spec.ContainerPort),
				Protocol:      ecstypes.TransportProtocolTcp,
			}},
			LogConfiguration: &ecstypes.LogConfiguration{
				LogDriver: ecstypes.LogDriverAwslogs,
				Options: map[string]string{
					"awslogs-group":         spec.LogGroup,
					"awslogs-region":        spec.Region,
					"awslogs-stream-prefix": spec.Name,
				},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to register task definition: %w", err)
	}
	return aws.ToString(out.TaskDefinition.TaskDefinitionArn), nil
}

// ServiceSpec is the input to CreateOrUpdateService.
type ServiceSpec struct {
	Name           string
	Cluster        string
	TaskDefinition string
	SubnetIDs      []string
	SecurityGroup  string
	TargetGroupARN string
	ContainerPort  int32
	Wait           bool
	StableTimeout  time.Duration
	PollInterval   time.Duration
}

// CreateOrUpdateService creates the service, or updates it in place with the
// new task definition and a forced redeployment when a non-inactive service
// of that name already exists. With Wait set it blocks until the running
// count reaches the desired count of one.
func (p *Provisioner) CreateOrUpdateService(ctx context.Context, spec ServiceSpec, obs provisioning.Observer) error {
	exists := false
	desc, err := p.api.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(spec.Cluster),
		Services: []string{spec.Name},
	})
	if err != nil && !awsapi.IsNotFound(err) {
		return fmt.Errorf("failed to describe service %s: %w", spec.Name, err)
	}
	if desc != nil {
		for _, s := range desc.Services {
			if aws.ToString(s.Status) != "INACTIVE" {
				exists = true
			}
		}
	}

	if exists {
		obs.Printf("[compute] service %s exists, updating", spec.Name)
		if _, err := p.api.UpdateService(ctx, &ecs.UpdateServiceInput{
			Cluster:            aws.String(spec.Cluster),
			Service:            aws.String(spec.Name),
			TaskDefinition:     aws.String(spec.TaskDefinition),
			DesiredCount:       aws.Int32(1),
			ForceNewDeployment: true,
		}); err != nil {
			return fmt.Errorf("failed to update service %s: %w", spec.Name, err)
		}
	} else {
		if _, err := p.api.CreateService(ctx, &ecs.CreateServiceInput{
			Cluster:        aws.String(spec.Cluster),
			ServiceName:    aws.String(spec.Name),
			TaskDefinition: aws.String(spec.TaskDefinition),
			DesiredCount:   aws.Int32(1),
			LaunchType:     ecstypes.LaunchTypeFargate,
			NetworkConfiguration: &ecstypes.NetworkConfiguration{
				AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
					Subnets:        spec.SubnetIDs,
					SecurityGroups: []string{spec.SecurityGroup},
					AssignPublicIp: ecstypes.AssignPublicIpEnabled,
				},
			},
			LoadBalancers: []ecstypes.LoadBalancer{{
				TargetGroupArn: aws.String(spec.TargetGroupARN),
				ContainerName:  aws.String(spec.Name),
				ContainerPort:  aws.Int32(spec.ContainerPort),
			}},
			DeploymentController: &ecstypes.DeploymentController{Type: ecstypes.DeploymentControllerTypeEcs},
		}); err != nil {
			return fmt.Errorf("failed to create service %s: %w", spec.Name, err)
		}
	}

	if !spec.Wait {
		return nil
	}

	return wait.Until(ctx, func(ctx context.Context) (bool, error) {
		out, err := p.api.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(spec.Cluster),
			Services: []string{spec.Name},
		})
		if err != nil {
			return false, err
		}
		if len(out.Services) == 0 {
			return false, nil
		}
		s := out.Services[0]
		return s.RunningCount >= 1 && s.RunningCount == s.DesiredCount, nil
	}, "service stable", spec.StableTimeout, spec.PollInterval)
}
