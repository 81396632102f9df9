// Package loadbalancer provisions the stack's application load balancer,
// target group, and listener.
package loadbalancer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
	"github.com/ecstack/ecstack/internal/wait"
)

// API is the ELBv2 surface the provisioner needs.
type API interface {
	CreateLoadBalancer(ctx context.Context, in *elb.CreateLoadBalancerInput, opts ...func(*elb.Options)) (*elb.CreateLoadBalancerOutput, error)
	CreateTargetGroup(ctx context.Context, in *elb.CreateTargetGroupInput, opts ...func(*elb.Options)) (*elb.CreateTargetGroupOutput, error)
	CreateListener(ctx context.Context, in *elb.CreateListenerInput, opts ...func(*elb.Options)) (*elb.CreateListenerOutput, error)
	DescribeLoadBalancers(ctx context.Context, in *elb.DescribeLoadBalancersInput, opts ...func(*elb.Options)) (*elb.DescribeLoadBalancersOutput, error)
	DescribeTargetGroups(ctx context.Context, in *elb.DescribeTargetGroupsInput, opts ...func(*elb.Options)) (*elb.DescribeTargetGroupsOutput, error)
	DescribeListeners(ctx context.Context, in *elb.DescribeListenersInput, opts ...func(*elb.Options)) (*elb.DescribeListenersOutput, error)
	DeleteListener(ctx context.Context, in *elb.DeleteListenerInput, opts ...func(*elb.Options)) (*elb.DeleteListenerOutput, error)
	DeleteLoadBalancer(ctx context.Context, in *elb.DeleteLoadBalancerInput, opts ...func(*elb.Options)) (*elb.DeleteLoadBalancerOutput, error)
	DeleteTargetGroup(ctx context.Context, in *elb.DeleteTargetGroupInput, opts ...func(*elb.Options)) (*elb.DeleteTargetGroupOutput, error)
}

// Provisioner creates and tears down the stack's load balancing resources.
type Provisioner struct {
	api API
}

// NewProvisioner creates a new load balancer provisioner.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "loadbalancer"
}

// Provision implements the provisioning.Phase interface. It requires the
// network phase to have run first.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	net := ctx.State.Network
	if net == nil {
		return fmt.Errorf("load balancer requires a network record; network phase has not run")
	}
	if ctx.State.LoadBalancer != nil {
		ctx.Observer.Printf("[loadbalancer] %s already recorded, skipping", ctx.State.LoadBalancer.DNSName)
		return nil
	}

	rec, err := p.Ensure(ctx, ctx.Config.Name, net.VPCID, net.SubnetIDs, net.ALBSecurityGroupID, ctx.Config.ContainerPort,
		ctx.Timeouts.LoadBalancerActive, ctx.Timeouts.PollInterval)
	if err != nil {
		return err
	}
	ctx.State.LoadBalancer = rec
	ctx.Observer.Printf("[loadbalancer] %s active", rec.DNSName)
	return nil
}

// Ensure creates an internet-facing application load balancer across the
// given subnets, an IP-target-type target group health-checked on "/", and a
// port-80 listener forwarding to it, then blocks until the load balancer
// reports active.
func (p *Provisioner) Ensure(
	ctx context.Context,
	name, vpcID string,
	subnetIDs []string,
	albSGID string,
	containerPort int32,
	activeTimeout, pollInterval time.Duration,
) (*provisioning.LoadBalancerRecord, error) {
	tags := []elbtypes.Tag{
		{Key: aws.String("Name"), Value: aws.String(naming.LoadBalancer(name))},
		{Key: aws.String("Project"), Value: aws.String(name)},
	}

	lbOut, err := p.api.CreateLoadBalancer(ctx, &elb.CreateLoadBalancerInput{
		Name:           aws.String(naming.LoadBalancer(name)),
		Subnets:        subnetIDs,
		SecurityGroups: []string{albSGID},
		Scheme:         elbtypes.LoadBalancerSchemeEnumInternetFacing,
		Type:           elbtypes.LoadBalancerTypeEnumApplication,
		IpAddressType:  elbtypes.IpAddressTypeIpv4,
		Tags:           tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer: %w", err)
	}
	lb := lbOut.LoadBalancers[0]
	lbARN := aws.ToString(lb.LoadBalancerArn)

	tgOut, err := p.api.CreateTargetGroup(ctx, &elb.CreateTargetGroupInput{
		Name:               aws.String(naming.TargetGroup(name)),
		Protocol:           elbtypes.ProtocolEnumHttp,
		Port:               aws.Int32(containerPort),
		VpcId:              aws.String(vpcID),
		TargetType:         elbtypes.TargetTypeEnumIp,
		HealthCheckEnabled: aws.Bool(true),
		HealthCheckPath:    aws.String("/"),
		Matcher:            &elbtypes.Matcher{HttpCode: aws.String("200-399")},
		Tags: []elbtypes.Tag{
			{Key: aws.String("Name"), Value: aws.String(naming.TargetGroup(name))},
			{Key: aws.String("Project"), Value: aws.String(name)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create target group: %w", err)
	}
	tgARN := aws.ToString(tgOut.TargetGroups[0].TargetGroupArn)

	lsOut, err := p.api.CreateListener(ctx, &elb.CreateListenerInput{
		LoadBalancerArn: aws.String(lbARN),
		Protocol:        elbtypes.ProtocolEnumHttp,
		Port:            aws.Int32(80),
		DefaultActions: []elbtypes.Action{{
			Type:           elbtypes.ActionTypeEnumForward,
			TargetGroupArn: aws.String(tgARN),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	err = wait.Until(ctx, func(ctx context.Context) (bool, error) {
		out, err := p.api.DescribeLoadBalancers(ctx, &elb.DescribeLoadBalancersInput{
			LoadBalancerArns: []string{lbARN},
		})
		if err != nil {
			return false, err
		}
		if len(out.LoadBalancers) == 0 || out.LoadBalancers[0].State == nil {
			return false, nil
		}
		return out.LoadBalancers[0].State.Code == elbtypes.LoadBalancerStateEnumActive, nil
	}, "load balancer active", activeTimeout, pollInterval)
	if err != nil {
		return nil, err
	}

	return &provisioning.LoadBalancerRecord{
		ARN:            lbARN,
		DNSName:        aws.ToString(lb.DNSName),
		TargetGroupARN: tgARN,
		ListenerARN:    aws.ToString(lsOut.Listeners[0].ListenerArn),
	}, nil
}

// Teardown deletes the stack's listeners, load balancer, and target group,
// located by their stack-derived names. Each step tolerates absence.
func (p *Provisioner) Teardown(ctx context.Context, obs provisioning.Observer, name string) error {
	lbOut, err := p.api.DescribeLoadBalancers(ctx, &elb.DescribeLoadBalancersInput{
		Names: []string{naming.LoadBalancer(name)},
	})
	switch {
	case err != nil && awsapi.IsNotFound(err):
		obs.Printf("[loadbalancer] %s already gone", naming.LoadBalancer(name))
	case err != nil:
		obs.Warnf("[loadbalancer] failed to look up %s: %v", naming.LoadBalancer(name), err)
	default:
		for _, lb := range lbOut.LoadBalancers {
			lbARN := aws.ToString(lb.LoadBalancerArn)
			p.deleteListeners(ctx, obs, lbARN)
			if _, err := p.api.DeleteLoadBalancer(ctx, &elb.DeleteLoadBalancerInput{
				LoadBalancerArn: aws.String(lbARN),
			}); err != nil && !awsapi.IsNotFound(err) {
				obs.Warnf("[loadbalancer] failed to delete %s: %v", lbARN, err)
			}
		}
	}

	tgOut, err := p.api.DescribeTargetGroups(ctx, &elb.DescribeTargetGroupsInput{
		Names: []string{naming.TargetGroup(name)},
	})
	if err != nil {
		if !awsapi.IsNotFound(err) {
			obs.Warnf("[loadbalancer] failed to look up target group %s: %v", naming.TargetGroup(name), err)
		}
		return nil
	}
	for _, tg := range tgOut.TargetGroups {
		if _, err := p.api.DeleteTargetGroup(ctx, &elb.DeleteTargetGroupInput{
			TargetGroupArn: tg.TargetGroupArn,
		}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[loadbalancer] failed to delete target group %s: %v", aws.ToString(tg.TargetGroupArn), err)
		}
	}
	return nil
}

func (p *Provisioner) deleteListeners(ctx context.Context, obs provisioning.Observer, lbARN string) {
	out, err := p.api.DescribeListeners(ctx, &elb.DescribeListenersInput{LoadBalancerArn: aws.String(lbARN)})
	if err != nil {
		if !awsapi.IsNotFound(err) {
			obs.Warnf("[loadbalancer] failed to list listeners: %v", err)
		}
		return
	}
	for _, ls := range out.Listeners {
		if _, err := p.api.DeleteListener(ctx, &elb.DeleteListenerInput{ListenerArn: ls.ListenerArn}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[loadbalancer] failed to delete listener %s: %v", aws.ToString(ls.ListenerArn), err)
		}
	}
}
