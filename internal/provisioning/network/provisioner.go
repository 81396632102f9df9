// Package network provisions the stack's VPC, subnets, routing, and
// security groups.
package network

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
)

const (
	vpcCIDR = "10.0.0.0/16"
	anyCIDR = "0.0.0.0/0"
)

var subnetCIDRs = []string{"10.0.1.0/24", "10.0.2.0/24"}

// API is the EC2 surface the provisioner needs.
type API interface {
	CreateVpc(ctx context.Context, in *ec2.CreateVpcInput, opts ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error)
	ModifyVpcAttribute(ctx context.Context, in *ec2.ModifyVpcAttributeInput, opts ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error)
	CreateTags(ctx context.Context, in *ec2.CreateTagsInput, opts ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	CreateInternetGateway(ctx context.Context, in *ec2.CreateInternetGatewayInput, opts ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error)
	AttachInternetGateway(ctx context.Context, in *ec2.AttachInternetGatewayInput, opts ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error)
	CreateRouteTable(ctx context.Context, in *ec2.CreateRouteTableInput, opts ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error)
	CreateRoute(ctx context.Context, in *ec2.CreateRouteInput, opts ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error)
	DescribeAvailabilityZones(ctx context.Context, in *ec2.DescribeAvailabilityZonesInput, opts ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error)
	CreateSubnet(ctx context.Context, in *ec2.CreateSubnetInput, opts ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error)
	ModifySubnetAttribute(ctx context.Context, in *ec2.ModifySubnetAttributeInput, opts ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error)
	AssociateRouteTable(ctx context.Context, in *ec2.AssociateRouteTableInput, opts ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error)
	CreateSecurityGroup(ctx context.Context, in *ec2.CreateSecurityGroupInput, opts ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, opts ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	AuthorizeSecurityGroupEgress(ctx context.Context, in *ec2.AuthorizeSecurityGroupEgressInput, opts ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupEgressOutput, error)

	DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, opts ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeNetworkInterfaces(ctx context.Context, in *ec2.DescribeNetworkInterfacesInput, opts ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error)
	DeleteNetworkInterface(ctx context.Context, in *ec2.DeleteNetworkInterfaceInput, opts ...func(*ec2.Options)) (*ec2.DeleteNetworkInterfaceOutput, error)
	DescribeNatGateways(ctx context.Context, in *ec2.DescribeNatGatewaysInput, opts ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
	DeleteNatGateway(ctx context.Context, in *ec2.DeleteNatGatewayInput, opts ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error)
	DescribeVpcEndpoints(ctx context.Context, in *ec2.DescribeVpcEndpointsInput, opts ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error)
	DeleteVpcEndpoints(ctx context.Context, in *ec2.DeleteVpcEndpointsInput, opts ...func(*ec2.Options)) (*ec2.DeleteVpcEndpointsOutput, error)
	DescribeInternetGateways(ctx context.Context, in *ec2.DescribeInternetGatewaysInput, opts ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error)
	DetachInternetGateway(ctx context.Context, in *ec2.DetachInternetGatewayInput, opts ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error)
	DeleteInternetGateway(ctx context.Context, in *ec2.DeleteInternetGatewayInput, opts ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error)
	DescribeRouteTables(ctx context.Context, in *ec2.DescribeRouteTablesInput, opts ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error)
	DisassociateRouteTable(ctx context.Context, in *ec2.DisassociateRouteTableInput, opts ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error)
	DeleteRoute(ctx context.Context, in *ec2.DeleteRouteInput, opts ...func(*ec2.Options)) (*ec2.DeleteRouteOutput, error)
	DeleteRouteTable(ctx context.Context, in *ec2.DeleteRouteTableInput, opts ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error)
	DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DeleteSubnet(ctx context.Context, in *ec2.DeleteSubnetInput, opts ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error)
	DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	DeleteSecurityGroup(ctx context.Context, in *ec2.DeleteSecurityGroupInput, opts ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
	DeleteVpc(ctx context.Context, in *ec2.DeleteVpcInput, opts ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error)
}

// Provisioner creates and tears down the stack's network resources.
type Provisioner struct {
	api API
}

// NewProvisioner creates a new network provisioner.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "network"
}

// Provision implements the provisioning.Phase interface. A network record
// already present in the state (restored from a manifest) is reused as-is;
// Ensure itself always creates new objects.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if ctx.State.Network != nil {
		ctx.Observer.Printf("[network] VPC %s already recorded, skipping", ctx.State.Network.VPCID)
		return nil
	}

	rec, err := p.Ensure(ctx, ctx.Config.Name, ctx.Config.ContainerPort)
	if err != nil {
		return err
	}
	ctx.State.Network = rec
	ctx.Observer.Printf("[network] VPC %s ready with subnets %v", rec.VPCID, rec.SubnetIDs)
	return nil
}

// Ensure creates the VPC, internet gateway, route table with default route,
// two public subnets in distinct availability zones, and the two security
// groups. All objects are tagged with the stack name for later discovery.
func (p *Provisioner) Ensure(ctx context.Context, name string, containerPort int32) (*provisioning.NetworkRecord, error) {
	vpcOut, err := p.api.CreateVpc(ctx, &ec2.CreateVpcInput{CidrBlock: aws.String(vpcCIDR)})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := aws.ToString(vpcOut.Vpc.VpcId)

	for _, attr := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(vpcID), EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(vpcID), EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := p.api.ModifyVpcAttribute(ctx, attr); err != nil {
			return nil, fmt.Errorf("failed to modify VPC attribute: %w", err)
		}
	}
	if err := p.tag(ctx, []string{vpcID}, naming.VPC(name), name); err != nil {
		return nil, err
	}

	igwOut, err := p.api.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := aws.ToString(igwOut.InternetGateway.InternetGatewayId)
	if _, err := p.api.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	}); err != nil {
		return nil, fmt.Errorf("failed to attach internet gateway: %w", err)
	}
	if err := p.tag(ctx, []string{igwID}, naming.InternetGateway(name), name); err != nil {
		return nil, err
	}

	rtOut, err := p.api.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{VpcId: aws.String(vpcID)})
	if err != nil {
		return nil, fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := aws.ToString(rtOut.RouteTable.RouteTableId)
	if _, err := p.api.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(rtID),
		DestinationCidrBlock: aws.String(anyCIDR),
		GatewayId:            aws.String(igwID),
	}); err != nil {
		return nil, fmt.Errorf("failed to create default route: %w", err)
	}
	if err := p.tag(ctx, []string{rtID}, naming.RouteTable(name), name); err != nil {
		return nil, err
	}

	zones, err := p.availableZones(ctx, len(subnetCIDRs))
	if err != nil {
		return nil, err
	}

	subnetIDs := make([]string, 0, len(subnetCIDRs))
	for i, cidr := range subnetCIDRs {
		snOut, err := p.api.CreateSubnet(ctx, &ec2.CreateSubnetInput{
			VpcId:            aws.String(vpcID),
			CidrBlock:        aws.String(cidr),
			AvailabilityZone: aws.String(zones[i]),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create subnet %s: %w", cidr, err)
		}
		snID := aws.ToString(snOut.Subnet.SubnetId)
		if _, err := p.api.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(snID),
			MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		}); err != nil {
			return nil, fmt.Errorf("failed to enable public IPs on subnet %s: %w", snID, err)
		}
		if err := p.tag(ctx, []string{snID}, naming.PublicSubnet(name, i), name); err != nil {
			return nil, err
		}
		if _, err := p.api.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			SubnetId:     aws.String(snID),
			RouteTableId: aws.String(rtID),
		}); err != nil {
			return nil, fmt.Errorf("failed to associate route table with subnet %s: %w", snID, err)
		}
		subnetIDs = append(subnetIDs, snID)
	}

	albSG, err := p.createSecurityGroup(ctx, naming.ALBSecurityGroup(name), "ALB SG", vpcID, name)
	if err != nil {
		return nil, err
	}
	if _, err := p.api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(albSG),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(80),
			ToPort:     aws.Int32(80),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(anyCIDR)}},
		}},
	}); err != nil {
		return nil, fmt.Errorf("failed to authorize ALB ingress: %w", err)
	}
	if err := p.allowAllEgress(ctx, albSG); err != nil {
		return nil, err
	}

	svcSG, err := p.createSecurityGroup(ctx, naming.ServiceSecurityGroup(name), "Service SG", vpcID, name)
	if err != nil {
		return nil, err
	}
	if _, err := p.api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(svcSG),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol:       aws.String("tcp"),
			FromPort:         aws.Int32(containerPort),
			ToPort:           aws.Int32(containerPort),
			UserIdGroupPairs: []ec2types.UserIdGroupPair{{GroupId: aws.String(albSG)}},
		}},
	}); err != nil {
		return nil, fmt.Errorf("failed to authorize service ingress: %w", err)
	}
	if err := p.allowAllEgress(ctx, svcSG); err != nil {
		return nil, err
	}

	return &provisioning.NetworkRecord{
		VPCID:                  vpcID,
		SubnetIDs:              subnetIDs,
		ALBSecurityGroupID:     albSG,
		ServiceSecurityGroupID: svcSG,
	}, nil
}

func (p *Provisioner) tag(ctx context.Context, ids []string, nameTag, project string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.api.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: ids,
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String(nameTag)},
			{Key: aws.String("Project"), Value: aws.String(project)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to tag %v: %w", ids, err)
	}
	return nil
}

func (p *Provisioner) availableZones(ctx context.Context, n int) ([]string, error) {
	out, err := p.api.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe availability zones: %w", err)
	}
	var zones []string
	for _, z := range out.AvailabilityZones {
		if z.State == ec2types.AvailabilityZoneStateAvailable {
			zones = append(zones, aws.ToString(z.ZoneName))
		}
		if len(zones) == n {
			break
		}
	}
	if len(zones) < n {
		return nil, fmt.Errorf("need %d available zones, found %d", n, len(zones))
	}
	return zones, nil
}

func (p *Provisioner) createSecurityGroup(ctx context.Context, groupName, desc, vpcID, project string) (string, error) {
	out, err := p.api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(groupName),
		Description: aws.String(desc),
		VpcId:       aws.String(vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", groupName, err)
	}
	sgID := aws.ToString(out.GroupId)
	if err := p.tag(ctx, []string{sgID}, groupName, project); err != nil {
		return "", err
	}
	return sgID, nil
}

// allowAllEgress opens unrestricted egress. Security groups come with a
// default allow-all egress rule, so the duplicate-rule error is expected and
// swallowed.
func (p *Provisioner) allowAllEgress(ctx context.Context, sgID string) error {
	_, err := p.api.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
		GroupId: aws.String(sgID),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("-1"),
			FromPort:   aws.Int32(0),
			ToPort:     aws.Int32(0),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(anyCIDR)}},
		}},
	})
	if err != nil && !awsapi.IsDuplicateRule(err) {
		return fmt.Errorf("failed to authorize egress on %s: %w", sgID, err)
	}
	return nil
}
