package network

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
	"github.com/ecstack/ecstack/internal/wait"
)

// TeardownSpec is the input to Teardown. VPCID may be empty, in which case
// the VPC is located by its Name tag.
type TeardownSpec struct {
	Name          string
	VPCID         string
	ConfirmWindow time.Duration
	PollInterval  time.Duration
}

// Teardown removes all network resources for a stack. Dependent objects must
// go before the VPC itself accepts deletion, and the order below enforces
// that. Every step tolerates absence; other errors are warned and skipped so
// the remaining steps still run. After the VPC delete goes through, the
// disappearance is confirmed by polling; an unconfirmed deletion is warned,
// not fatal.
func (p *Provisioner) Teardown(ctx context.Context, obs provisioning.Observer, spec TeardownSpec) error {
	vpcID := spec.VPCID
	if vpcID == "" {
		id, err := p.findVPC(ctx, spec.Name)
		if err != nil {
			return err
		}
		if id == "" {
			obs.Printf("[network] no VPC named %s, nothing to delete", naming.VPC(spec.Name))
			return nil
		}
		vpcID = id
	}

	p.deleteNetworkInterfaces(ctx, obs, vpcID)
	p.deleteNatGateways(ctx, obs, vpcID)
	p.deleteVpcEndpoints(ctx, obs, vpcID)
	p.deleteInternetGateways(ctx, obs, vpcID)
	p.deleteRouteTables(ctx, obs, vpcID)
	p.deleteSubnets(ctx, obs, vpcID)
	p.deleteSecurityGroups(ctx, obs, vpcID)

	if _, err := p.api.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)}); err != nil {
		if awsapi.IsNotFound(err) {
			return nil
		}
		obs.Warnf("[network] failed to delete VPC %s: %v", vpcID, err)
		return nil
	}
	if err := wait.Until(ctx, func(ctx context.Context) (bool, error) {
		return p.vpcGone(ctx, vpcID)
	}, "vpc deletion", spec.ConfirmWindow, spec.PollInterval); err != nil {
		obs.Warnf("[network] VPC %s deletion unconfirmed: %v", vpcID, err)
		return nil
	}
	obs.Printf("[network] VPC %s deleted", vpcID)
	return nil
}

// vpcGone reports whether the VPC no longer describes.
func (p *Provisioner) vpcGone(ctx context.Context, vpcID string) (bool, error) {
	out, err := p.api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		if awsapi.IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return len(out.Vpcs) == 0, nil
}

// findVPC locates the stack's VPC by its Name tag.
func (p *Provisioner) findVPC(ctx context.Context, name string) (string, error) {
	out, err := p.api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("tag:Name"),
			Values: []string{naming.VPC(name)},
		}},
	})
	if err != nil {
		return "", err
	}
	if len(out.Vpcs) == 0 {
		return "", nil
	}
	return aws.ToString(out.Vpcs[0].VpcId), nil
}

func vpcFilter(vpcID string) []ec2types.Filter {
	return []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}
}

func (p *Provisioner) deleteNetworkInterfaces(ctx context.Context, obs provisioning.Observer, vpcID string) {
	out, err := p.api.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{Filters: vpcFilter(vpcID)})
	if err != nil {
		obs.Warnf("[network] failed to list network interfaces: %v", err)
		return
	}
	for _, eni := range out.NetworkInterfaces {
		if _, err := p.api.DeleteNetworkInterface(ctx, &ec2.DeleteNetworkInterfaceInput{
			NetworkInterfaceId: eni.NetworkInterfaceId,
		}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to delete ENI %s: %v", aws.ToString(eni.NetworkInterfaceId), err)
		}
	}
}

func (p *Provisioner) deleteNatGateways(ctx context.Context, obs provisioning.Observer, vpcID string) {
	out, err := p.api.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: vpcFilter(vpcID),
	})
	if err != nil {
		obs.Warnf("[network] failed to list NAT gateways: %v", err)
		return
	}
	for _, nat := range out.NatGateways {
		if _, err := p.api.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{
			NatGatewayId: nat.NatGatewayId,
		}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to delete NAT gateway %s: %v", aws.ToString(nat.NatGatewayId), err)
		}
	}
}

func (p *Provisioner) deleteVpcEndpoints(ctx context.Context, obs provisioning.Observer, vpcID string) {
	out, err := p.api.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{Filters: vpcFilter(vpcID)})
	if err != nil {
		obs.Warnf("[network] failed to list VPC endpoints: %v", err)
		return
	}
	for _, ep := range out.VpcEndpoints {
		if _, err := p.api.DeleteVpcEndpoints(ctx, &ec2.DeleteVpcEndpointsInput{
			VpcEndpointIds: []string{aws.ToString(ep.VpcEndpointId)},
		}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to delete VPC endpoint %s: %v", aws.ToString(ep.VpcEndpointId), err)
		}
	}
}

func (p *Provisioner) deleteInternetGateways(ctx context.Context, obs provisioning.Observer, vpcID string) {
	out, err := p.api.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("attachment.vpc-id"),
			Values: []string{vpcID},
		}},
	})
	if err != nil {
		obs.Warnf("[network] failed to list internet gateways: %v", err)
		return
	}
	for _, igw := range out.InternetGateways {
		igwID := aws.ToString(igw.InternetGatewayId)
		if _, err := p.api.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(vpcID),
		}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to detach internet gateway %s: %v", igwID, err)
		}
		if _, err := p.api.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
		}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to delete internet gateway %s: %v", igwID, err)
		}
	}
}

func (p *Provisioner) deleteRouteTables(ctx context.Context, obs provisioning.Observer, vpcID string) {
	out, err := p.api.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{Filters: vpcFilter(vpcID)})
	if err != nil {
		obs.Warnf("[network] failed to list route tables: %v", err)
		return
	}
	for _, rt := range out.RouteTables {
		rtID := aws.ToString(rt.RouteTableId)
		main := false
		for _, assoc := range rt.Associations {
			if aws.ToBool(assoc.Main) {
				main = true
				continue
			}
			if _, err := p.api.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: assoc.RouteTableAssociationId,
			}); err != nil && !awsapi.IsNotFound(err) {
				obs.Warnf("[network] failed to disassociate route table %s: %v", rtID, err)
			}
		}
		for _, r := range rt.Routes {
			if aws.ToString(r.DestinationCidrBlock) == anyCIDR && r.GatewayId != nil {
				if _, err := p.api.DeleteRoute(ctx, &ec2.DeleteRouteInput{
					RouteTableId:         aws.String(rtID),
					DestinationCidrBlock: aws.String(anyCIDR),
				}); err != nil && !awsapi.IsNotFound(err) {
					obs.Warnf("[network] failed to delete route on %s: %v", rtID, err)
				}
			}
		}
		// The main route table is deleted with the VPC.
		if main {
			continue
		}
		if _, err := p.api.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
			RouteTableId: aws.String(rtID),
		}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to delete route table %s: %v", rtID, err)
		}
	}
}

func (p *Provisioner) deleteSubnets(ctx context.Context, obs provisioning.Observer, vpcID string) {
	out, err := p.api.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: vpcFilter(vpcID)})
	if err != nil {
		obs.Warnf("[network] failed to list subnets: %v", err)
		return
	}
	for _, sn := range out.Subnets {
		if _, err := p.api.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: sn.SubnetId}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to delete subnet %s: %v", aws.ToString(sn.SubnetId), err)
		}
	}
}

func (p *Provisioner) deleteSecurityGroups(ctx context.Context, obs provisioning.Observer, vpcID string) {
	out, err := p.api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: vpcFilter(vpcID)})
	if err != nil {
		obs.Warnf("[network] failed to list security groups: %v", err)
		return
	}
	for _, sg := range out.SecurityGroups {
		if aws.ToString(sg.GroupName) == "default" {
			continue
		}
		if _, err := p.api.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: sg.GroupId}); err != nil && !awsapi.IsNotFound(err) {
			obs.Warnf("[network] failed to delete security group %s: %v", aws.ToString(sg.GroupId), err)
		}
	}
}
