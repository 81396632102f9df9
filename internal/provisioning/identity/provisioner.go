// Package identity provisions the stack's task-execution IAM role.
package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
)

// executionPolicyARN is the managed policy every task-execution role needs
// to pull images and write logs.
const executionPolicyARN = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"

// trustPolicy allows the compute service's tasks to assume the role.
const trustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ecs-tasks.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// API is the IAM surface the provisioner needs.
type API interface {
	GetRole(ctx context.Context, in *iam.GetRoleInput, opts ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, opts ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, opts ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, in *iam.DetachRolePolicyInput, opts ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	ListRolePolicies(ctx context.Context, in *iam.ListRolePoliciesInput, opts ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	DeleteRolePolicy(ctx context.Context, in *iam.DeleteRolePolicyInput, opts ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	DeleteRole(ctx context.Context, in *iam.DeleteRoleInput, opts ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

// Provisioner creates and tears down the stack's execution role.
type Provisioner struct {
	api API
}

// NewProvisioner creates a new identity provisioner.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "identity"
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	arn, err := p.Ensure(ctx, ctx.Config.Name)
	if err != nil {
		return err
	}
	ctx.State.RoleARN = arn
	ctx.Observer.Printf("[identity] execution role %s", arn)
	return nil
}

// Ensure fetches the execution role by name, creating it when absent, and
// attaches the managed execution policy, tolerating already-attached.
func (p *Provisioner) Ensure(ctx context.Context, name string) (string, error) {
	roleName := naming.ExecutionRole(name)

	out, err := p.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	switch {
	case err == nil:
		// fall through to policy attachment
	case awsapi.IsNotFound(err):
		created, err := p.api.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(roleName),
			AssumeRolePolicyDocument: aws.String(trustPolicy),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create role %s: %w", roleName, err)
		}
		out = &iam.GetRoleOutput{Role: created.Role}
	default:
		return "", fmt.Errorf("failed to get role %s: %w", roleName, err)
	}

	if _, err := p.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(executionPolicyARN),
	}); err != nil && !awsapi.IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to attach execution policy to %s: %w", roleName, err)
	}

	return aws.ToString(out.Role.Arn), nil
}

// Teardown detaches the managed policy, deletes inline policies, and deletes
// the role. Every step tolerates absence.
func (p *Provisioner) Teardown(ctx context.Context, obs provisioning.Observer, roleName string) error {
	if _, err := p.api.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(executionPolicyARN),
	}); err != nil && !awsapi.IsNotFound(err) {
		obs.Warnf("[identity] failed to detach execution policy from %s: %v", roleName, err)
	}

	inline, err := p.api.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: aws.String(roleName)})
	if err != nil {
		if awsapi.IsNotFound(err) {
			obs.Printf("[identity] role %s already gone", roleName)
			return nil
		}
		obs.Warnf("[identity] failed to list inline policies on %s: %v", roleName, err)
	} else {
		for _, policy := range inline.PolicyNames {
			if _, err := p.api.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   aws.String(roleName),
				PolicyName: aws.String(policy),
			}); err != nil && !awsapi.IsNotFound(err) {
				obs.Warnf("[identity] failed to delete inline policy %s: %v", policy, err)
			}
		}
	}

	if _, err := p.api.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)}); err != nil {
		if awsapi.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete role %s: %w", roleName, err)
	}
	obs.Printf("[identity] role %s deleted", roleName)
	return nil
}
