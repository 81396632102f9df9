// Package logsink provisions the stack's CloudWatch log group.
package logsink

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
)

const retentionDays = 14

// API is the CloudWatch Logs surface the provisioner needs.
type API interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	DeleteLogGroup(ctx context.Context, in *cloudwatchlogs.DeleteLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

// Provisioner creates and tears down the stack's log group.
type Provisioner struct {
	api API
}

// NewProvisioner creates a new log sink provisioner.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "logsink"
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	group, err := p.Ensure(ctx, ctx.Config.Name)
	if err != nil {
		return err
	}
	ctx.State.LogGroup = group
	ctx.Observer.Printf("[logsink] log group %s", group)
	return nil
}

// Ensure creates the log group if absent and (re)applies the retention
// policy either way.
func (p *Provisioner) Ensure(ctx context.Context, name string) (string, error) {
	group := naming.LogGroup(name)
	if _, err := p.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(group),
	}); err != nil && !awsapi.IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to create log group %s: %w", group, err)
	}
	if _, err := p.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(group),
		RetentionInDays: aws.Int32(retentionDays),
	}); err != nil {
		return "", fmt.Errorf("failed to set retention on %s: %w", group, err)
	}
	return group, nil
}

// Teardown deletes the log group, tolerating absence.
func (p *Provisioner) Teardown(ctx context.Context, obs provisioning.Observer, group string) error {
	if _, err := p.api.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(group),
	}); err != nil {
		if awsapi.IsNotFound(err) {
			obs.Printf("[logsink] log group %s already gone", group)
			return nil
		}
		return fmt.Errorf("failed to delete log group %s: %w", group, err)
	}
	obs.Printf("[logsink] log group %s deleted", group)
	return nil
}
