// Package awsapi bundles the AWS service clients used by the provisioners
// and centralizes API error classification.
package awsapi

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Clients holds one client per service the orchestrator touches. All clients
// share the same resolved credentials and region.
type Clients struct {
	EC2  *ec2.Client
	ELB  *elasticloadbalancingv2.Client
	ECR  *ecr.Client
	Logs *cloudwatchlogs.Client
	IAM  *iam.Client
	ECS  *ecs.Client
	S3   *s3.Client
	STS  *sts.Client
}

// New resolves the default AWS configuration for the given region and
// constructs the client bundle.
func New(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Clients{
		EC2:  ec2.NewFromConfig(cfg),
		ELB:  elasticloadbalancingv2.NewFromConfig(cfg),
		ECR:  ecr.NewFromConfig(cfg),
		Logs: cloudwatchlogs.NewFromConfig(cfg),
		IAM:  iam.NewFromConfig(cfg),
		ECS:  ecs.NewFromConfig(cfg),
		S3:   s3.NewFromConfig(cfg),
		STS:  sts.NewFromConfig(cfg),
	}, nil
}

// AccountID looks up the caller's account id; it feeds resource naming
// (bucket names, default image URIs).
func (c *Clients) AccountID(ctx context.Context) (string, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("caller identity has no account id")
	}
	return *out.Account, nil
}
