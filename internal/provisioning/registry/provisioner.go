// Package registry provisions the stack's ECR repository.
package registry

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
)

// API is the ECR surface the provisioner needs.
type API interface {
	DescribeRepositories(ctx context.Context, in *ecr.DescribeRepositoriesInput, opts ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, in *ecr.CreateRepositoryInput, opts ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	DescribeImages(ctx context.Context, in *ecr.DescribeImagesInput, opts ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
	DeleteRepository(ctx context.Context, in *ecr.DeleteRepositoryInput, opts ...func(*ecr.Options)) (*ecr.DeleteRepositoryOutput, error)
}

// Provisioner creates and tears down the stack's container registry.
type Provisioner struct {
	api API
}

// NewProvisioner creates a new registry provisioner.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "registry"
}

// Provision implements the provisioning.Phase interface. After ensuring the
// repository it checks for a deployable image and warns, non-fatally, when
// none has been pushed yet.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	uri, err := p.Ensure(ctx, ctx.Config.Name)
	if err != nil {
		return err
	}
	ctx.State.RegistryURI = uri
	ctx.Observer.Printf("[registry] repository %s", uri)

	if ctx.Config.ImageOverride == "" {
		has, err := p.HasTag(ctx, ctx.Config.Name, "latest")
		if err != nil {
			return err
		}
		if !has {
			ctx.Observer.Warnf("[registry] no %s:latest image found; push one before the service can start", naming.Repository(ctx.Config.Name))
		}
	}
	return nil
}

// Ensure fetches the repository by name and creates it when absent,
// returning the repository URI either way.
func (p *Provisioner) Ensure(ctx context.Context, name string) (string, error) {
	repoName := naming.Repository(name)
	out, err := p.api.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{repoName},
	})
	if err == nil && len(out.Repositories) > 0 {
		return aws.ToString(out.Repositories[0].RepositoryUri), nil
	}
	if err != nil && !awsapi.IsNotFound(err) {
		return "", fmt.Errorf("failed to describe repository %s: %w", repoName, err)
	}

	created, err := p.api.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(repoName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create repository %s: %w", repoName, err)
	}
	return aws.ToString(created.Repository.RepositoryUri), nil
}

// HasTag reports whether the repository holds an image with the given tag.
// A missing repository or image counts as no.
func (p *Provisioner) HasTag(ctx context.Context, name, tag string) (bool, error) {
	out, err := p.api.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(naming.Repository(name)),
		ImageIds:       []ecrtypes.ImageIdentifier{{ImageTag: aws.String(tag)}},
	})
	if err != nil {
		if awsapi.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe images in %s: %w", naming.Repository(name), err)
	}
	return len(out.ImageDetails) > 0, nil
}

// Teardown force-deletes the repository together with any images in it.
func (p *Provisioner) Teardown(ctx context.Context, obs provisioning.Observer, repoName string) error {
	if _, err := p.api.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
		RepositoryName: aws.String(repoName),
		Force:          true,
	}); err != nil {
		if awsapi.IsNotFound(err) {
			obs.Printf("[registry] repository %s already gone", repoName)
			return nil
		}
		return fmt.Errorf("failed to delete repository %s: %w", repoName, err)
	}
	obs.Printf("[registry] repository %s deleted", repoName)
	return nil
}
