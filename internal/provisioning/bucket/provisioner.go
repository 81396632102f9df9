// Package bucket provisions the stack's optional S3 bucket.
package bucket

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ecstack/ecstack/internal/naming"
	"github.com/ecstack/ecstack/internal/platform/awsapi"
	"github.com/ecstack/ecstack/internal/provisioning"
)

// API is the S3 surface the provisioner needs.
type API interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, opts ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// Provisioner creates and tears down the stack's bucket.
type Provisioner struct {
	api API
}

// NewProvisioner creates a new bucket provisioner.
func NewProvisioner(api API) *Provisioner {
	return &Provisioner{api: api}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "bucket"
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	name, err := p.Ensure(ctx, ctx.Config.Name, ctx.State.AccountID, ctx.Config.Region)
	if err != nil {
		return err
	}
	ctx.State.BucketName = name
	ctx.Observer.Printf("[bucket] %s", name)
	return nil
}

// Ensure creates the bucket, tolerating one that already exists and is owned
// by us. us-east-1 must not carry a location constraint.
func (p *Provisioner) Ensure(ctx context.Context, name, accountID, region string) (string, error) {
	bucketName := naming.Bucket(name, accountID)
	in := &s3.CreateBucketInput{Bucket: aws.String(bucketName)}
	if region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if _, err := p.api.CreateBucket(ctx, in); err != nil && !awsapi.IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}
	return bucketName, nil
}

// Teardown empties the bucket and deletes it, tolerating absence.
func (p *Provisioner) Teardown(ctx context.Context, obs provisioning.Observer, bucketName string) error {
	if err := p.empty(ctx, bucketName); err != nil {
		if awsapi.IsNotFound(err) {
			obs.Printf("[bucket] %s already gone", bucketName)
			return nil
		}
		return fmt.Errorf("failed to empty bucket %s: %w", bucketName, err)
	}

	if _, err := p.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		if awsapi.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %s: %w", bucketName, err)
	}
	obs.Printf("[bucket] %s deleted", bucketName)
	return nil
}

func (p *Provisioner) empty(ctx context.Context, bucketName string) error {
	var token *string
	for {
		page, err := p.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucketName),
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}
		if len(page.Contents) > 0 {
			objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := p.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucketName),
				Delete: &s3types.Delete{Objects: objects},
			}); err != nil {
				return err
			}
		}
		if !aws.ToBool(page.IsTruncated) {
			return nil
		}
		token = page.NextContinuationToken
	}
}
