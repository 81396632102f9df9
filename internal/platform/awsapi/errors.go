package awsapi

import (
	"errors"
	"strings"

	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// The helpers below are the closed set of "ignorable" API failures. During
// creation an AlreadyExists is treated as success; during deletion a NotFound
// is treated as success. Anything not matched here propagates.

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var ecrNotFound *ecrtypes.RepositoryNotFoundException
	if errors.As(err, &ecrNotFound) {
		return true
	}
	var imgNotFound *ecrtypes.ImageNotFoundException
	if errors.As(err, &imgNotFound) {
		return true
	}
	var iamNotFound *iamtypes.NoSuchEntityException
	if errors.As(err, &iamNotFound) {
		return true
	}
	var cwlNotFound *cwltypes.ResourceNotFoundException
	if errors.As(err, &cwlNotFound) {
		return true
	}
	var clusterNotFound *ecstypes.ClusterNotFoundException
	if errors.As(err, &clusterNotFound) {
		return true
	}
	var serviceNotFound *ecstypes.ServiceNotFoundException
	if errors.As(err, &serviceNotFound) {
		return true
	}
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}

	switch code := errorCode(err); {
	case code == "":
		return false
	case code == "NotFound" || code == "NoSuchBucket" || code == "NoSuchEntity":
		return true
	case code == "LoadBalancerNotFound" || code == "TargetGroupNotFound" || code == "ListenerNotFound":
		return true
	case code == "ResourceNotFoundException" || code == "RepositoryNotFoundException" || code == "ImageNotFoundException":
		return true
	case code == "ClusterNotFoundException" || code == "ServiceNotFoundException":
		return true
	// EC2 uses per-resource codes of the form Invalid<Thing>.NotFound or
	// Invalid<Thing>ID.NotFound.
	case strings.HasSuffix(code, ".NotFound"):
		return true
	}
	return false
}

// IsAlreadyExists reports whether err means the resource is already there.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}

	var cwlExists *cwltypes.ResourceAlreadyExistsException
	if errors.As(err, &cwlExists) {
		return true
	}
	var ecrExists *ecrtypes.RepositoryAlreadyExistsException
	if errors.As(err, &ecrExists) {
		return true
	}
	var iamExists *iamtypes.EntityAlreadyExistsException
	if errors.As(err, &iamExists) {
		return true
	}
	var owned *s3types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var taken *s3types.BucketAlreadyExists
	if errors.As(err, &taken) {
		return true
	}

	switch errorCode(err) {
	case "ResourceAlreadyExistsException", "RepositoryAlreadyExistsException",
		"EntityAlreadyExists", "BucketAlreadyOwnedByYou", "BucketAlreadyExists",
		"DuplicateLoadBalancerName", "DuplicateTargetGroupName":
		return true
	}
	return false
}

// IsDuplicateRule reports whether err is EC2's duplicate security-group rule
// error, raised when an identical ingress/egress rule is already present.
func IsDuplicateRule(err error) bool {
	return errorCode(err) == "InvalidPermission.Duplicate"
}

// errorCode extracts the API error code, or "" for non-API errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
