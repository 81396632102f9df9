package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "demo-vpc", VPC("demo"))
	assert.Equal(t, "demo-igw", InternetGateway("demo"))
	assert.Equal(t, "demo-rt", RouteTable("demo"))
	assert.Equal(t, "demo-alb-sg", ALBSecurityGroup("demo"))
	assert.Equal(t, "demo-svc-sg", ServiceSecurityGroup("demo"))
	assert.Equal(t, "demo-alb", LoadBalancer("demo"))
	assert.Equal(t, "demo-tg", TargetGroup("demo"))
	assert.Equal(t, "/ecs/demo", LogGroup("demo"))
	assert.Equal(t, "demo-task-execution", ExecutionRole("demo"))
}

func TestStackNameEqualsResourceName(t *testing.T) {
	t.Parallel()

	// Repository, cluster, service and task family all reuse the stack name.
	assert.Equal(t, "demo", Repository("demo"))
	assert.Equal(t, "demo", Cluster("demo"))
	assert.Equal(t, "demo", Service("demo"))
	assert.Equal(t, "demo", TaskFamily("demo"))
}

func TestPublicSubnetIsOneBased(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "demo-public-1", PublicSubnet("demo", 0))
	assert.Equal(t, "demo-public-2", PublicSubnet("demo", 1))
}

func TestBucketIncludesAccountID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "demo-123456789012-bucket", Bucket("demo", "123456789012"))
}

func TestDefaultImage(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"123456789012.dkr.ecr.eu-west-1.amazonaws.com/demo:latest",
		DefaultImage("123456789012", "eu-west-1", "demo"))
}
