package naming

import "fmt"

// Naming functions for stack resources.
// Every AWS resource created for a stack follows a consistent naming pattern
// derived from the stack name, so teardown can locate resources even when no
// manifest survives.

func VPC(stack string) string {
	return fmt.Sprintf("%s-vpc", stack)
}

func InternetGateway(stack string) string {
	return fmt.Sprintf("%s-igw", stack)
}

func RouteTable(stack string) string {
	return fmt.Sprintf("%s-rt", stack)
}

func PublicSubnet(stack string, index int) string {
	return fmt.Sprintf("%s-public-%d", stack, index+1)
}

func ALBSecurityGroup(stack string) string {
	return fmt.Sprintf("%s-alb-sg", stack)
}

func ServiceSecurityGroup(stack string) string {
	return fmt.Sprintf("%s-svc-sg", stack)
}

func LoadBalancer(stack string) string {
	return fmt.Sprintf("%s-alb", stack)
}

func TargetGroup(stack string) string {
	return fmt.Sprintf("%s-tg", stack)
}

func Repository(stack string) string {
	return stack
}

func LogGroup(stack string) string {
	return fmt.Sprintf("/ecs/%s", stack)
}

func ExecutionRole(stack string) string {
	return fmt.Sprintf("%s-task-execution", stack)
}

func Cluster(stack string) string {
	return stack
}

func Service(stack string) string {
	return stack
}

func TaskFamily(stack string) string {
	return stack
}

func Bucket(stack, accountID string) string {
	return fmt.Sprintf("%s-%s-bucket", stack, accountID)
}

// DefaultImage is the image URI used when no override is given: the stack's
// own ECR repository, tag "latest".
func DefaultImage(accountID, region, stack string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s:latest", accountID, region, stack)
}
