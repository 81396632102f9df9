package commands

import (
	"github.com/spf13/cobra"

	"github.com/ecstack/ecstack/cmd/ecstack/handlers"
	"github.com/ecstack/ecstack/internal/config"
)

// Up returns the up command.
//
// Up provisions the full stack in dependency order: network, load balancer,
// registry, log group, execution role, and the Fargate service. Identifiers
// for everything created are written to the stack's manifest and printed as
// a JSON document at the end.
func Up() *cobra.Command {
	var (
		name       string
		region     string
		port       int32
		image      string
		cpu        int32
		mem        int32
		noWait     bool
		withBucket bool
	)

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create the stack: VPC + ALB + ECR + CloudWatch Logs + IAM + ECS (Fargate)",
		Long: `Up provisions a complete application deployment stack.

Resources are created in dependency order and every identifier is recorded
in a per-stack manifest, which the down command later consumes. A failure
aborts the remaining steps but keeps the manifest of everything created so
far; such a partially created stack must be torn down explicitly with down.

Example:
  ecstack up --name demo --region eu-central-1 --container-port 8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds := config.DefaultKinds()
			if withBucket {
				kinds = append([]config.Kind{config.KindBucket}, kinds...)
			}
			cfg := &config.StackConfig{
				Name:          name,
				Region:        region,
				ContainerPort: port,
				CPU:           cpu,
				Memory:        mem,
				ImageOverride: image,
				Wait:          !noWait,
				Kinds:         kinds,
			}
			return handlers.Up(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Stack name, used as prefix for every resource (required)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (required)")
	cmd.Flags().Int32Var(&port, "container-port", 8080, "Container port the service listens on")
	cmd.Flags().StringVar(&image, "image", "", "Override container image URI (defaults to <acct>.dkr.ecr.<region>.amazonaws.com/<name>:latest)")
	cmd.Flags().Int32Var(&cpu, "fargate-cpu", 256, "Fargate CPU units per task")
	cmd.Flags().Int32Var(&mem, "fargate-mem", 512, "Fargate memory (MiB) per task")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Do not wait for the service to become stable")
	cmd.Flags().BoolVar(&withBucket, "with-bucket", false, "Also create a per-stack S3 bucket")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}
