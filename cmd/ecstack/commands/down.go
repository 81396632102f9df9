package commands

import (
	"github.com/spf13/cobra"

	"github.com/ecstack/ecstack/cmd/ecstack/handlers"
)

// Down returns the down command.
//
// Down removes all stack resources in reverse dependency order: service and
// cluster, registry, log group, execution role, load balancer, network, and
// bucket. Every step is best-effort; failures are collected into the final
// report instead of aborting the sequence.
func Down() *cobra.Command {
	var (
		name   string
		region string
	)

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Delete the stack (best-effort)",
		Long: `Down tears down every resource belonging to the named stack.

Resources are located through the manifest written by up. When no manifest
exists the names are reconstructed from the stack name, which finds all
resources created with default naming but may miss renamed ones.

Example:
  ecstack down --name demo --region eu-central-1

Down always runs the full sequence and exits zero; per-step failures are
reported in the final JSON summary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Down(cmd.Context(), name, region)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Stack name (required)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}
