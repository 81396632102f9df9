// Package main is the entry point for the ecstack CLI.
//
// ecstack provisions and tears down a complete application deployment stack
// on AWS from a single named invocation: private network, application load
// balancer, container registry, log group, execution role, and an ECS
// Fargate service.
//
// Commands: up, down, version.
//
// For detailed usage information, run:
//
//	ecstack --help
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ecstack/ecstack/cmd/ecstack/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Timeout and credential overrides may live in a local .env file; a
	// missing file is fine.
	_ = godotenv.Load()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
