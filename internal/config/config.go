// Package config holds the per-invocation stack configuration and the
// environment-tunable timeout budgets.
package config

import (
	"fmt"
	"slices"
)

// Kind identifies one managed resource family. The orchestrator's resource
// set is a list of kinds rather than hard-coded call sites, so variants (a
// stack with or without an S3 bucket) share one pipeline.
type Kind string

const (
	KindBucket       Kind = "bucket"
	KindNetwork      Kind = "network"
	KindLoadBalancer Kind = "loadbalancer"
	KindRegistry     Kind = "registry"
	KindLogSink      Kind = "logsink"
	KindIdentity     Kind = "identity"
	KindCompute      Kind = "compute"
)

// DefaultKinds returns the standard resource set in dependency order.
func DefaultKinds() []Kind {
	return []Kind{
		KindNetwork,
		KindLoadBalancer,
		KindRegistry,
		KindLogSink,
		KindIdentity,
		KindCompute,
	}
}

// StackConfig is the immutable input to one `up` invocation. Name is used as
// the naming prefix for every created resource and is assumed unique within
// the target account and region.
type StackConfig struct {
	Name          string
	Region        string
	ContainerPort int32
	CPU           int32
	Memory        int32
	ImageOverride string
	Wait          bool
	Kinds         []Kind
}

// Validate checks the configuration before any AWS call is made.
func (c *StackConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("stack name must not be empty")
	}
	if c.Region == "" {
		return fmt.Errorf("region must not be empty")
	}
	if c.ContainerPort < 1 || c.ContainerPort > 65535 {
		return fmt.Errorf("container port %d out of range", c.ContainerPort)
	}
	if len(c.Kinds) == 0 {
		return fmt.Errorf("resource kind list must not be empty")
	}
	known := []Kind{KindBucket, KindNetwork, KindLoadBalancer, KindRegistry, KindLogSink, KindIdentity, KindCompute}
	for _, k := range c.Kinds {
		if !slices.Contains(known, k) {
			return fmt.Errorf("unknown resource kind %q", k)
		}
	}
	return nil
}
