package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Timeouts holds the polling budgets for every long-running state
// transition. Each value can be overridden via its environment variable;
// defaults match the AWS eventual-consistency windows observed in practice.
type Timeouts struct {
	LoadBalancerActive time.Duration `env:"ECSTACK_TIMEOUT_LB_ACTIVE" envDefault:"10m"`
	ServiceStable      time.Duration `env:"ECSTACK_TIMEOUT_SERVICE_STABLE" envDefault:"15m"`
	ServiceDrain       time.Duration `env:"ECSTACK_TIMEOUT_SERVICE_DRAIN" envDefault:"10m"`
	DeleteConfirm      time.Duration `env:"ECSTACK_TIMEOUT_DELETE_CONFIRM" envDefault:"30s"`
	PollInterval       time.Duration `env:"ECSTACK_POLL_INTERVAL" envDefault:"10s"`
	DeletePollInterval time.Duration `env:"ECSTACK_DELETE_POLL_INTERVAL" envDefault:"3s"`
}

// LoadTimeouts parses timeout configuration from the environment.
func LoadTimeouts() (*Timeouts, error) {
	var t Timeouts
	if err := env.Parse(&t); err != nil {
		return nil, fmt.Errorf("failed to parse timeout environment: %w", err)
	}
	return &t, nil
}
