// Package manifest persists the identifiers of a stack's resources.
//
// The manifest is the only durable state the orchestrator keeps. It is
// written incrementally during `up` so that a failed provisioning run still
// leaves a record of everything created so far, and consumed by `down` to
// locate resources for deletion.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Manifest is a flat mapping from resource field to identifier for one stack.
// Field names mirror the JSON document printed at the end of `up`.
type Manifest struct {
	S3Bucket               string   `json:"s3_bucket,omitempty"`
	VPCID                  string   `json:"vpc_id,omitempty"`
	SubnetIDs              []string `json:"subnet_ids,omitempty"`
	ALBARN                 string   `json:"alb_arn,omitempty"`
	ALBDNS                 string   `json:"alb_dns,omitempty"`
	TargetGroupARN         string   `json:"tg_arn,omitempty"`
	ListenerARN            string   `json:"listener_arn,omitempty"`
	ALBSecurityGroupID     string   `json:"alb_sg_id,omitempty"`
	ServiceSecurityGroupID string   `json:"svc_sg_id,omitempty"`
	RegistryURI            string   `json:"ecr_repo_url,omitempty"`
	Cluster                string   `json:"ecs_cluster,omitempty"`
	Service                string   `json:"ecs_service,omitempty"`
	TaskDefinitionARN      string   `json:"task_def_arn,omitempty"`
	LogGroup               string   `json:"log_group,omitempty"`
	RoleARN                string   `json:"iam_role_arn,omitempty"`
}

// Store reads and writes per-stack manifest files under a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. An empty dir means the current
// working directory.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir}
}

// Path returns the manifest file path for a stack name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.manifest.json", name))
}

// Save writes the manifest for the named stack, creating the directory if
// needed. The file is replaced wholesale on every call.
func (s *Store) Save(name string, m *Manifest) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", s.dir, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest for %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest for %s: %w", name, err)
	}
	return nil
}

// Load reads the manifest for the named stack. A missing manifest is not an
// error: Load returns (nil, nil) and the caller falls back to name-derived
// defaults.
func (s *Store) Load(name string) (*Manifest, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest for %s: %w", name, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest for %s: %w", name, err)
	}
	return &m, nil
}

// Clear removes the manifest for the named stack. Removing an absent
// manifest succeeds.
func (s *Store) Clear(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove manifest for %s: %w", name, err)
	}
	return nil
}
