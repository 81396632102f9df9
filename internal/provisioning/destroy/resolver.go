// Package destroy resolves a stack's resources from its manifest and runs
// the best-effort teardown sequence.
package destroy

import (
	"strings"

	"github.com/ecstack/ecstack/internal/manifest"
	"github.com/ecstack/ecstack/internal/naming"
)

// Targets names every resource the teardown sequence will go after. Fields
// resolved from a manifest are exact; fields reconstructed from the stack
// name are best-guess and may miss renamed resources.
type Targets struct {
	Name      string
	AccountID string

	Cluster    string
	Service    string
	TaskFamily string

	RepositoryName string
	LogGroup       string
	RoleName       string
	BucketName     string
	VPCID          string

	FromManifest bool
}

// Resolve builds teardown targets from the manifest, falling back to
// name-derived defaults for any field the manifest does not carry. A nil
// manifest resolves everything from the name.
func Resolve(m *manifest.Manifest, name, accountID string) *Targets {
	t := &Targets{
		Name:           name,
		AccountID:      accountID,
		Cluster:        naming.Cluster(name),
		Service:        naming.Service(name),
		TaskFamily:     naming.TaskFamily(name),
		RepositoryName: naming.Repository(name),
		LogGroup:       naming.LogGroup(name),
		RoleName:       naming.ExecutionRole(name),
	}
	if accountID != "" {
		t.BucketName = naming.Bucket(name, accountID)
	}
	if m == nil {
		return t
	}

	t.FromManifest = true
	if m.Cluster != "" {
		t.Cluster = m.Cluster
	}
	if m.Service != "" {
		t.Service = m.Service
	}
	if m.LogGroup != "" {
		t.LogGroup = m.LogGroup
	}
	if m.S3Bucket != "" {
		t.BucketName = m.S3Bucket
	}
	if m.VPCID != "" {
		t.VPCID = m.VPCID
	}
	if m.RegistryURI != "" {
		// The registry is recorded as a URI; deletion needs the repository
		// name, the path segment after the registry host.
		if i := strings.LastIndex(m.RegistryURI, "/"); i >= 0 {
			t.RepositoryName = m.RegistryURI[i+1:]
		}
	}
	if m.RoleARN != "" {
		if i := strings.LastIndex(m.RoleARN, "/"); i >= 0 {
			t.RoleName = m.RoleARN[i+1:]
		}
	}
	return t
}
