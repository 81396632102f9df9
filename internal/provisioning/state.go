package provisioning

import "github.com/ecstack/ecstack/internal/manifest"

// NetworkRecord holds the identifiers produced by the network provisioner.
type NetworkRecord struct {
	VPCID                  string
	SubnetIDs              []string
	ALBSecurityGroupID     string
	ServiceSecurityGroupID string
}

// LoadBalancerRecord holds the identifiers produced by the load balancer
// provisioner.
type LoadBalancerRecord struct {
	ARN            string
	DNSName        string
	TargetGroupARN string
	ListenerARN    string
}

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is read by
// subsequent phases that need earlier results.
type State struct {
	AccountID string

	Network      *NetworkRecord
	LoadBalancer *LoadBalancerRecord

	BucketName  string
	RegistryURI string
	LogGroup    string
	RoleARN     string

	Cluster           string
	Service           string
	TaskDefinitionARN string
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{}
}

// Manifest flattens the state into its persisted form. Fields for phases
// that have not run yet stay empty and are omitted from the JSON document.
func (s *State) Manifest() *manifest.Manifest {
	m := &manifest.Manifest{
		S3Bucket:          s.BucketName,
		RegistryURI:       s.RegistryURI,
		LogGroup:          s.LogGroup,
		RoleARN:           s.RoleARN,
		Cluster:           s.Cluster,
		Service:           s.Service,
		TaskDefinitionARN: s.TaskDefinitionARN,
	}
	if s.Network != nil {
		m.VPCID = s.Network.VPCID
		m.SubnetIDs = s.Network.SubnetIDs
		m.ALBSecurityGroupID = s.Network.ALBSecurityGroupID
		m.ServiceSecurityGroupID = s.Network.ServiceSecurityGroupID
	}
	if s.LoadBalancer != nil {
		m.ALBARN = s.LoadBalancer.ARN
		m.ALBDNS = s.LoadBalancer.DNSName
		m.TargetGroupARN = s.LoadBalancer.TargetGroupARN
		m.ListenerARN = s.LoadBalancer.ListenerARN
	}
	return m
}

// Restore re-populates state from a previously saved manifest, so a repeated
// `up` can skip phases whose resources are already recorded.
func (s *State) Restore(m *manifest.Manifest) {
	if m == nil {
		return
	}
	s.BucketName = m.S3Bucket
	s.RegistryURI = m.RegistryURI
	s.LogGroup = m.LogGroup
	s.RoleARN = m.RoleARN
	if m.VPCID != "" {
		s.Network = &NetworkRecord{
			VPCID:                  m.VPCID,
			SubnetIDs:              m.SubnetIDs,
			ALBSecurityGroupID:     m.ALBSecurityGroupID,
			ServiceSecurityGroupID: m.ServiceSecurityGroupID,
		}
	}
	if m.ALBARN != "" {
		s.LoadBalancer = &LoadBalancerRecord{
			ARN:            m.ALBARN,
			DNSName:        m.ALBDNS,
			TargetGroupARN: m.TargetGroupARN,
			ListenerARN:    m.ListenerARN,
		}
	}
}
