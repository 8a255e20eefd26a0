// Package springcloud manages Azure Spring Apps deployments by reconciling
// a locally declared desired configuration against the observed remote
// deployment and writing only the delta.
package springcloud

import "fmt"

// Status is the runtime status reported for a deployment.
type Status string

const (
	StatusUnknown Status = ""
	StatusRunning Status = "Running"
	StatusStopped Status = "Stopped"
)

// ProvisioningState is the management-plane state of a deployment.
type ProvisioningState string

const (
	ProvisioningCreating  ProvisioningState = "Creating"
	ProvisioningUpdating  ProvisioningState = "Updating"
	ProvisioningSucceeded ProvisioningState = "Succeeded"
	ProvisioningFailed    ProvisioningState = "Failed"
)

// ScaleSettings is the requested scale as a unit: any sub-field difference
// marks the whole unit changed.
type ScaleSettings struct {
	// CPU is the number of vCPUs per instance.
	CPU int32
	// MemoryInGB is the memory per instance.
	MemoryInGB int32
	// Capacity is the instance count.
	Capacity int32
}

// IsZero reports whether no scale settings were specified.
func (s ScaleSettings) IsZero() bool {
	return s == ScaleSettings{}
}

// String renders the settings for logging.
func (s ScaleSettings) String() string {
	return fmt.Sprintf("cpu=%d memory=%dGi capacity=%d", s.CPU, s.MemoryInGB, s.Capacity)
}

// DeploymentEntity is the last-fetched snapshot of a deployment as reported
// by the management API, translated from the SDK model.
type DeploymentEntity struct {
	// Name is the deployment name.
	Name string
	// AppName is the app the deployment belongs to.
	AppName string
	// ServiceName is the Spring Apps service (cluster) name.
	ServiceName string
	// Status is the runtime status.
	Status Status
	// ProvisioningState is the management-plane state.
	ProvisioningState ProvisioningState
	// RuntimeVersion is the Java runtime version.
	RuntimeVersion string
	// JvmOptions are the JVM options.
	JvmOptions string
	// Env are the environment variables.
	Env map[string]string
	// ArtifactPath is the relative path of the deployed artifact.
	ArtifactPath string
	// Scale holds the observed scale settings.
	Scale ScaleSettings
	// Instances is the number of running instances.
	Instances int
}

// Settled reports whether the deployment reached a terminal
// management-plane state.
func (e DeploymentEntity) Settled() bool {
	return e.ProvisioningState == ProvisioningSucceeded ||
		e.ProvisioningState == ProvisioningFailed
}

// Healthy reports whether the deployment settled successfully and is running.
func (e DeploymentEntity) Healthy() bool {
	return e.ProvisioningState == ProvisioningSucceeded && e.Status == StatusRunning
}

// Patch is the sparse set of fields to change in the next remote write.
// Nil fields are left untouched remotely.
type Patch struct {
	// Env replaces the environment variables when non-nil.
	Env map[string]string
	// JvmOptions replaces the JVM options when non-nil.
	JvmOptions *string
	// RuntimeVersion replaces the runtime version when non-nil.
	RuntimeVersion *string
	// ArtifactPath replaces the deployed artifact when non-nil.
	ArtifactPath *string
	// Scale replaces the scale settings when non-nil.
	Scale *ScaleSettings
}

// IsEmpty reports whether the patch carries no fields.
func (p Patch) IsEmpty() bool {
	return p.Env == nil &&
		p.JvmOptions == nil &&
		p.RuntimeVersion == nil &&
		p.ArtifactPath == nil &&
		p.Scale == nil
}

// onlyScale reports whether scale settings are the only patched field.
func (p Patch) onlyScale() bool {
	return p.Scale != nil &&
		p.Env == nil &&
		p.JvmOptions == nil &&
		p.RuntimeVersion == nil &&
		p.ArtifactPath == nil
}
