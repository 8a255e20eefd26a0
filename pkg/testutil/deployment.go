package testutil

import (
	"context"
	"sync"

	"github.com/flavioaiello/springops/pkg/remote"
	"github.com/flavioaiello/springops/pkg/springcloud"
)

// DeploymentWrite records a single CreateOrUpdate invocation.
type DeploymentWrite struct {
	Name  string
	Patch springcloud.Patch
}

// FakeDeploymentAPI provides an in-memory implementation of the Spring Apps
// deployment management surface.
//
// State mutations mirror the real service: a write merges the patch into the
// stored entity and marks it succeeded. Snapshot sequences can be scripted
// for readiness-polling tests. Thread-safe.
type FakeDeploymentAPI struct {
	mu sync.Mutex

	entities map[string]springcloud.DeploymentEntity
	getQueue map[string][]springcloud.DeploymentEntity

	scaleBundlingBroken bool

	getErr        error
	writeErr      error
	writeErrAfter int
	startErr      error
	deleteErr     error

	getCalls    []string
	writes      []DeploymentWrite
	startCalls  []string
	deleteCalls []string
}

// NewFakeDeploymentAPI creates an empty fake. Scale bundling is reported as
// broken by default, matching the real management plane.
func NewFakeDeploymentAPI() *FakeDeploymentAPI {
	return &FakeDeploymentAPI{
		entities:            make(map[string]springcloud.DeploymentEntity),
		getQueue:            make(map[string][]springcloud.DeploymentEntity),
		scaleBundlingBroken: true,
	}
}

// Seed stores an entity as existing remote state.
func (f *FakeDeploymentAPI) Seed(ent springcloud.DeploymentEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[ent.Name] = ent
}

// ScriptGet queues snapshots returned by successive Get calls for one
// deployment, ahead of the stored entity.
func (f *FakeDeploymentAPI) ScriptGet(name string, snapshots ...springcloud.DeploymentEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getQueue[name] = append(f.getQueue[name], snapshots...)
}

// FailGets configures Get to return err; nil restores normal behavior.
func (f *FakeDeploymentAPI) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailWrites configures CreateOrUpdate to return err; nil restores normal
// behavior.
func (f *FakeDeploymentAPI) FailWrites(err error) {
	f.FailWritesAfter(0, err)
}

// FailWritesAfter configures CreateOrUpdate to succeed for the first n calls
// and return err afterwards; nil restores normal behavior.
func (f *FakeDeploymentAPI) FailWritesAfter(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
	f.writeErrAfter = n
}

// FailStarts configures Start to return err; nil restores normal behavior.
func (f *FakeDeploymentAPI) FailStarts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

// FailDeletes configures Delete to return err; nil restores normal behavior.
func (f *FakeDeploymentAPI) FailDeletes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// SetScaleBundlingBroken overrides the scale bundling report.
func (f *FakeDeploymentAPI) SetScaleBundlingBroken(broken bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scaleBundlingBroken = broken
}

// Writes returns all recorded CreateOrUpdate calls.
func (f *FakeDeploymentAPI) Writes() []DeploymentWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DeploymentWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

// StartCalls returns the deployment names passed to Start, in order.
func (f *FakeDeploymentAPI) StartCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.startCalls))
	copy(out, f.startCalls)
	return out
}

// DeleteCalls returns the deployment names passed to Delete, in order.
func (f *FakeDeploymentAPI) DeleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleteCalls))
	copy(out, f.deleteCalls)
	return out
}

// GetCallCount returns the number of Get calls.
func (f *FakeDeploymentAPI) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.getCalls)
}

// Get implements springcloud.API.
func (f *FakeDeploymentAPI) Get(ctx context.Context, name string) (*springcloud.DeploymentEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls = append(f.getCalls, name)
	if f.getErr != nil {
		return nil, f.getErr
	}

	if queue := f.getQueue[name]; len(queue) > 0 {
		ent := queue[0]
		f.getQueue[name] = queue[1:]
		f.entities[name] = ent
		return &ent, nil
	}

	ent, ok := f.entities[name]
	if !ok {
		return nil, remote.ErrNotFound
	}
	out := ent
	return &out, nil
}

// CreateOrUpdate implements springcloud.API. The patch is merged into the
// stored entity, which is then marked running and succeeded.
func (f *FakeDeploymentAPI) CreateOrUpdate(ctx context.Context, name string, patch springcloud.Patch) (*springcloud.DeploymentEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = append(f.writes, DeploymentWrite{Name: name, Patch: patch})
	if f.writeErr != nil && len(f.writes) > f.writeErrAfter {
		return nil, f.writeErr
	}

	ent := f.entities[name]
	ent.Name = name
	if patch.Env != nil {
		ent.Env = patch.Env
	}
	if patch.JvmOptions != nil {
		ent.JvmOptions = *patch.JvmOptions
	}
	if patch.RuntimeVersion != nil {
		ent.RuntimeVersion = *patch.RuntimeVersion
	}
	if patch.ArtifactPath != nil {
		ent.ArtifactPath = *patch.ArtifactPath
	}
	if patch.Scale != nil {
		ent.Scale = *patch.Scale
	}
	ent.Status = springcloud.StatusRunning
	ent.ProvisioningState = springcloud.ProvisioningSucceeded
	f.entities[name] = ent

	out := ent
	return &out, nil
}

// Start implements springcloud.API.
func (f *FakeDeploymentAPI) Start(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, name)
	return f.startErr
}

// Delete implements springcloud.API.
func (f *FakeDeploymentAPI) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.entities, name)
	return nil
}

// ScaleBundlingBroken implements springcloud.API.
func (f *FakeDeploymentAPI) ScaleBundlingBroken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scaleBundlingBroken
}

// Verify interface compliance.
var _ springcloud.API = (*FakeDeploymentAPI)(nil)
