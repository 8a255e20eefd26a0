package springcloud

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/diff"
	"github.com/flavioaiello/springops/pkg/poll"
	"github.com/flavioaiello/springops/pkg/remote"
	"github.com/flavioaiello/springops/pkg/telemetry"
)

// Polling bounds for readiness waits.
const (
	// ReadyPollInterval is the delay between status refreshes.
	ReadyPollInterval = 5 * time.Second
	// DefaultReadyTimeout bounds WaitUntilReady when none is given.
	DefaultReadyTimeout = 10 * time.Minute
)

// Errors.
var (
	// ErrAlreadyCommitted means Commit was called twice on one builder.
	ErrAlreadyCommitted = errors.New("builder already committed")
	// ErrDeploymentFailed means the deployment settled in a failed state.
	ErrDeploymentFailed = errors.New("deployment failed")
)

// API is the remote management collaborator for one app's deployments.
// Implementations own the wire format; the core only sees entities and
// patches. Get reports missing deployments as remote.ErrNotFound.
type API interface {
	Get(ctx context.Context, name string) (*DeploymentEntity, error)
	CreateOrUpdate(ctx context.Context, name string, patch Patch) (*DeploymentEntity, error)
	Start(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error

	// ScaleBundlingBroken reports whether scale changes must be issued as a
	// separate call before other property changes.
	ScaleBundlingBroken() bool
}

// Deployment manages a single Spring Apps deployment. It owns the
// last-known remote slot; one Deployment serves one sequential caller.
type Deployment struct {
	name    string
	api     API
	logger  *zap.Logger
	tracker telemetry.Tracker
	slot    remote.Slot[DeploymentEntity]
}

// NewDeployment creates a deployment manager. Nothing is fetched until the
// first Refresh (or an operation that needs the remote state).
func NewDeployment(name string, api API, logger *zap.Logger, tracker telemetry.Tracker) *Deployment {
	if tracker == nil {
		tracker = telemetry.Nop()
	}
	return &Deployment{
		name:    name,
		api:     api,
		logger:  logger,
		tracker: tracker,
	}
}

// Name returns the deployment name.
func (d *Deployment) Name() string {
	return d.name
}

// Refresh replaces the remote slot wholesale. A missing deployment becomes
// an explicit Absent observation, not an error.
func (d *Deployment) Refresh(ctx context.Context) error {
	ent, err := d.api.Get(ctx, d.name)
	if err != nil {
		if remote.IsNotFound(err) {
			d.slot.ObserveAbsent()
			return nil
		}
		return err
	}
	d.slot.Observe(*ent)
	return nil
}

// Exists refreshes on first use and reports whether the deployment exists.
func (d *Deployment) Exists(ctx context.Context) (bool, error) {
	if !d.slot.Known() {
		if err := d.Refresh(ctx); err != nil {
			return false, err
		}
	}
	return d.slot.Presence() == remote.Present, nil
}

// Entity returns the last observed snapshot and whether one is present.
func (d *Deployment) Entity() (DeploymentEntity, bool) {
	return d.slot.Get()
}

// Start starts the deployment.
func (d *Deployment) Start(ctx context.Context) error {
	d.logger.Info("Starting deployment", zap.String("deployment", d.name))
	return d.api.Start(ctx, d.name)
}

// Delete removes the deployment and records its absence.
func (d *Deployment) Delete(ctx context.Context) error {
	if err := d.api.Delete(ctx, d.name); err != nil {
		return err
	}
	d.slot.ObserveAbsent()
	return nil
}

// WaitUntilReady polls the remote status until the deployment settles or
// the timeout elapses, and returns the last observed snapshot. A settled
// but failed deployment is reported as ErrDeploymentFailed.
func (d *Deployment) WaitUntilReady(ctx context.Context, timeout time.Duration) (DeploymentEntity, error) {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	d.logger.Info("Waiting for deployment to settle",
		zap.String("deployment", d.name),
		zap.Duration("timeout", timeout),
	)

	ent, err := poll.Until(ctx,
		func(ctx context.Context) (DeploymentEntity, error) {
			if err := d.Refresh(ctx); err != nil {
				return DeploymentEntity{}, err
			}
			ent, _ := d.slot.Get()
			return ent, nil
		},
		DeploymentEntity.Settled,
		poll.Options{Interval: ReadyPollInterval, Timeout: timeout},
	)
	if err != nil {
		return ent, err
	}
	if ent.ProvisioningState == ProvisioningFailed {
		return ent, fmt.Errorf("%w: %s", ErrDeploymentFailed, d.name)
	}
	return ent, nil
}

// Scale changes only the scale settings.
func (d *Deployment) Scale(ctx context.Context, settings ScaleSettings) (DeploymentEntity, error) {
	return d.Reconcile().ConfigScaleSettings(settings).Commit(ctx)
}

// Reconcile returns a builder that diffs desired settings against the
// last-known remote state and commits only the delta. Create and update are
// one state machine: the commit path branches on whether the deployment was
// observed to exist.
func (d *Deployment) Reconcile() *Builder {
	return &Builder{deployment: d}
}

// builderState tracks the builder lifecycle.
type builderState int

const (
	stateEmpty builderState = iota
	stateDirty
	stateCommitted
)

// Builder accumulates only the differing fields into a sparse patch.
//
// Config methods are idempotent: repeating a call with the same value
// leaves the patch unchanged, and an unspecified value never regresses a
// previously queued change. Commit is valid exactly once.
type Builder struct {
	deployment *Deployment
	patch      Patch
	state      builderState
	changes    []diff.Change
}

// observed returns the remote snapshot to diff against; a zero entity when
// the deployment is absent or not yet refreshed.
func (b *Builder) observed() DeploymentEntity {
	ent, _ := b.deployment.slot.Get()
	return ent
}

// queue records a change, replacing any earlier change to the same field.
func (b *Builder) queue(ch diff.Change) {
	for i := range b.changes {
		if b.changes[i].Field == ch.Field {
			b.changes[i] = ch
			b.state = stateDirty
			return
		}
	}
	b.changes = append(b.changes, ch)
	b.state = stateDirty
}

// rediff drops queued fields that match the latest observed snapshot. The
// Config methods diff against whatever the slot held when they ran, which
// may have been nothing at all; the commit-time pass makes the final patch
// authoritative against real remote state.
func (b *Builder) rediff() {
	obs := b.observed()
	if b.patch.Env != nil && maps.Equal(b.patch.Env, obs.Env) {
		b.patch.Env = nil
		b.drop("environmentVariables")
	}
	if b.patch.JvmOptions != nil && *b.patch.JvmOptions == obs.JvmOptions {
		b.patch.JvmOptions = nil
		b.drop("jvmOptions")
	}
	if b.patch.RuntimeVersion != nil && *b.patch.RuntimeVersion == obs.RuntimeVersion {
		b.patch.RuntimeVersion = nil
		b.drop("runtimeVersion")
	}
	if b.patch.ArtifactPath != nil && *b.patch.ArtifactPath == obs.ArtifactPath {
		b.patch.ArtifactPath = nil
		b.drop("artifactPath")
	}
	if b.patch.Scale != nil && *b.patch.Scale == obs.Scale {
		b.patch.Scale = nil
		b.drop("scaleSettings")
	}
}

// drop removes the change record for a field.
func (b *Builder) drop(field string) {
	for i := range b.changes {
		if b.changes[i].Field == field {
			b.changes = append(b.changes[:i], b.changes[i+1:]...)
			return
		}
	}
}

// ConfigEnvironmentVariables queues the environment variables when they
// differ from the observed remote value. An empty map is "not specified".
func (b *Builder) ConfigEnvironmentVariables(env map[string]string) *Builder {
	if ch, changed := diff.StringMap("environmentVariables", env, b.observed().Env); changed {
		b.patch.Env = env
		b.queue(ch)
	}
	return b
}

// ConfigJvmOptions queues the JVM options. Blank input is "not specified".
func (b *Builder) ConfigJvmOptions(jvmOptions string) *Builder {
	jvmOptions = strings.TrimSpace(jvmOptions)
	if ch, changed := diff.String("jvmOptions", jvmOptions, b.observed().JvmOptions); changed {
		b.patch.JvmOptions = &jvmOptions
		b.queue(ch)
	}
	return b
}

// ConfigRuntimeVersion queues the runtime version.
func (b *Builder) ConfigRuntimeVersion(version string) *Builder {
	if ch, changed := diff.String("runtimeVersion", version, b.observed().RuntimeVersion); changed {
		b.patch.RuntimeVersion = &version
		b.queue(ch)
	}
	return b
}

// ConfigArtifact queues the artifact path to deploy.
func (b *Builder) ConfigArtifact(relativePath string) *Builder {
	if ch, changed := diff.String("artifactPath", relativePath, b.observed().ArtifactPath); changed {
		b.patch.ArtifactPath = &relativePath
		b.queue(ch)
	}
	return b
}

// ConfigScaleSettings queues the scale settings, compared as a unit.
func (b *Builder) ConfigScaleSettings(settings ScaleSettings) *Builder {
	if ch, changed := diff.Unit("scaleSettings", settings, b.observed().Scale); changed {
		b.patch.Scale = &settings
		b.queue(ch)
	}
	return b
}

// Commit issues the remote write.
//
// The queued patch is re-diffed against the latest observed snapshot first,
// so a builder populated before any refresh (or left over from a partially
// applied commit) never rewrites values the remote already holds. An empty
// patch against an existing deployment skips the write entirely and returns
// the cached snapshot. Otherwise one create-or-update call is issued with
// the patched fields; when the API reports that scale changes cannot be
// bundled, the scale subset goes out as a separate, earlier call. The
// deployment is restarted only when a write was actually issued. On write
// failure the builder stays dirty so Commit may be retried; once the write
// lands the builder is committed, and a restart failure is retried with
// Start rather than another Commit.
func (b *Builder) Commit(ctx context.Context) (DeploymentEntity, error) {
	if b.state == stateCommitted {
		return DeploymentEntity{}, fmt.Errorf("%w: deployment %s", ErrAlreadyCommitted, b.deployment.name)
	}

	d := b.deployment

	// Late refresh so a builder obtained before any refresh still commits
	// against real remote state.
	if !d.slot.Known() {
		if err := d.Refresh(ctx); err != nil {
			return DeploymentEntity{}, err
		}
	}
	exists := d.slot.Presence() == remote.Present
	b.rediff()

	op := telemetry.StartOperation(d.tracker, "deployment.commit")
	for _, ch := range b.changes {
		d.logger.Debug("Field changed",
			zap.String("deployment", d.name),
			zap.String("field", ch.Field),
			zap.Any("old", ch.Old),
			zap.Any("new", ch.New),
		)
	}

	if b.patch.IsEmpty() && exists {
		d.logger.Info("Skipping update, no properties changed",
			zap.String("deployment", d.name),
		)
		b.state = stateCommitted
		op.Success()
		ent, _ := d.slot.Get()
		return ent, nil
	}

	patch := b.patch

	// The service rejects scale changes bundled with other property changes
	// on existing deployments, so the scale subset goes out first.
	if exists && patch.Scale != nil && !patch.onlyScale() && d.api.ScaleBundlingBroken() {
		d.logger.Info("Scaling deployment",
			zap.String("deployment", d.name),
			zap.String("scale", patch.Scale.String()),
		)
		ent, err := d.api.CreateOrUpdate(ctx, d.name, Patch{Scale: patch.Scale})
		if err != nil {
			op.Failure(err, false)
			return DeploymentEntity{}, fmt.Errorf("failed to scale deployment %s: %w", d.name, err)
		}
		d.slot.Observe(*ent)
		patch.Scale = nil
	}

	d.logger.Info("Updating deployment",
		zap.String("deployment", d.name),
		zap.Bool("create", !exists),
	)
	ent, err := d.api.CreateOrUpdate(ctx, d.name, patch)
	if err != nil {
		op.Failure(err, false)
		return DeploymentEntity{}, fmt.Errorf("failed to update deployment %s: %w", d.name, err)
	}
	d.slot.Observe(*ent)
	b.state = stateCommitted

	// Restart only after an actual write; the no-op path above never
	// touches the running deployment. The write is committed at this point:
	// a failed restart is retried with Start, not by re-running Commit.
	if err := d.Start(ctx); err != nil {
		op.Failure(err, false)
		return *ent, fmt.Errorf("failed to start deployment %s: %w", d.name, err)
	}

	op.Success()
	d.logger.Info("Deployment updated",
		zap.String("deployment", d.name),
		zap.Int("changed_fields", len(b.changes)),
	)
	ent2, _ := d.slot.Get()
	return ent2, nil
}
