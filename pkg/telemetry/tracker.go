// Package telemetry emits structured key-value event records for resource
// operations.
//
// Telemetry is strictly fire-and-forget: trackers never block and never fail
// the operation they describe. Production code receives a zap-backed tracker;
// tests inject Nop.
package telemetry

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Property keys shared by all events.
const (
	KeyCorrelationID  = "correlationId"
	KeyDuration       = "duration"
	KeyErrorCode      = "errorCode"
	KeyErrorType      = "errorType"
	KeyErrorMessage   = "errorMessage"
	KeySubscriptionID = "subscriptionId"
	KeyCPU            = "cpu"
	KeyMemory         = "memory"
	KeyInstanceCount  = "instanceCount"
	KeyRuntimeVersion = "runtimeVersion"
	KeyJvmOptions     = "jvmOptions"
)

// Property values for error classification.
const (
	ValueErrorCodeSuccess = "success"
	ValueErrorCodeFailure = "failure"
	ValueUserError        = "userError"
	ValueSystemError      = "systemError"
)

// Tracker receives structured event records. Implementations must not block.
type Tracker interface {
	TrackEvent(name string, properties map[string]string)
}

// Nop returns a tracker that discards all events.
func Nop() Tracker {
	return nopTracker{}
}

type nopTracker struct{}

func (nopTracker) TrackEvent(string, map[string]string) {}

// zapTracker writes events as structured log records.
type zapTracker struct {
	logger *zap.Logger
}

// NewZapTracker creates a tracker that emits events through the given logger.
func NewZapTracker(logger *zap.Logger) Tracker {
	return &zapTracker{logger: logger}
}

// TrackEvent implements Tracker.
func (t *zapTracker) TrackEvent(name string, properties map[string]string) {
	fields := make([]zap.Field, 0, len(properties)+1)
	fields = append(fields, zap.String("event", name))
	for k, v := range properties {
		fields = append(fields, zap.String(k, v))
	}
	t.logger.Info("Telemetry event", fields...)
}

// Operation tracks a single resource-management operation from start to
// terminal outcome, stamping every event with a correlation ID and the
// elapsed duration.
type Operation struct {
	tracker    Tracker
	name       string
	started    time.Time
	properties map[string]string
}

// StartOperation emits the start event and returns the operation handle.
func StartOperation(tracker Tracker, name string) *Operation {
	op := &Operation{
		tracker: tracker,
		name:    name,
		started: time.Now(),
		properties: map[string]string{
			KeyCorrelationID: uuid.New().String(),
		},
	}
	tracker.TrackEvent(name+".start", op.snapshot())
	return op
}

// SetProperty attaches a property to all subsequent events.
func (o *Operation) SetProperty(key, value string) {
	o.properties[key] = value
}

// Success emits the terminal success event.
func (o *Operation) Success() {
	o.properties[KeyErrorCode] = ValueErrorCodeSuccess
	o.finish(o.name + ".success")
}

// Failure emits the terminal failure event. userError classifies failures
// caused by caller-supplied configuration as opposed to remote faults.
func (o *Operation) Failure(err error, userError bool) {
	o.properties[KeyErrorCode] = ValueErrorCodeFailure
	o.properties[KeyErrorMessage] = err.Error()
	if userError {
		o.properties[KeyErrorType] = ValueUserError
	} else {
		o.properties[KeyErrorType] = ValueSystemError
	}
	o.finish(o.name + ".failure")
}

func (o *Operation) finish(event string) {
	o.properties[KeyDuration] = time.Since(o.started).String()
	o.tracker.TrackEvent(event, o.snapshot())
}

// snapshot copies properties so later mutation cannot alter emitted events.
func (o *Operation) snapshot() map[string]string {
	props := make(map[string]string, len(o.properties))
	for k, v := range o.properties {
		props[k] = v
	}
	return props
}
