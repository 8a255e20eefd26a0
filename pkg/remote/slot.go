// Package remote provides the last-known remote state slot for managed
// Azure resources.
//
// A Slot holds the most recently observed representation of a resource as
// reported by the management API. It is replaced wholesale on every refresh,
// never merged, so readers always see a complete, internally consistent
// snapshot. Absence ("resource not found") is an explicit state rather than
// a nil sentinel.
package remote

// Presence classifies what a Slot knows about the remote resource.
type Presence int

const (
	// Unknown means no refresh has been performed yet.
	Unknown Presence = iota
	// Absent means the last refresh reported the resource as not found.
	Absent
	// Present means the last refresh returned a snapshot.
	Present
)

// String returns the presence name for logging.
func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

// Slot holds the last-known remote snapshot of a single resource.
//
// A Slot is owned by exactly one resource manager and is not safe for
// concurrent use; each concurrently reconciled resource owns its own Slot.
type Slot[T any] struct {
	presence Presence
	value    T
}

// Observe replaces the snapshot wholesale and marks the resource present.
func (s *Slot[T]) Observe(v T) {
	s.value = v
	s.presence = Present
}

// ObserveAbsent records that the resource was not found on refresh.
// Any previous snapshot is discarded.
func (s *Slot[T]) ObserveAbsent() {
	var zero T
	s.value = zero
	s.presence = Absent
}

// Get returns the snapshot and whether the resource is present.
func (s *Slot[T]) Get() (T, bool) {
	return s.value, s.presence == Present
}

// Presence returns the current presence classification.
func (s *Slot[T]) Presence() Presence {
	return s.presence
}

// Known reports whether at least one refresh has been performed.
func (s *Slot[T]) Known() bool {
	return s.presence != Unknown
}
