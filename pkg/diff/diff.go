// Package diff decides, per field, whether a locally desired value requires
// a remote write.
//
// The contract for every comparison: an unspecified desired value (blank
// string, empty map, zero-valued composite) never yields a change, so an
// omitted setting can never clear a remote field. Equal values never yield a
// change either, which keeps no-op configuration idempotent.
package diff

import (
	"maps"
	"strings"
)

// Change records a single field that requires a remote write.
type Change struct {
	// Field is the logical field name, used for logging and telemetry.
	Field string
	// Old is the last observed remote value, nil when the resource is new.
	Old any
	// New is the desired value to write.
	New any
}

// String compares a desired string field against the observed remote value.
// Blank desired input means "not specified".
func String(field, desired, observed string) (Change, bool) {
	if strings.TrimSpace(desired) == "" {
		return Change{}, false
	}
	if desired == observed {
		return Change{}, false
	}
	return Change{Field: field, Old: observed, New: desired}, true
}

// StringMap compares a desired map field (e.g. environment variables)
// against the observed remote value. A nil or empty desired map means
// "not specified".
func StringMap(field string, desired, observed map[string]string) (Change, bool) {
	if len(desired) == 0 {
		return Change{}, false
	}
	if maps.Equal(desired, observed) {
		return Change{}, false
	}
	return Change{Field: field, Old: observed, New: desired}, true
}

// Unit compares a composite value as a single unit: any sub-field difference
// marks the whole unit changed. A zero-valued desired means "not specified".
func Unit[T comparable](field string, desired, observed T) (Change, bool) {
	var zero T
	if desired == zero {
		return Change{}, false
	}
	if desired == observed {
		return Change{}, false
	}
	return Change{Field: field, Old: observed, New: desired}, true
}
