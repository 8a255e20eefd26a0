package remote

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
)

type snapshot struct {
	Name  string
	State string
}

func TestSlotStartsUnknown(t *testing.T) {
	var s Slot[snapshot]

	assert.False(t, s.Known())
	assert.Equal(t, Unknown, s.Presence())

	_, ok := s.Get()
	assert.False(t, ok)
}

func TestSlotObserve(t *testing.T) {
	var s Slot[snapshot]

	s.Observe(snapshot{Name: "app", State: "Running"})

	assert.True(t, s.Known())
	assert.Equal(t, Present, s.Presence())

	v, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, "Running", v.State)
}

func TestSlotObserveReplacesWholesale(t *testing.T) {
	var s Slot[snapshot]

	s.Observe(snapshot{Name: "app", State: "Running"})
	s.Observe(snapshot{State: "Stopped"})

	v, _ := s.Get()
	assert.Equal(t, snapshot{State: "Stopped"}, v, "old fields must not survive a refresh")
}

func TestSlotObserveAbsent(t *testing.T) {
	var s Slot[snapshot]

	s.Observe(snapshot{Name: "app"})
	s.ObserveAbsent()

	assert.True(t, s.Known())
	assert.Equal(t, Absent, s.Presence())

	v, ok := s.Get()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestPresenceString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "present", Present.String())
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"sentinel", ErrNotFound, true},
		{"wrapped sentinel", errors.New("boom"), false},
		{"arm 404", &azcore.ResponseError{StatusCode: http.StatusNotFound}, true},
		{"arm 403", &azcore.ResponseError{StatusCode: http.StatusForbidden}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
		})
	}
}
