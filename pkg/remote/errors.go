package remote

import (
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// ErrNotFound is the documented absence signal: the management API reported
// that the resource does not exist. Refresh paths translate it into an
// Absent slot instead of surfacing it to the caller.
var ErrNotFound = errors.New("remote resource not found")

// IsNotFound reports whether err represents a missing resource, either as
// the local sentinel or as an ARM 404 response.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
