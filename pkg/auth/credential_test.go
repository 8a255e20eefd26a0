package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/testutil"
)

// swapRetrievers replaces the retriever chain for the duration of a test.
func swapRetrievers(t *testing.T, rs []retriever) {
	t.Helper()
	orig := retrievers
	retrievers = rs
	t.Cleanup(func() { retrievers = orig })
}

func staticRetriever(method Method, cred azcore.TokenCredential, buildErr error) retriever {
	return retriever{
		method: method,
		build: func(Options) (azcore.TokenCredential, error) {
			return cred, buildErr
		},
	}
}

func TestRetrieveFirstAvailableMethodWins(t *testing.T) {
	failing := testutil.NewMockCredential(nil)
	failing.SetFailure(true, "no IMDS endpoint")
	working := testutil.NewMockCredential(nil)

	swapRetrievers(t, []retriever{
		staticRetriever(MethodManagedIdentity, failing, nil),
		staticRetriever(MethodEnvironment, working, nil),
		staticRetriever(MethodAzureCLI, testutil.NewMockCredential(nil), nil),
	})

	cred, err := Retrieve(context.Background(), MethodAuto, Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, MethodEnvironment, cred.Method)

	// The winning credential was probed exactly once, for the ARM scope.
	calls := working.GetTokenCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{ARMScope}, calls[0].Scopes)
}

func TestRetrieveAllUnavailable(t *testing.T) {
	failing := testutil.NewMockCredential(nil)
	failing.SetFailure(true, "unavailable")

	swapRetrievers(t, []retriever{
		staticRetriever(MethodManagedIdentity, failing, nil),
		staticRetriever(MethodEnvironment, nil, errors.New("missing env vars")),
	})

	_, err := Retrieve(context.Background(), MethodAuto, Options{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
}

func TestRetrieveExplicitMethodSkipsOthers(t *testing.T) {
	mi := testutil.NewMockCredential(nil)
	cli := testutil.NewMockCredential(nil)

	swapRetrievers(t, []retriever{
		staticRetriever(MethodManagedIdentity, mi, nil),
		staticRetriever(MethodAzureCLI, cli, nil),
	})

	cred, err := Retrieve(context.Background(), MethodAzureCLI, Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, MethodAzureCLI, cred.Method)
	assert.Zero(t, mi.GetTokenCallCount(), "explicit method must not probe other retrievers")
}

func TestRetrieveUnknownMethod(t *testing.T) {
	swapRetrievers(t, []retriever{
		staticRetriever(MethodManagedIdentity, testutil.NewMockCredential(nil), nil),
	})

	_, err := Retrieve(context.Background(), Method("device-code"), Options{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestMaskClientID(t *testing.T) {
	assert.Equal(t, "****", maskClientID("short"))
	assert.Equal(t, "12345678...", maskClientID("12345678-abcd-efgh"))
}
