package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/msi/armmsi"
	"go.uber.org/zap"
)

// ErrIdentityNotFound means the named user-assigned identity does not exist.
var ErrIdentityNotFound = errors.New("user-assigned managed identity not found")

// Identity describes a resolved user-assigned managed identity.
type Identity struct {
	// ClientID authenticates as the identity, suitable for
	// Options.ManagedIdentityClientID.
	ClientID string
	// PrincipalID is the service principal object ID, used for role
	// assignment checks.
	PrincipalID string
}

// ResolveUserAssignedIdentity looks up a user-assigned managed identity by
// name.
//
// The lookup itself needs a credential; callers typically resolve with a
// bootstrap credential (CLI or environment) and then re-authenticate as the
// resolved identity.
func ResolveUserAssignedIdentity(
	ctx context.Context,
	cred azcore.TokenCredential,
	subscriptionID, resourceGroup, name string,
	logger *zap.Logger,
) (*Identity, error) {
	client, err := armmsi.NewUserAssignedIdentitiesClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create identities client: %w", err)
	}

	resp, err := client.Get(ctx, resourceGroup, name, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIdentityNotFound, name, err)
	}

	if resp.Properties == nil || resp.Properties.ClientID == nil {
		return nil, fmt.Errorf("%w: %s has no client ID", ErrIdentityNotFound, name)
	}

	id := &Identity{ClientID: *resp.Properties.ClientID}
	if resp.Properties.PrincipalID != nil {
		id.PrincipalID = *resp.Properties.PrincipalID
	}

	logger.Info("Resolved user-assigned managed identity",
		zap.String("name", name),
		zap.String("client_id", maskClientID(id.ClientID)),
	)
	return id, nil
}
