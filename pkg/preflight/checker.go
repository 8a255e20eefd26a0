// Package preflight verifies ahead of any write that the operating
// principal holds a role allowing resource management on the target
// resource group, so misconfigured identities fail fast with a clear error
// instead of partway through a rollout.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"go.uber.org/zap"
)

// Built-in role definition IDs that grant resource writes.
const (
	// ContributorRoleID is the built-in Contributor role.
	ContributorRoleID = "b24988ac-6180-42a0-ab88-20f7382dd24c"
	// OwnerRoleID is the built-in Owner role.
	OwnerRoleID = "8e3af657-a8ff-443c-a75c-2fe8c4bcb635"
)

// Errors.
var (
	// ErrInsufficientRole means the principal holds no writer role on the
	// target scope.
	ErrInsufficientRole = errors.New("principal lacks a writer role on the target scope")
)

// Checker verifies role assignments for a principal on one resource group.
type Checker struct {
	subscriptionID  string
	resourceGroup   string
	roleAssignments *armauthorization.RoleAssignmentsClient
	logger          *zap.Logger
}

// NewChecker creates a checker scoped to one resource group.
func NewChecker(subscriptionID, resourceGroup string, cred azcore.TokenCredential, logger *zap.Logger) (*Checker, error) {
	roleAssignments, err := armauthorization.NewRoleAssignmentsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create role assignments client: %w", err)
	}
	return &Checker{
		subscriptionID:  subscriptionID,
		resourceGroup:   resourceGroup,
		roleAssignments: roleAssignments,
		logger:          logger,
	}, nil
}

// Check lists the principal's role assignments at resource-group scope,
// which includes assignments inherited from the subscription, and fails
// with ErrInsufficientRole unless one of them grants resource writes.
func (c *Checker) Check(ctx context.Context, principalID string) error {
	scope := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", c.subscriptionID, c.resourceGroup)
	filter := fmt.Sprintf("principalId eq '%s'", principalID)

	var roleIDs []string
	pager := c.roleAssignments.NewListForScopePager(scope, &armauthorization.RoleAssignmentsClientListForScopeOptions{
		Filter: to.Ptr(filter),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list role assignments: %w", err)
		}
		for _, assignment := range page.Value {
			if assignment == nil || assignment.Properties == nil || assignment.Properties.RoleDefinitionID == nil {
				continue
			}
			roleIDs = append(roleIDs, roleDefinitionGUID(*assignment.Properties.RoleDefinitionID))
		}
	}

	c.logger.Debug("Role assignments fetched",
		zap.String("principal_id", principalID),
		zap.Int("count", len(roleIDs)),
	)

	if !hasWriterRole(roleIDs) {
		return fmt.Errorf("%w: principal %s", ErrInsufficientRole, principalID)
	}
	return nil
}

// hasWriterRole reports whether any of the role definition GUIDs grants
// resource writes.
func hasWriterRole(roleIDs []string) bool {
	for _, id := range roleIDs {
		switch strings.ToLower(id) {
		case ContributorRoleID, OwnerRoleID:
			return true
		}
	}
	return false
}

// roleDefinitionGUID extracts the definition GUID from a fully qualified
// role definition resource ID.
func roleDefinitionGUID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
