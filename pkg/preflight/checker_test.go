package preflight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasWriterRole(t *testing.T) {
	tests := []struct {
		name    string
		roleIDs []string
		want    bool
	}{
		{
			name:    "contributor",
			roleIDs: []string{ContributorRoleID},
			want:    true,
		},
		{
			name:    "owner",
			roleIDs: []string{OwnerRoleID},
			want:    true,
		},
		{
			name:    "uppercase GUID",
			roleIDs: []string{"B24988AC-6180-42A0-AB88-20F7382DD24C"},
			want:    true,
		},
		{
			name: "reader only",
			// Built-in Reader.
			roleIDs: []string{"acdd72a7-3385-48ef-bd42-f606fba81ae7"},
			want:    false,
		},
		{
			name:    "mixed grants",
			roleIDs: []string{"acdd72a7-3385-48ef-bd42-f606fba81ae7", ContributorRoleID},
			want:    true,
		},
		{
			name:    "no assignments",
			roleIDs: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasWriterRole(tt.roleIDs))
		})
	}
}

func TestRoleDefinitionGUID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{
			name: "fully qualified",
			id:   "/subscriptions/sub/providers/Microsoft.Authorization/roleDefinitions/" + ContributorRoleID,
			want: ContributorRoleID,
		},
		{
			name: "bare GUID",
			id:   OwnerRoleID,
			want: OwnerRoleID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, roleDefinitionGUID(tt.id))
		})
	}
}
