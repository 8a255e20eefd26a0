package testutil

import (
	"context"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavioaiello/springops/pkg/remote"
	"github.com/flavioaiello/springops/pkg/springcloud"
	"github.com/flavioaiello/springops/pkg/sqlserver"
)

func TestMockCredentialRecordsCalls(t *testing.T) {
	cred := NewMockCredential(nil)

	_, err := cred.GetToken(context.Background(), policy.TokenRequestOptions{
		Scopes: []string{"https://management.azure.com/.default"},
	})
	require.NoError(t, err)

	calls := cred.GetTokenCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"https://management.azure.com/.default"}, calls[0].Scopes)
}

func TestMockCredentialFailure(t *testing.T) {
	cred := NewMockCredential(nil)
	cred.SetFailure(true, "identity not assigned")

	_, err := cred.GetToken(context.Background(), policy.TokenRequestOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity not assigned")
	assert.Equal(t, 1, cred.GetTokenCallCount())
}

func TestFakeDeploymentAPIMergesPatches(t *testing.T) {
	api := NewFakeDeploymentAPI()
	ctx := context.Background()

	_, err := api.Get(ctx, "default")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	jvm := "-Xmx512m"
	_, err = api.CreateOrUpdate(ctx, "default", springcloud.Patch{JvmOptions: &jvm})
	require.NoError(t, err)

	env := map[string]string{"PROFILE": "prod"}
	ent, err := api.CreateOrUpdate(ctx, "default", springcloud.Patch{Env: env})
	require.NoError(t, err)

	assert.Equal(t, "-Xmx512m", ent.JvmOptions)
	assert.Equal(t, env, ent.Env)
	assert.Equal(t, springcloud.ProvisioningSucceeded, ent.ProvisioningState)
	assert.Len(t, api.Writes(), 2)
}

func TestFakeDeploymentAPIScriptedGets(t *testing.T) {
	api := NewFakeDeploymentAPI()
	ctx := context.Background()

	api.ScriptGet("default",
		springcloud.DeploymentEntity{Name: "default", ProvisioningState: springcloud.ProvisioningUpdating},
		springcloud.DeploymentEntity{Name: "default", ProvisioningState: springcloud.ProvisioningSucceeded},
	)

	first, err := api.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, springcloud.ProvisioningUpdating, first.ProvisioningState)

	second, err := api.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, springcloud.ProvisioningSucceeded, second.ProvisioningState)

	// Queue drained: the last scripted snapshot sticks.
	third, err := api.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, springcloud.ProvisioningSucceeded, third.ProvisioningState)
}

func TestFakeSQLAPIFirewallRules(t *testing.T) {
	api := NewFakeSQLAPI()
	ctx := context.Background()

	require.NoError(t, api.SetFirewallRule(ctx, "srv", "ClientIPAddress", "1.2.3.4", "1.2.3.4"))

	rules, err := api.ListFirewallRules(ctx, "srv")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "1.2.3.4", rules[0].StartIPAddress)

	require.NoError(t, api.DeleteFirewallRule(ctx, "srv", "ClientIPAddress"))
	rules, err = api.ListFirewallRules(ctx, "srv")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestFakeSQLAPICreateMarksReady(t *testing.T) {
	api := NewFakeSQLAPI()
	ctx := context.Background()

	login := "dbadmin"
	ent, err := api.CreateOrUpdate(ctx, "srv", sqlserver.Patch{AdministratorLogin: &login})
	require.NoError(t, err)

	assert.Equal(t, sqlserver.StateReady, ent.State)
	assert.Equal(t, "dbadmin", ent.AdministratorLogin)
	assert.Equal(t, "srv.database.windows.net", ent.FullyQualifiedDomainName)
}
