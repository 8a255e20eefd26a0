package sqlserver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/sqlserver"
	"github.com/flavioaiello/springops/pkg/testutil"
)

func newServer(t *testing.T, api *testutil.FakeSQLAPI) *sqlserver.Server {
	t.Helper()
	return sqlserver.NewServer("srv", api, zap.NewNop(), nil)
}

func seedReady(api *testutil.FakeSQLAPI) sqlserver.ServerEntity {
	ent := sqlserver.ServerEntity{
		Name:                     "srv",
		Location:                 "westeurope",
		Version:                  "12.0",
		State:                    sqlserver.StateReady,
		AdministratorLogin:       "dbadmin",
		FullyQualifiedDomainName: "srv.database.windows.net",
	}
	api.Seed(ent)
	return ent
}

func staticIP(ip string) sqlserver.ClientIPResolver {
	return func(context.Context) (string, error) { return ip, nil }
}

func TestCommitCreatesServer(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	s := newServer(t, api)
	ctx := context.Background()

	ent, err := s.Reconcile().
		ConfigLocation("westeurope").
		ConfigAdministratorLogin("dbadmin").
		ConfigAdministratorPassword("hunter2!").
		ConfigVersion("12.0").
		Commit(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, api.EnsureCallCount(), "create must ensure the resource group")
	writes := api.ServerWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, "dbadmin", *writes[0].Patch.AdministratorLogin)
	assert.Equal(t, "hunter2!", *writes[0].Patch.AdministratorLoginPassword)
	assert.True(t, ent.Ready())
}

func TestCommitCreateRequiresCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("missing login", func(t *testing.T) {
		api := testutil.NewFakeSQLAPI()
		s := newServer(t, api)
		_, err := s.Reconcile().
			ConfigAdministratorPassword("hunter2!").
			Commit(ctx)
		assert.ErrorIs(t, err, sqlserver.ErrAdminLoginRequired)
		assert.Empty(t, api.ServerWrites())
	})

	t.Run("missing password", func(t *testing.T) {
		api := testutil.NewFakeSQLAPI()
		s := newServer(t, api)
		_, err := s.Reconcile().
			ConfigAdministratorLogin("dbadmin").
			Commit(ctx)
		assert.ErrorIs(t, err, sqlserver.ErrPasswordRequired)
		assert.Empty(t, api.ServerWrites())
	})
}

func TestCommitSkipsWriteWhenNothingChanged(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	remote := seedReady(api)
	s := newServer(t, api)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))

	ent, err := s.Reconcile().
		ConfigAdministratorLogin(remote.AdministratorLogin).
		ConfigVersion(remote.Version).
		Commit(ctx)
	require.NoError(t, err)

	assert.Empty(t, api.ServerWrites(), "no-op commit must not write")
	assert.Zero(t, api.EnsureCallCount(), "existing server must not touch the resource group")
	assert.Equal(t, remote, ent)
}

func TestCommitLazyRefreshSkipsUnchangedFields(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	remote := seedReady(api)
	s := newServer(t, api)

	// No explicit Refresh: the values were queued against an unknown slot,
	// but the commit re-diffs them against the late-refreshed snapshot and
	// finds nothing to write.
	ent, err := s.Reconcile().
		ConfigAdministratorLogin(remote.AdministratorLogin).
		ConfigVersion(remote.Version).
		ConfigLocation(remote.Location).
		Commit(context.Background())
	require.NoError(t, err)

	assert.Empty(t, api.ServerWrites(), "unchanged values must not write")
	assert.Equal(t, remote, ent)
}

func TestCommitRejectsLoginChange(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)

	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.Reconcile().
		ConfigAdministratorLogin("other").
		Commit(context.Background())
	assert.ErrorIs(t, err, sqlserver.ErrAdminLoginImmutable)
	assert.Empty(t, api.ServerWrites())
}

func TestCommitPasswordAlwaysWrites(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)
	ctx := context.Background()

	// The remote password is never readable, so a specified password is
	// always a write; a blank one is "not specified".
	_, err := s.Reconcile().
		ConfigAdministratorPassword("changed!").
		Commit(ctx)
	require.NoError(t, err)
	require.Len(t, api.ServerWrites(), 1)

	_, err = s.Reconcile().
		ConfigAdministratorPassword("").
		Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, api.ServerWrites(), 1)
}

func TestCommitFirewallOnlySkipsServerWrite(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)
	ctx := context.Background()

	_, err := s.Reconcile().
		ConfigAllowAzureServices(true).
		ConfigAllowAccessFromLocalMachine(true, staticIP("1.2.3.4")).
		Commit(ctx)
	require.NoError(t, err)

	assert.Empty(t, api.ServerWrites(), "firewall-only change must not write the server")

	writes := api.FirewallWrites()
	require.Len(t, writes, 2)
	assert.Equal(t, sqlserver.AzureServicesRuleName, writes[0].RuleName)
	assert.Equal(t, "0.0.0.0", writes[0].StartIP)
	assert.Equal(t, sqlserver.LocalMachineRuleName, writes[1].RuleName)
	assert.Equal(t, "1.2.3.4", writes[1].StartIP)
	assert.Equal(t, "1.2.3.4", writes[1].EndIP)
}

func TestCommitFirewallTogglesAreIdempotent(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	api.SeedFirewallRule("srv", sqlserver.FirewallRuleEntity{
		Name:           sqlserver.AzureServicesRuleName,
		StartIPAddress: "0.0.0.0",
		EndIPAddress:   "0.0.0.0",
	})
	api.SeedFirewallRule("srv", sqlserver.FirewallRuleEntity{
		Name:           sqlserver.LocalMachineRuleName,
		StartIPAddress: "1.2.3.4",
		EndIPAddress:   "1.2.3.4",
	})
	s := newServer(t, api)

	_, err := s.Reconcile().
		ConfigAllowAzureServices(true).
		ConfigAllowAccessFromLocalMachine(true, staticIP("1.2.3.4")).
		Commit(context.Background())
	require.NoError(t, err)

	assert.Empty(t, api.FirewallWrites(), "rules already in the desired state")
	assert.Empty(t, api.FirewallDeletes())
}

func TestCommitFirewallDisableRemovesRules(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	api.SeedFirewallRule("srv", sqlserver.FirewallRuleEntity{
		Name:           sqlserver.AzureServicesRuleName,
		StartIPAddress: "0.0.0.0",
		EndIPAddress:   "0.0.0.0",
	})
	s := newServer(t, api)

	_, err := s.Reconcile().
		ConfigAllowAzureServices(false).
		Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{sqlserver.AzureServicesRuleName}, api.FirewallDeletes())
}

func TestCommitLocalMachineUpdatesStaleIP(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	api.SeedFirewallRule("srv", sqlserver.FirewallRuleEntity{
		Name:           sqlserver.LocalMachineRuleName,
		StartIPAddress: "9.9.9.9",
		EndIPAddress:   "9.9.9.9",
	})
	s := newServer(t, api)

	_, err := s.Reconcile().
		ConfigAllowAccessFromLocalMachine(true, staticIP("1.2.3.4")).
		Commit(context.Background())
	require.NoError(t, err)

	writes := api.FirewallWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, "1.2.3.4", writes[0].StartIP)
}

func TestCommitLocalMachineNeedsResolver(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)

	_, err := s.Reconcile().
		ConfigAllowAccessFromLocalMachine(true, nil).
		Commit(context.Background())
	assert.ErrorIs(t, err, sqlserver.ErrClientIPUnavailable)
}

func TestCommitTwiceFails(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)
	ctx := context.Background()

	b := s.Reconcile().ConfigVersion("12.0")
	_, err := b.Commit(ctx)
	require.NoError(t, err)

	_, err = b.Commit(ctx)
	assert.ErrorIs(t, err, sqlserver.ErrAlreadyCommitted)
}

func TestCommitRetriesAfterFailure(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)
	ctx := context.Background()

	api.FailWrites(errors.New("throttled"))
	b := s.Reconcile().ConfigAdministratorPassword("changed!")
	_, err := b.Commit(ctx)
	require.Error(t, err)

	api.FailWrites(nil)
	_, err = b.Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, api.ServerWrites(), 2)
}

func TestDeleteRecordsAbsence(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)
	ctx := context.Background()

	exists, err := s.Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, s.Delete(ctx))

	exists, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWaitUntilReady(t *testing.T) {
	api := testutil.NewFakeSQLAPI()
	seedReady(api)
	s := newServer(t, api)

	ent, err := s.WaitUntilReady(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, ent.Ready())
}
