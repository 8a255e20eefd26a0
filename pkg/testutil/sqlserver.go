package testutil

import (
	"context"
	"sync"

	"github.com/flavioaiello/springops/pkg/remote"
	"github.com/flavioaiello/springops/pkg/sqlserver"
)

// ServerWrite records a single server CreateOrUpdate invocation.
type ServerWrite struct {
	Name  string
	Patch sqlserver.Patch
}

// FirewallWrite records a single SetFirewallRule invocation.
type FirewallWrite struct {
	ServerName string
	RuleName   string
	StartIP    string
	EndIP      string
}

// FakeSQLAPI provides an in-memory implementation of the SQL server
// management surface, including firewall rules and the resource group
// existence check. Thread-safe.
type FakeSQLAPI struct {
	mu sync.Mutex

	servers map[string]sqlserver.ServerEntity
	rules   map[string]map[string]sqlserver.FirewallRuleEntity

	getErr      error
	writeErr    error
	firewallErr error
	ensureErr   error

	getCalls        []string
	serverWrites    []ServerWrite
	deleteCalls     []string
	firewallWrites  []FirewallWrite
	firewallDeletes []string
	ensureCalls     int
}

// NewFakeSQLAPI creates an empty fake.
func NewFakeSQLAPI() *FakeSQLAPI {
	return &FakeSQLAPI{
		servers: make(map[string]sqlserver.ServerEntity),
		rules:   make(map[string]map[string]sqlserver.FirewallRuleEntity),
	}
}

// Seed stores a server as existing remote state.
func (f *FakeSQLAPI) Seed(ent sqlserver.ServerEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers[ent.Name] = ent
}

// SeedFirewallRule stores a firewall rule as existing remote state.
func (f *FakeSQLAPI) SeedFirewallRule(serverName string, rule sqlserver.FirewallRuleEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rules[serverName] == nil {
		f.rules[serverName] = make(map[string]sqlserver.FirewallRuleEntity)
	}
	f.rules[serverName][rule.Name] = rule
}

// FailGets configures Get to return err; nil restores normal behavior.
func (f *FakeSQLAPI) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailWrites configures CreateOrUpdate to return err; nil restores normal
// behavior.
func (f *FakeSQLAPI) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// FailFirewall configures the firewall rule calls to return err; nil
// restores normal behavior.
func (f *FakeSQLAPI) FailFirewall(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firewallErr = err
}

// FailEnsure configures EnsureResourceGroup to return err; nil restores
// normal behavior.
func (f *FakeSQLAPI) FailEnsure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureErr = err
}

// ServerWrites returns all recorded server CreateOrUpdate calls.
func (f *FakeSQLAPI) ServerWrites() []ServerWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ServerWrite, len(f.serverWrites))
	copy(out, f.serverWrites)
	return out
}

// FirewallWrites returns all recorded SetFirewallRule calls.
func (f *FakeSQLAPI) FirewallWrites() []FirewallWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FirewallWrite, len(f.firewallWrites))
	copy(out, f.firewallWrites)
	return out
}

// FirewallDeletes returns the rule names passed to DeleteFirewallRule.
func (f *FakeSQLAPI) FirewallDeletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.firewallDeletes))
	copy(out, f.firewallDeletes)
	return out
}

// EnsureCallCount returns the number of EnsureResourceGroup calls.
func (f *FakeSQLAPI) EnsureCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensureCalls
}

// GetCallCount returns the number of Get calls.
func (f *FakeSQLAPI) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.getCalls)
}

// Get implements sqlserver.API.
func (f *FakeSQLAPI) Get(ctx context.Context, name string) (*sqlserver.ServerEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls = append(f.getCalls, name)
	if f.getErr != nil {
		return nil, f.getErr
	}

	ent, ok := f.servers[name]
	if !ok {
		return nil, remote.ErrNotFound
	}
	out := ent
	return &out, nil
}

// CreateOrUpdate implements sqlserver.API. The patch is merged into the
// stored server, which is then marked ready.
func (f *FakeSQLAPI) CreateOrUpdate(ctx context.Context, name string, patch sqlserver.Patch) (*sqlserver.ServerEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.serverWrites = append(f.serverWrites, ServerWrite{Name: name, Patch: patch})
	if f.writeErr != nil {
		return nil, f.writeErr
	}

	ent := f.servers[name]
	ent.Name = name
	if patch.Location != nil {
		ent.Location = *patch.Location
	}
	if patch.AdministratorLogin != nil {
		ent.AdministratorLogin = *patch.AdministratorLogin
	}
	if patch.Version != nil {
		ent.Version = *patch.Version
	}
	ent.State = sqlserver.StateReady
	ent.FullyQualifiedDomainName = name + ".database.windows.net"
	f.servers[name] = ent

	out := ent
	return &out, nil
}

// Delete implements sqlserver.API.
func (f *FakeSQLAPI) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, name)
	delete(f.servers, name)
	delete(f.rules, name)
	return nil
}

// ListFirewallRules implements sqlserver.API.
func (f *FakeSQLAPI) ListFirewallRules(ctx context.Context, serverName string) ([]sqlserver.FirewallRuleEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.firewallErr != nil {
		return nil, f.firewallErr
	}

	var out []sqlserver.FirewallRuleEntity
	for _, rule := range f.rules[serverName] {
		out = append(out, rule)
	}
	return out, nil
}

// SetFirewallRule implements sqlserver.API.
func (f *FakeSQLAPI) SetFirewallRule(ctx context.Context, serverName, ruleName, startIP, endIP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.firewallWrites = append(f.firewallWrites, FirewallWrite{
		ServerName: serverName,
		RuleName:   ruleName,
		StartIP:    startIP,
		EndIP:      endIP,
	})
	if f.firewallErr != nil {
		return f.firewallErr
	}

	if f.rules[serverName] == nil {
		f.rules[serverName] = make(map[string]sqlserver.FirewallRuleEntity)
	}
	f.rules[serverName][ruleName] = sqlserver.FirewallRuleEntity{
		Name:           ruleName,
		StartIPAddress: startIP,
		EndIPAddress:   endIP,
	}
	return nil
}

// DeleteFirewallRule implements sqlserver.API.
func (f *FakeSQLAPI) DeleteFirewallRule(ctx context.Context, serverName, ruleName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.firewallDeletes = append(f.firewallDeletes, ruleName)
	if f.firewallErr != nil {
		return f.firewallErr
	}
	delete(f.rules[serverName], ruleName)
	return nil
}

// EnsureResourceGroup implements sqlserver.API.
func (f *FakeSQLAPI) EnsureResourceGroup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}

// Verify interface compliance.
var _ sqlserver.API = (*FakeSQLAPI)(nil)
