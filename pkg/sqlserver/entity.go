// Package sqlserver manages Azure SQL servers by reconciling a locally
// declared desired configuration against the observed remote server and
// writing only the delta. Firewall rules are reconciled with separate calls
// after the server write, mirroring how the management API expects them.
package sqlserver

// Server states reported by the management API.
const (
	// StateReady means the server is provisioned and reachable.
	StateReady = "Ready"
	// StateDisabled means the server has been disabled.
	StateDisabled = "Disabled"
)

// ServerEntity is the last-fetched snapshot of a SQL server as reported by
// the management API, translated from the SDK model.
type ServerEntity struct {
	// ID is the fully qualified ARM resource ID.
	ID string
	// Name is the server name.
	Name string
	// ResourceGroup is the server's resource group.
	ResourceGroup string
	// Location is the Azure region.
	Location string
	// Kind is the server kind as reported by ARM.
	Kind string
	// Type is the ARM resource type.
	Type string
	// Version is the SQL server version.
	Version string
	// State is the server state (e.g. Ready).
	State string
	// AdministratorLogin is the administrator login name.
	AdministratorLogin string
	// FullyQualifiedDomainName is the server endpoint.
	FullyQualifiedDomainName string
}

// Ready reports whether the server reached its usable state.
func (e ServerEntity) Ready() bool {
	return e.State == StateReady
}

// FirewallRuleEntity is a single server firewall rule.
type FirewallRuleEntity struct {
	// ID is the fully qualified ARM resource ID.
	ID string
	// Name is the rule name.
	Name string
	// StartIPAddress is the inclusive lower bound.
	StartIPAddress string
	// EndIPAddress is the inclusive upper bound.
	EndIPAddress string
}

// Patch is the sparse set of server fields to change in the next remote
// write. Nil fields are left untouched remotely.
type Patch struct {
	// Location is required when creating the server.
	Location *string
	// AdministratorLogin can only be set at creation.
	AdministratorLogin *string
	// AdministratorLoginPassword sets the administrator password.
	AdministratorLoginPassword *string
	// Version sets the SQL server version.
	Version *string
}

// IsEmpty reports whether the patch carries no fields.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}
