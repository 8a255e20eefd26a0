// Package testutil provides in-memory fakes for testing without Azure
// connectivity.
//
// Features:
//   - MockCredential: azcore.TokenCredential returning fake tokens
//   - FakeDeploymentAPI: in-memory Spring Apps deployment management
//   - FakeSQLAPI: in-memory SQL server and firewall rule management
//
// All fakes are thread-safe and record their calls for test assertions.
package testutil
