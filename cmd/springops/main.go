// Package main implements the springops CLI tool.
//
// springops reconciles Azure Spring Apps deployments and their supporting
// Azure SQL servers against a declarative descriptor:
//
//	springops deploy -f springops.yaml     # Reconcile the deployment
//	springops scale -f springops.yaml      # Change scale settings only
//	springops status -f springops.yaml     # Show remote state
//	springops delete -f springops.yaml     # Delete the deployment
//	springops sql provision -f springops.yaml
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version is set at build time.
	version = "dev"

	// Logger for CLI.
	logger *zap.Logger
)

// Flag names shared across commands.
const (
	flagDescriptor    = "descriptor"
	flagAuthMethod    = "auth-method"
	flagIdentityName  = "identity-name"
	flagIdentityGroup = "identity-resource-group"
	flagSkipPreflight = "skip-preflight"
	flagWaitTimeout   = "wait-timeout"
	flagNoTelemetry   = "no-telemetry"
	descDescriptor    = "Deployment descriptor file"
	defaultDescriptor = "springops.yaml"
)

func main() {
	// Initialize logger.
	logger, _ = zap.NewDevelopment()
	defer func() {
		_ = logger.Sync()
	}()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "springops",
		Short: "Azure Spring Apps deployment CLI",
		Long: `springops is a CLI for managing Azure Spring Apps deployments.

It reads a declarative descriptor, diffs it against the remote deployment
and writes only the changed properties, optionally provisioning an Azure
SQL server alongside the app.`,
		Version:      version,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.authMethod, flagAuthMethod, "auto",
		"Authentication method (auto|managedIdentity|environment|azureCli)")
	pf.StringVar(&opts.identityName, flagIdentityName, "",
		"User-assigned managed identity to authenticate as")
	pf.StringVar(&opts.identityGroup, flagIdentityGroup, "",
		"Resource group of the user-assigned managed identity")
	pf.BoolVar(&opts.skipPreflight, flagSkipPreflight, false,
		"Skip the role assignment preflight check")
	pf.BoolVar(&opts.noTelemetry, flagNoTelemetry, false,
		"Disable telemetry events")

	// Add subcommands.
	cmd.AddCommand(
		newDeployCmd(opts),
		newScaleCmd(opts),
		newStatusCmd(opts),
		newDeleteCmd(opts),
		newSQLCmd(opts),
	)

	return cmd
}
