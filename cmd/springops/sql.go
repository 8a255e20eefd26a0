package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/sqlserver"
)

func newSQLCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Azure SQL server commands",
	}

	cmd.AddCommand(
		newSQLProvisionCmd(opts),
		newSQLDeleteCmd(opts),
	)

	return cmd
}

func newSQLProvisionCmd(opts *globalOptions) *cobra.Command {
	var (
		descriptor  string
		waitTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Reconcile the SQL server against the descriptor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx, descriptor, opts)
			if err != nil {
				return err
			}
			srv, err := s.sqlServer()
			if err != nil {
				return err
			}

			sqlCfg := s.cfg.SQL

			b := srv.Reconcile().
				ConfigLocation(sqlCfg.Location).
				ConfigAdministratorLogin(sqlCfg.AdminLogin).
				ConfigAdministratorPassword(sqlCfg.AdminPassword).
				ConfigVersion(sqlCfg.Version)
			if sqlCfg.AllowAzureServices != nil {
				b = b.ConfigAllowAzureServices(*sqlCfg.AllowAzureServices)
			}
			if sqlCfg.AllowLocalMachine != nil {
				b = b.ConfigAllowAccessFromLocalMachine(*sqlCfg.AllowLocalMachine, resolveClientIP)
			}

			if _, err := b.Commit(ctx); err != nil {
				return err
			}

			ent, err := srv.WaitUntilReady(ctx, waitTimeout)
			if err != nil {
				return err
			}
			logger.Info("SQL server ready",
				zap.String("server", ent.Name),
				zap.String("fqdn", ent.FullyQualifiedDomainName),
				zap.String("state", ent.State),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptor, flagDescriptor, "f", defaultDescriptor, descDescriptor)
	cmd.Flags().DurationVar(&waitTimeout, flagWaitTimeout, sqlserver.DefaultReadyTimeout, "Readiness wait timeout")

	return cmd
}

func newSQLDeleteCmd(opts *globalOptions) *cobra.Command {
	var descriptor string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the SQL server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx, descriptor, opts)
			if err != nil {
				return err
			}
			srv, err := s.sqlServer()
			if err != nil {
				return err
			}

			if err := srv.Delete(ctx); err != nil {
				return err
			}
			logger.Info("SQL server deleted", zap.String("server", srv.Name()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptor, flagDescriptor, "f", defaultDescriptor, descDescriptor)

	return cmd
}
