package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/config"
	"github.com/flavioaiello/springops/pkg/springcloud"
)

func newDeployCmd(opts *globalOptions) *cobra.Command {
	var (
		descriptor  string
		waitTimeout time.Duration
		noWait      bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Reconcile the deployment against the descriptor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx, descriptor, opts)
			if err != nil {
				return err
			}
			d, err := s.deployment()
			if err != nil {
				return err
			}

			b := d.Reconcile().
				ConfigEnvironmentVariables(s.cfg.Deployment.Env).
				ConfigJvmOptions(s.cfg.Deployment.JvmOptions).
				ConfigRuntimeVersion(s.cfg.Deployment.RuntimeVersion)
			if s.cfg.ArtifactPath != "" {
				b = b.ConfigArtifact(s.cfg.ArtifactPath)
			}
			if !s.cfg.Deployment.Scale.IsZero() {
				b = b.ConfigScaleSettings(scaleSettings(s.cfg.Deployment.Scale))
			}

			if _, err := b.Commit(ctx); err != nil {
				return err
			}
			if noWait {
				return nil
			}

			ent, err := d.WaitUntilReady(ctx, waitTimeout)
			if err != nil {
				return err
			}
			logger.Info("Deployment ready",
				zap.String("deployment", ent.Name),
				zap.String("status", string(ent.Status)),
				zap.Int("instances", ent.Instances),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptor, flagDescriptor, "f", defaultDescriptor, descDescriptor)
	cmd.Flags().DurationVar(&waitTimeout, flagWaitTimeout, config.DefaultWaitTimeout, "Readiness wait timeout")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return without waiting for readiness")

	return cmd
}

func newScaleCmd(opts *globalOptions) *cobra.Command {
	var (
		descriptor string
		cpu        int32
		memory     int32
		instances  int32
	)

	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Change only the deployment's scale settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx, descriptor, opts)
			if err != nil {
				return err
			}
			d, err := s.deployment()
			if err != nil {
				return err
			}

			settings := springcloud.ScaleSettings{CPU: cpu, MemoryInGB: memory, Capacity: instances}
			if settings.IsZero() {
				settings = scaleSettings(s.cfg.Deployment.Scale)
			}

			ent, err := d.Scale(ctx, settings)
			if err != nil {
				return err
			}
			logger.Info("Deployment scaled",
				zap.String("deployment", ent.Name),
				zap.String("scale", ent.Scale.String()),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptor, flagDescriptor, "f", defaultDescriptor, descDescriptor)
	cmd.Flags().Int32Var(&cpu, "cpu", 0, "vCPUs per instance")
	cmd.Flags().Int32Var(&memory, "memory", 0, "Memory per instance in GiB")
	cmd.Flags().Int32Var(&instances, "instances", 0, "Instance count")

	return cmd
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var descriptor string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the remote deployment state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx, descriptor, opts)
			if err != nil {
				return err
			}
			d, err := s.deployment()
			if err != nil {
				return err
			}

			exists, err := d.Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				logger.Info("Deployment does not exist",
					zap.String("deployment", d.Name()),
					zap.String("app", s.cfg.AppName),
				)
				return nil
			}

			ent, _ := d.Entity()
			logger.Info("Deployment status",
				zap.String("deployment", ent.Name),
				zap.String("app", ent.AppName),
				zap.String("service", ent.ServiceName),
				zap.String("status", string(ent.Status)),
				zap.String("provisioning_state", string(ent.ProvisioningState)),
				zap.String("runtime_version", ent.RuntimeVersion),
				zap.String("scale", ent.Scale.String()),
				zap.Int("instances", ent.Instances),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptor, flagDescriptor, "f", defaultDescriptor, descDescriptor)

	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var descriptor string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newSession(ctx, descriptor, opts)
			if err != nil {
				return err
			}
			d, err := s.deployment()
			if err != nil {
				return err
			}

			if err := d.Delete(ctx); err != nil {
				return err
			}
			logger.Info("Deployment deleted", zap.String("deployment", d.Name()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptor, flagDescriptor, "f", defaultDescriptor, descDescriptor)

	return cmd
}
