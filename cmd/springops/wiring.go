package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/auth"
	"github.com/flavioaiello/springops/pkg/config"
	"github.com/flavioaiello/springops/pkg/preflight"
	"github.com/flavioaiello/springops/pkg/springcloud"
	"github.com/flavioaiello/springops/pkg/sqlserver"
	"github.com/flavioaiello/springops/pkg/telemetry"
)

// Public IP discovery for the local-machine firewall rule.
const (
	clientIPEndpoint = "https://api.ipify.org"
	clientIPTimeout  = 10 * time.Second
)

// globalOptions holds the persistent root flags.
type globalOptions struct {
	authMethod    string
	identityName  string
	identityGroup string
	skipPreflight bool
	noTelemetry   bool
}

// session bundles everything a command needs to talk to Azure.
type session struct {
	cfg     *config.Config
	cred    *auth.Credential
	tracker telemetry.Tracker
}

// newSession loads the descriptor, retrieves a credential and runs the role
// assignment preflight when a user-assigned identity was named.
func newSession(ctx context.Context, descriptorPath string, opts *globalOptions) (*session, error) {
	cfg, err := config.Load(descriptorPath)
	if err != nil {
		return nil, err
	}

	authOpts := auth.Options{}
	var identity *auth.Identity

	if opts.identityName != "" {
		group := opts.identityGroup
		if group == "" {
			group = cfg.ResourceGroup
		}

		// Resolving the identity needs a bootstrap credential first.
		bootstrap, err := auth.Retrieve(ctx, auth.MethodAuto, auth.Options{}, logger)
		if err != nil {
			return nil, err
		}
		identity, err = auth.ResolveUserAssignedIdentity(ctx, bootstrap,
			cfg.SubscriptionID, group, opts.identityName, logger)
		if err != nil {
			return nil, err
		}
		authOpts.ManagedIdentityClientID = identity.ClientID
	}

	cred, err := auth.Retrieve(ctx, auth.Method(opts.authMethod), authOpts, logger)
	if err != nil {
		return nil, err
	}

	if identity != nil && !opts.skipPreflight {
		checker, err := preflight.NewChecker(cfg.SubscriptionID, cfg.ResourceGroup, cred, logger)
		if err != nil {
			return nil, err
		}
		if err := checker.Check(ctx, identity.PrincipalID); err != nil {
			return nil, err
		}
	}

	tracker := telemetry.Tracker(telemetry.Nop())
	if !opts.noTelemetry {
		tracker = telemetry.NewZapTracker(logger)
	}

	return &session{cfg: cfg, cred: cred, tracker: tracker}, nil
}

// deployment wires the Spring Apps deployment manager.
func (s *session) deployment() (*springcloud.Deployment, error) {
	client, err := springcloud.NewClient(
		s.cfg.SubscriptionID, s.cfg.ResourceGroup, s.cfg.ServiceName, s.cfg.AppName,
		s.cred, logger,
	)
	if err != nil {
		return nil, err
	}
	return springcloud.NewDeployment(s.cfg.Deployment.Name, client, logger, s.tracker), nil
}

// sqlServer wires the SQL server manager. The descriptor must carry a sql
// section.
func (s *session) sqlServer() (*sqlserver.Server, error) {
	if s.cfg.SQL == nil {
		return nil, fmt.Errorf("descriptor has no sql section")
	}
	client, err := sqlserver.NewClient(
		s.cfg.SubscriptionID, s.cfg.ResourceGroup, s.cfg.SQL.Location,
		s.cred, logger,
	)
	if err != nil {
		return nil, err
	}
	return sqlserver.NewServer(s.cfg.SQL.ServerName, client, logger, s.tracker), nil
}

// scaleSettings translates the descriptor's scale section.
func scaleSettings(sc config.ScaleConfig) springcloud.ScaleSettings {
	return springcloud.ScaleSettings{
		CPU:        sc.CPU,
		MemoryInGB: sc.MemoryInGB,
		Capacity:   sc.InstanceCount,
	}
}

// resolveClientIP discovers the caller's public IP for the local-machine
// firewall rule.
func resolveClientIP(ctx context.Context) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, clientIPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, clientIPEndpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to discover public IP: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to discover public IP: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))

	logger.Debug("Resolved public IP", zap.String("ip", ip))
	return ip, nil
}
