package sqlserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flavioaiello/springops/pkg/diff"
	"github.com/flavioaiello/springops/pkg/poll"
	"github.com/flavioaiello/springops/pkg/remote"
	"github.com/flavioaiello/springops/pkg/telemetry"
)

// Firewall rule conventions.
const (
	// AzureServicesRuleName is the ARM convention for the allow-Azure rule.
	AzureServicesRuleName = "AllowAllWindowsAzureIps"
	// azureServicesIP marks "Azure-internal traffic" in the rule body.
	azureServicesIP = "0.0.0.0"
	// LocalMachineRuleName is the rule holding the caller's public IP.
	LocalMachineRuleName = "ClientIPAddress"
)

// Polling bounds for readiness waits.
const (
	// ReadyPollInterval is the delay between state refreshes.
	ReadyPollInterval = 10 * time.Second
	// DefaultReadyTimeout bounds WaitUntilReady when none is given.
	DefaultReadyTimeout = 15 * time.Minute
)

// Errors.
var (
	// ErrAlreadyCommitted means Commit was called twice on one builder.
	ErrAlreadyCommitted = errors.New("builder already committed")
	// ErrAdminLoginRequired means a create was attempted without a login.
	ErrAdminLoginRequired = errors.New("administrator login is required to create a server")
	// ErrPasswordRequired means a create was attempted without a password.
	ErrPasswordRequired = errors.New("administrator password is required to create a server")
	// ErrAdminLoginImmutable means the login differs from the existing one.
	ErrAdminLoginImmutable = errors.New("administrator login cannot be changed on an existing server")
	// ErrClientIPUnavailable means no resolver was provided for the
	// local-machine firewall rule.
	ErrClientIPUnavailable = errors.New("client IP resolver is required to allow local machine access")
)

// API is the remote management collaborator for SQL servers in one resource
// group. Get reports missing servers as remote.ErrNotFound.
type API interface {
	Get(ctx context.Context, name string) (*ServerEntity, error)
	CreateOrUpdate(ctx context.Context, name string, patch Patch) (*ServerEntity, error)
	Delete(ctx context.Context, name string) error

	ListFirewallRules(ctx context.Context, serverName string) ([]FirewallRuleEntity, error)
	SetFirewallRule(ctx context.Context, serverName, ruleName, startIP, endIP string) error
	DeleteFirewallRule(ctx context.Context, serverName, ruleName string) error

	EnsureResourceGroup(ctx context.Context) error
}

// ClientIPResolver supplies the caller's public IP for the local-machine
// firewall rule. Injected so the core performs no hidden network probes.
type ClientIPResolver func(ctx context.Context) (string, error)

// Server manages a single SQL server. It owns the last-known remote slot;
// one Server serves one sequential caller.
type Server struct {
	name    string
	api     API
	logger  *zap.Logger
	tracker telemetry.Tracker
	slot    remote.Slot[ServerEntity]
}

// NewServer creates a server manager. Nothing is fetched until the first
// Refresh (or an operation that needs the remote state).
func NewServer(name string, api API, logger *zap.Logger, tracker telemetry.Tracker) *Server {
	if tracker == nil {
		tracker = telemetry.Nop()
	}
	return &Server{
		name:    name,
		api:     api,
		logger:  logger,
		tracker: tracker,
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Refresh replaces the remote slot wholesale. A missing server becomes an
// explicit Absent observation, not an error.
func (s *Server) Refresh(ctx context.Context) error {
	ent, err := s.api.Get(ctx, s.name)
	if err != nil {
		if remote.IsNotFound(err) {
			s.slot.ObserveAbsent()
			return nil
		}
		return err
	}
	s.slot.Observe(*ent)
	return nil
}

// Exists refreshes on first use and reports whether the server exists.
func (s *Server) Exists(ctx context.Context) (bool, error) {
	if !s.slot.Known() {
		if err := s.Refresh(ctx); err != nil {
			return false, err
		}
	}
	return s.slot.Presence() == remote.Present, nil
}

// Entity returns the last observed snapshot and whether one is present.
func (s *Server) Entity() (ServerEntity, bool) {
	return s.slot.Get()
}

// Delete removes the server and records its absence.
func (s *Server) Delete(ctx context.Context) error {
	if err := s.api.Delete(ctx, s.name); err != nil {
		return err
	}
	s.slot.ObserveAbsent()
	return nil
}

// FirewallRules lists the server's firewall rules.
func (s *Server) FirewallRules(ctx context.Context) ([]FirewallRuleEntity, error) {
	return s.api.ListFirewallRules(ctx, s.name)
}

// WaitUntilReady polls the remote state until the server is Ready or the
// timeout elapses, and returns the last observed snapshot.
func (s *Server) WaitUntilReady(ctx context.Context, timeout time.Duration) (ServerEntity, error) {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	s.logger.Info("Waiting for server to become ready",
		zap.String("server", s.name),
		zap.Duration("timeout", timeout),
	)

	return poll.Until(ctx,
		func(ctx context.Context) (ServerEntity, error) {
			if err := s.Refresh(ctx); err != nil {
				return ServerEntity{}, err
			}
			ent, _ := s.slot.Get()
			return ent, nil
		},
		ServerEntity.Ready,
		poll.Options{Interval: ReadyPollInterval, Timeout: timeout},
	)
}

// Reconcile returns a builder that diffs desired settings against the
// last-known remote state and commits only the delta.
func (s *Server) Reconcile() *Builder {
	return &Builder{server: s}
}

// builderState tracks the builder lifecycle.
type builderState int

const (
	stateEmpty builderState = iota
	stateDirty
	stateCommitted
)

// Builder accumulates only the differing server fields into a sparse patch.
// Firewall toggles are reconciled with separate calls after the server
// write; when only toggles changed, no server write is issued at all.
type Builder struct {
	server *Server
	patch  Patch
	state  builderState

	// Tri-state firewall toggles: nil means "not specified".
	allowAzureServices *bool
	allowLocalMachine  *bool
	resolveClientIP    ClientIPResolver
}

func (b *Builder) observed() ServerEntity {
	ent, _ := b.server.slot.Get()
	return ent
}

// ConfigLocation queues the region, only honored at creation.
func (b *Builder) ConfigLocation(location string) *Builder {
	if _, changed := diff.String("location", location, b.observed().Location); changed {
		b.patch.Location = &location
		b.state = stateDirty
	}
	return b
}

// ConfigAdministratorLogin queues the administrator login. The login is
// immutable on an existing server; a differing value fails at commit.
func (b *Builder) ConfigAdministratorLogin(login string) *Builder {
	if _, changed := diff.String("administratorLogin", login, b.observed().AdministratorLogin); changed {
		b.patch.AdministratorLogin = &login
		b.state = stateDirty
	}
	return b
}

// ConfigAdministratorPassword queues the administrator password. The remote
// value is never readable, so any non-blank input is a write.
func (b *Builder) ConfigAdministratorPassword(password string) *Builder {
	if password != "" {
		b.patch.AdministratorLoginPassword = &password
		b.state = stateDirty
	}
	return b
}

// ConfigVersion queues the SQL server version.
func (b *Builder) ConfigVersion(version string) *Builder {
	if _, changed := diff.String("version", version, b.observed().Version); changed {
		b.patch.Version = &version
		b.state = stateDirty
	}
	return b
}

// ConfigAllowAzureServices toggles the Azure-internal firewall rule.
func (b *Builder) ConfigAllowAzureServices(allow bool) *Builder {
	b.allowAzureServices = &allow
	b.state = stateDirty
	return b
}

// ConfigAllowAccessFromLocalMachine toggles the local-machine firewall
// rule. The caller's public IP comes from the injected resolver.
func (b *Builder) ConfigAllowAccessFromLocalMachine(allow bool, resolver ClientIPResolver) *Builder {
	b.allowLocalMachine = &allow
	b.resolveClientIP = resolver
	b.state = stateDirty
	return b
}

// Commit issues the remote writes.
//
// The queued patch is re-diffed against the latest observed snapshot first,
// so a builder populated before any refresh never rewrites values the
// remote already holds. Create requires administrator login and password
// and ensures the resource group first. An empty patch against an existing
// server skips the server write; firewall toggles are then reconciled with
// separate rule calls, touching only rules whose presence disagrees with
// the desired toggle. On remote failure the builder stays dirty so Commit
// may be retried.
func (b *Builder) Commit(ctx context.Context) (ServerEntity, error) {
	if b.state == stateCommitted {
		return ServerEntity{}, fmt.Errorf("%w: server %s", ErrAlreadyCommitted, b.server.name)
	}

	s := b.server

	// Late refresh so a builder obtained before any refresh still diffs
	// against real remote state.
	if !s.slot.Known() {
		if err := s.Refresh(ctx); err != nil {
			return ServerEntity{}, err
		}
	}
	exists := s.slot.Presence() == remote.Present
	b.rediff()

	op := telemetry.StartOperation(s.tracker, "server.commit")

	if err := b.validate(exists); err != nil {
		op.Failure(err, true)
		return ServerEntity{}, err
	}

	if !exists {
		if err := s.api.EnsureResourceGroup(ctx); err != nil {
			op.Failure(err, false)
			return ServerEntity{}, err
		}
	}

	wroteServer := false
	if !b.serverPatchEmpty(exists) {
		s.logger.Info("Updating server",
			zap.String("server", s.name),
			zap.Bool("create", !exists),
		)
		ent, err := s.api.CreateOrUpdate(ctx, s.name, b.patch)
		if err != nil {
			op.Failure(err, false)
			return ServerEntity{}, fmt.Errorf("failed to update server %s: %w", s.name, err)
		}
		s.slot.Observe(*ent)
		wroteServer = true
	} else {
		s.logger.Info("Skipping server update, no properties changed",
			zap.String("server", s.name),
		)
	}

	if err := b.reconcileFirewall(ctx); err != nil {
		op.Failure(err, false)
		return ServerEntity{}, err
	}

	b.state = stateCommitted
	op.Success()

	if wroteServer {
		s.logger.Info("Server updated", zap.String("server", s.name))
	}
	ent, _ := s.slot.Get()
	return ent, nil
}

// rediff drops queued fields that match the latest observed snapshot. The
// administrator password is exempt: the remote value is never readable, so
// a specified password is always written.
func (b *Builder) rediff() {
	obs := b.observed()
	if b.patch.Location != nil && *b.patch.Location == obs.Location {
		b.patch.Location = nil
	}
	if b.patch.AdministratorLogin != nil && *b.patch.AdministratorLogin == obs.AdministratorLogin {
		b.patch.AdministratorLogin = nil
	}
	if b.patch.Version != nil && *b.patch.Version == obs.Version {
		b.patch.Version = nil
	}
}

// validate checks create preconditions and immutable fields.
func (b *Builder) validate(exists bool) error {
	if exists {
		if b.patch.AdministratorLogin != nil &&
			*b.patch.AdministratorLogin != b.observed().AdministratorLogin {
			return fmt.Errorf("%w: %s", ErrAdminLoginImmutable, b.server.name)
		}
		return nil
	}

	if b.patch.AdministratorLogin == nil {
		return fmt.Errorf("%w: %s", ErrAdminLoginRequired, b.server.name)
	}
	if b.patch.AdministratorLoginPassword == nil {
		return fmt.Errorf("%w: %s", ErrPasswordRequired, b.server.name)
	}
	return nil
}

// serverPatchEmpty reports whether the server write can be skipped. A
// missing server is always written so it gets created.
func (b *Builder) serverPatchEmpty(exists bool) bool {
	return exists && b.patch.IsEmpty()
}

// reconcileFirewall applies the queued toggles with separate rule calls.
func (b *Builder) reconcileFirewall(ctx context.Context) error {
	if b.allowAzureServices == nil && b.allowLocalMachine == nil {
		return nil
	}

	s := b.server
	rules, err := s.api.ListFirewallRules(ctx, s.name)
	if err != nil {
		return fmt.Errorf("failed to list firewall rules for %s: %w", s.name, err)
	}
	byName := make(map[string]FirewallRuleEntity, len(rules))
	for _, r := range rules {
		byName[r.Name] = r
	}

	if b.allowAzureServices != nil {
		_, present := byName[AzureServicesRuleName]
		switch {
		case *b.allowAzureServices && !present:
			s.logger.Info("Allowing access from Azure services", zap.String("server", s.name))
			if err := s.api.SetFirewallRule(ctx, s.name, AzureServicesRuleName, azureServicesIP, azureServicesIP); err != nil {
				return err
			}
		case !*b.allowAzureServices && present:
			s.logger.Info("Removing access from Azure services", zap.String("server", s.name))
			if err := s.api.DeleteFirewallRule(ctx, s.name, AzureServicesRuleName); err != nil {
				return err
			}
		}
	}

	if b.allowLocalMachine != nil {
		rule, present := byName[LocalMachineRuleName]
		if !*b.allowLocalMachine {
			if present {
				s.logger.Info("Removing access from local machine", zap.String("server", s.name))
				return s.api.DeleteFirewallRule(ctx, s.name, LocalMachineRuleName)
			}
			return nil
		}

		if b.resolveClientIP == nil {
			return fmt.Errorf("%w: server %s", ErrClientIPUnavailable, s.name)
		}
		ip, err := b.resolveClientIP(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve client IP: %w", err)
		}
		if present && rule.StartIPAddress == ip && rule.EndIPAddress == ip {
			return nil
		}
		s.logger.Info("Allowing access from local machine",
			zap.String("server", s.name),
			zap.String("client_ip", ip),
		)
		return s.api.SetFirewallRule(ctx, s.name, LocalMachineRuleName, ip, ip)
	}

	return nil
}
