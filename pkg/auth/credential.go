// Package auth provides credential retrieval wrappers around the Azure
// Identity SDK.
//
// Each retriever builds a credential and probes a token for the ARM scope
// once, so "credential unavailable" is detected up front instead of on the
// first management call. The rest of the codebase treats the returned
// credential as an opaque azcore.TokenCredential.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.uber.org/zap"
)

// Method identifies how a credential was obtained.
type Method string

const (
	// MethodManagedIdentity uses a system- or user-assigned managed identity.
	MethodManagedIdentity Method = "managedIdentity"
	// MethodEnvironment uses service-principal settings from the environment.
	MethodEnvironment Method = "environment"
	// MethodAzureCLI reuses the token cache of a logged-in Azure CLI.
	MethodAzureCLI Method = "azureCli"
	// MethodAuto tries all methods in order.
	MethodAuto Method = "auto"
)

// Token probe settings.
const (
	// ARMScope is the token scope probed after building a credential.
	ARMScope = "https://management.azure.com/.default"
	// ProbeTimeout bounds the initial token probe per retriever.
	ProbeTimeout = 15 * time.Second
)

// Errors.
var (
	// ErrCredentialUnavailable means no retriever produced a usable token.
	ErrCredentialUnavailable = errors.New("no Azure credential available")
	// ErrUnknownMethod means the requested auth method is not supported.
	ErrUnknownMethod = errors.New("unknown authentication method")
)

// Credential is a token-bearing credential together with the method that
// produced it.
type Credential struct {
	azcore.TokenCredential

	// Method records which retriever succeeded.
	Method Method
}

// ManagedIdentityClientID optionally selects a user-assigned identity for
// MethodManagedIdentity. Empty means system-assigned.
type Options struct {
	// ManagedIdentityClientID selects a user-assigned managed identity.
	ManagedIdentityClientID string
}

type retriever struct {
	method Method
	build  func(Options) (azcore.TokenCredential, error)
}

// Retrieval order for MethodAuto: non-interactive methods first.
var retrievers = []retriever{
	{MethodManagedIdentity, buildManagedIdentity},
	{MethodEnvironment, buildEnvironment},
	{MethodAzureCLI, buildAzureCLI},
}

// Retrieve obtains a credential using the requested method, or tries all
// methods in order for MethodAuto. The winning credential has already served
// one token for the ARM scope.
func Retrieve(ctx context.Context, method Method, opts Options, logger *zap.Logger) (*Credential, error) {
	if method == "" {
		method = MethodAuto
	}

	var errs []error
	for _, r := range retrievers {
		if method != MethodAuto && method != r.method {
			continue
		}

		cred, err := r.build(opts)
		if err == nil {
			err = probeToken(ctx, cred)
		}
		if err != nil {
			logger.Debug("Credential retriever failed",
				zap.String("method", string(r.method)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", r.method, err))
			continue
		}

		logger.Info("Authenticated with Azure",
			zap.String("method", string(r.method)),
		)
		return &Credential{TokenCredential: cred, Method: r.method}, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return nil, fmt.Errorf("%w: %w", ErrCredentialUnavailable, errors.Join(errs...))
}

func buildManagedIdentity(opts Options) (azcore.TokenCredential, error) {
	miOpts := &azidentity.ManagedIdentityCredentialOptions{}
	if opts.ManagedIdentityClientID != "" {
		miOpts.ID = azidentity.ClientID(opts.ManagedIdentityClientID)
	}
	return azidentity.NewManagedIdentityCredential(miOpts)
}

func buildEnvironment(Options) (azcore.TokenCredential, error) {
	return azidentity.NewEnvironmentCredential(nil)
}

func buildAzureCLI(Options) (azcore.TokenCredential, error) {
	return azidentity.NewAzureCLICredential(nil)
}

// probeToken requests one token so unavailable credentials fail fast.
func probeToken(ctx context.Context, cred azcore.TokenCredential) error {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	_, err := cred.GetToken(probeCtx, policy.TokenRequestOptions{
		Scopes: []string{ARMScope},
	})
	return err
}

// maskClientID masks a client ID for logging.
func maskClientID(id string) string {
	if len(id) <= 8 {
		return "****"
	}
	return id[:8] + "..."
}
