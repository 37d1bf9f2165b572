// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// StateControlKey is the storage key under which the login-initiation flow
// persists a configuration's anti-forgery state.  The orchestrator only ever
// reads it, to discover which configuration owns a returning callback.
const StateControlKey = "authStateControl"

// URLService inspects the current browser URL.  Implementations decide what
// "current" means (a live page, an inbound http request, a test fixture).
type URLService interface {
	// CurrentURL returns the current URL.
	CurrentURL() string

	// StateParam extracts the oidc state parameter from url, returning ""
	// when none is present.
	StateParam(url string) string
}

// CallbackHandler classifies and processes authorization callbacks.  The
// OIDC handshake itself (code exchange, signature validation, event firing)
// is entirely the handler's business.
type CallbackHandler interface {
	// IsCallback reports whether currentURL is an authorization callback
	// for cfg.
	IsCallback(currentURL string, cfg *Config) bool

	// HandleCallback runs the callback protocol to completion, persisting
	// tokens and firing its own events on success.
	HandleCallback(ctx context.Context, currentURL string, cfg *Config) error
}

// AuthState exposes the storage-backed token state for a configuration.
type AuthState interface {
	// TokensValid reports whether the stored tokens for configID are
	// currently valid.
	TokensValid(ctx context.Context, configID string) (bool, error)

	// SetAuthenticatedAndFire marks the configuration authenticated and
	// fires the global authenticated event.
	SetAuthenticatedAndFire(ctx context.Context, configID string) error

	// AccessToken returns the stored access token, or "" when none.
	AccessToken(ctx context.Context, configID string) (string, error)

	// IDToken returns the stored raw id_token, or "" when none.
	IDToken(ctx context.Context, configID string) (string, error)
}

// UserService exposes stored user profile data for a configuration.
type UserService interface {
	// PublishUserDataIfExists fires the user-data event when profile data
	// is already stored for configID.
	PublishUserDataIfExists(ctx context.Context, configID string) error

	// UserData returns the stored profile data, or nil when none.
	UserData(ctx context.Context, configID string) (interface{}, error)
}

// CheckSessionService starts session-check polling.  "Already running" is
// state owned by the implementation, keyed by configID; Start must be
// idempotent.
type CheckSessionService interface {
	IsConfigured(configID string) bool
	Start(ctx context.Context, configID string)
}

// TokenValidationService runs the shared periodic token-validation loop.
// The loop is process-wide, not per-configuration, and guards its own
// already-running state.
type TokenValidationService interface {
	StartPeriodicValidation()
}

// SilentRenewService starts or reuses the silent-renew worker for a
// configuration.
type SilentRenewService interface {
	IsConfigured(configID string) bool
	GetOrCreateWorker(configID string)
}

// PopupService detects whether the check is running inside a popup window
// opened by a parent, and relays URLs back to it.  No shared state crosses
// the window boundary; this is pure message passing.
type PopupService interface {
	InPopup() bool
	SendMessageToMainWindow(url string)
}

// RefreshSessionService issues a blocking force-refresh against the identity
// provider, the ground-truth fallback when local storage under-reports
// authentication state.
type RefreshSessionService interface {
	ForceRefreshSession(ctx context.Context, cfg *Config) (*LoginResult, error)
}

// AutoLoginService navigates back to a route saved before login was
// initiated.  Invoked fire-and-forget; it is not part of the check result.
type AutoLoginService interface {
	CheckSavedRedirectRouteAndNavigate(configID string)
}

// StorageReader reads from the persisted key/value store partitioned by
// configuration id.  The orchestrator uses it for exactly one key:
// StateControlKey.
type StorageReader interface {
	Read(ctx context.Context, key string, configID string) (value string, ok bool, err error)
}

// Collaborators is the full set of capabilities the orchestrator composes.
// Every field is required.
type Collaborators struct {
	URL             URLService
	Callback        CallbackHandler
	AuthState       AuthState
	User            UserService
	CheckSession    CheckSessionService
	TokenValidation TokenValidationService
	SilentRenew     SilentRenewService
	Popup           PopupService
	Refresh         RefreshSessionService
	AutoLogin       AutoLoginService
	Storage         StorageReader
}

// Validate reports every missing collaborator, not just the first.
func (c *Collaborators) Validate() error {
	const op = "checkauth.(Collaborators).Validate"
	if c == nil {
		return fmt.Errorf("%s: collaborators are nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	missing := func(name string) {
		result = multierror.Append(result, fmt.Errorf("%s: %s is nil: %w", op, name, ErrNilParameter))
	}
	if c.URL == nil {
		missing("url service")
	}
	if c.Callback == nil {
		missing("callback handler")
	}
	if c.AuthState == nil {
		missing("auth state")
	}
	if c.User == nil {
		missing("user service")
	}
	if c.CheckSession == nil {
		missing("check-session service")
	}
	if c.TokenValidation == nil {
		missing("token-validation service")
	}
	if c.SilentRenew == nil {
		missing("silent-renew service")
	}
	if c.Popup == nil {
		missing("popup service")
	}
	if c.Refresh == nil {
		missing("refresh-session service")
	}
	if c.AutoLogin == nil {
		missing("auto-login service")
	}
	if c.Storage == nil {
		missing("storage reader")
	}
	return result.ErrorOrNil()
}
