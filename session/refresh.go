// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// session provides the monitoring collaborators the orchestrator starts once
// a check reports authenticated: per-configuration session-check polling,
// the shared periodic token-validation loop, silent-renew workers, and the
// force-refresh service used as the server-side ground truth.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/hashicorp/cap-checkauth/authstate"
	"github.com/hashicorp/cap-checkauth/checkauth"
	sdkHttp "github.com/hashicorp/cap-checkauth/sdk/http"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrNoRefreshToken reports that a forced refresh was requested for a
	// configuration with no stored refresh token.
	ErrNoRefreshToken = errors.New("no refresh token stored")
)

// RefreshService refreshes a configuration's session against the identity
// provider with the refresh_token grant.  It implements
// checkauth.RefreshSessionService.
//
// Concurrent refreshes for the same configuration are collapsed into one
// provider round-trip: a silent-renew worker, the periodic validator and a
// CheckAuthIncludingServer call may all ask at once, and the provider only
// needs to be asked once.
type RefreshService struct {
	store  *authstate.Store
	user   *authstate.UserService
	events *authstate.Events
	logger hclog.Logger

	group singleflight.Group

	mu        sync.Mutex
	providers map[string]*oidc.Provider
}

// NewRefreshService creates a refresh service.
// Supported options: WithLogger
func NewRefreshService(store *authstate.Store, user *authstate.UserService, events *authstate.Events, opt ...Option) (*RefreshService, error) {
	const op = "session.NewRefreshService"
	if store == nil {
		return nil, fmt.Errorf("%s: auth store is nil: %w", op, ErrNilParameter)
	}
	if user == nil {
		return nil, fmt.Errorf("%s: user service is nil: %w", op, ErrNilParameter)
	}
	if events == nil {
		return nil, fmt.Errorf("%s: event service is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &RefreshService{
		store:     store,
		user:      user,
		events:    events,
		logger:    opts.withLogger,
		providers: map[string]*oidc.Provider{},
	}, nil
}

// ForceRefreshSession performs a blocking refresh against the identity
// provider and returns the resulting login state.  In-flight refreshes for
// the same configuration are deduplicated.
func (r *RefreshService) ForceRefreshSession(ctx context.Context, cfg *checkauth.Config) (*checkauth.LoginResult, error) {
	const op = "session.(RefreshService).ForceRefreshSession"
	if cfg == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	v, err, shared := r.group.Do(cfg.ConfigID, func() (interface{}, error) {
		return r.refresh(ctx, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if shared {
		r.logger.Debug("joined in-flight refresh", "configId", cfg.ConfigID)
	}
	return v.(*checkauth.LoginResult), nil
}

func (r *RefreshService) refresh(ctx context.Context, cfg *checkauth.Config) (*checkauth.LoginResult, error) {
	const op = "session.(RefreshService).refresh"
	refreshToken, err := r.store.RefreshToken(ctx, cfg.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
	}

	provider, client, err := r.provider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	oidcCtx := sdkHttp.OidcClientContext(ctx, client)

	oauth2Config := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       append([]string{oidc.ScopeOpenID}, cfg.Scopes...),
	}
	token, err := oauth2Config.TokenSource(oidcCtx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to refresh tokens with provider: %w", op, err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken != "" {
		// refresh responses carry no nonce, so only signature, issuer
		// and audience are verified here
		verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
		idToken, err := verifier.Verify(oidcCtx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("%s: refreshed id_token failed verification: %w", op, err)
		}
		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("%s: unable to read refreshed id_token claims: %w", op, err)
		}
		if err := r.user.StoreUserData(ctx, cfg.ConfigID, claims); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := r.store.StoreTokens(ctx, cfg.ConfigID, &authstate.TokenSet{
		AccessToken:  token.AccessToken,
		IDToken:      rawIDToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.logger.Debug("session refreshed", "configId", cfg.ConfigID)
	r.events.Fire(authstate.Event{
		Type:     authstate.EventNewAuthenticationResult,
		ConfigID: cfg.ConfigID,
		Payload:  true,
	})

	userData, err := r.user.UserData(ctx, cfg.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idToken, err := r.store.IDToken(ctx, cfg.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &checkauth.LoginResult{
		IsAuthenticated: true,
		UserData:        userData,
		AccessToken:     token.AccessToken,
		IDToken:         idToken,
		ConfigID:        cfg.ConfigID,
	}, nil
}

func (r *RefreshService) provider(ctx context.Context, cfg *checkauth.Config) (*oidc.Provider, *http.Client, error) {
	const op = "session.(RefreshService).provider"
	client, err := sdkHttp.NewClient(cfg.ProviderCA)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	r.mu.Lock()
	p, ok := r.providers[cfg.Authority]
	r.mu.Unlock()
	if ok {
		return p, client, nil
	}
	p, err = oidc.NewProvider(sdkHttp.OidcClientContext(ctx, client), cfg.Authority)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to discover provider: %w", op, err)
	}
	r.mu.Lock()
	r.providers[cfg.Authority] = p
	r.mu.Unlock()
	return p, client, nil
}
