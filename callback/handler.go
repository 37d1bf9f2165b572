// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// callback classifies page URLs as OIDC authorization callbacks and runs the
// callback protocol: authorization-code exchange, id_token verification,
// token and user-data persistence, event firing.  It implements the
// checkauth.CallbackHandler contract.
package callback

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/hashicorp/cap-checkauth/authstate"
	"github.com/hashicorp/cap-checkauth/checkauth"
	sdkHttp "github.com/hashicorp/cap-checkauth/sdk/http"
	"github.com/hashicorp/cap-checkauth/sdk/id"
	"github.com/hashicorp/cap-checkauth/storage"
)

// KeyNonce is the storage key the login flow keeps its one-time nonce under,
// next to the checkauth.StateControlKey anti-forgery state.
const KeyNonce = "authNonce"

// Handler processes authorization callbacks for any configuration.  It is
// safe for concurrent use; provider discovery results are cached per
// authority.
type Handler struct {
	store     storage.Storage
	authStore *authstate.Store
	user      *authstate.UserService
	events    *authstate.Events
	logger    hclog.Logger

	mu        sync.Mutex
	providers map[string]*oidc.Provider
}

// NewHandler creates a callback handler.
// Supported options: WithLogger
func NewHandler(store storage.Storage, authStore *authstate.Store, user *authstate.UserService, events *authstate.Events, opt ...Option) (*Handler, error) {
	const op = "callback.NewHandler"
	if store == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	if authStore == nil {
		return nil, fmt.Errorf("%s: auth store is nil: %w", op, ErrNilParameter)
	}
	if user == nil {
		return nil, fmt.Errorf("%s: user service is nil: %w", op, ErrNilParameter)
	}
	if events == nil {
		return nil, fmt.Errorf("%s: event service is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Handler{
		store:     store,
		authStore: authStore,
		user:      user,
		events:    events,
		logger:    opts.withLogger,
		providers: map[string]*oidc.Provider{},
	}, nil
}

// IsCallback classifies currentURL as an authorization callback for cfg: the
// URL's path matches the configured redirect URL and the response carries
// either a code and state or a provider error.
func (h *Handler) IsCallback(currentURL string, cfg *checkauth.Config) bool {
	if cfg == nil {
		return false
	}
	u, err := url.Parse(currentURL)
	if err != nil {
		return false
	}
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return false
	}
	if u.Path != redirect.Path {
		return false
	}
	params := parseCallbackParams(currentURL)
	if params.authError != "" {
		return true
	}
	return params.code != "" && params.state != ""
}

// HandleCallback runs the callback protocol to completion: it validates the
// response state against the stored anti-forgery state, exchanges the
// authorization code, verifies the id_token and its nonce, persists tokens
// and claims, consumes the one-time state, and fires the authenticated
// event.
func (h *Handler) HandleCallback(ctx context.Context, currentURL string, cfg *checkauth.Config) error {
	const op = "callback.(Handler).HandleCallback"
	if cfg == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	params := parseCallbackParams(currentURL)

	storedState, ok, err := h.store.Read(ctx, checkauth.StateControlKey, cfg.ConfigID)
	if err != nil {
		return fmt.Errorf("%s: unable to read stored state: %w", op, err)
	}
	if !ok {
		// could have been consumed already or never written; no way to
		// know for sure
		return fmt.Errorf("%s: no stored state for config: %w", op, ErrNotFound)
	}
	if params.state != storedState {
		return fmt.Errorf("%s: response state and stored state are not equal: %w", op, ErrResponseStateInvalid)
	}

	if params.authError != "" {
		h.logger.Error("provider returned an error response", "configId", cfg.ConfigID, "error", params.authError, "description", params.errorDescription)
		return fmt.Errorf("%s: %s (%s): %w", op, params.authError, params.errorDescription, ErrProviderError)
	}

	nonce, _, err := h.store.Read(ctx, KeyNonce, cfg.ConfigID)
	if err != nil {
		return fmt.Errorf("%s: unable to read stored nonce: %w", op, err)
	}

	provider, client, err := h.provider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	oidcCtx := sdkHttp.OidcClientContext(ctx, client)

	oauth2Config := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       append([]string{oidc.ScopeOpenID}, cfg.Scopes...),
	}
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, params.code)
	if err != nil {
		return fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIDToken)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	idToken, err := verifier.Verify(oidcCtx, rawIDToken)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrIDTokenVerificationFailed, err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return fmt.Errorf("%s: id_token nonce and stored nonce are not equal: %w", op, ErrInvalidNonce)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return fmt.Errorf("%s: unable to read id_token claims: %w", op, err)
	}

	expiry := oauth2Token.Expiry
	if expiry.IsZero() {
		expiry = idToken.Expiry
	}
	if err := h.authStore.StoreTokens(ctx, cfg.ConfigID, &authstate.TokenSet{
		AccessToken:  oauth2Token.AccessToken,
		IDToken:      rawIDToken,
		RefreshToken: oauth2Token.RefreshToken,
		ExpiresAt:    expiry,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := h.user.StoreUserData(ctx, cfg.ConfigID, claims); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// the anti-forgery state and nonce are one-time values
	if err := h.store.Remove(ctx, checkauth.StateControlKey, cfg.ConfigID); err != nil {
		return fmt.Errorf("%s: unable to consume stored state: %w", op, err)
	}
	if err := h.store.Remove(ctx, KeyNonce, cfg.ConfigID); err != nil {
		return fmt.Errorf("%s: unable to consume stored nonce: %w", op, err)
	}

	h.logger.Debug("callback processed", "configId", cfg.ConfigID)
	h.events.Fire(authstate.Event{
		Type:     authstate.EventNewAuthenticationResult,
		ConfigID: cfg.ConfigID,
		Payload:  true,
	})
	return nil
}

// AuthURL begins a login: it generates and stores the anti-forgery state and
// nonce for the configuration and returns the provider authorization URL to
// navigate to.  The stored state is what a later check's correlation
// resolution compares the return URL against.
func (h *Handler) AuthURL(ctx context.Context, cfg *checkauth.Config) (string, error) {
	const op = "callback.(Handler).AuthURL"
	if cfg == nil {
		return "", fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	state, err := id.New("st")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	nonce, err := id.New("n")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate nonce: %w", op, err)
	}
	if err := h.store.Write(ctx, checkauth.StateControlKey, cfg.ConfigID, state); err != nil {
		return "", fmt.Errorf("%s: unable to store state: %w", op, err)
	}
	if err := h.store.Write(ctx, KeyNonce, cfg.ConfigID, nonce); err != nil {
		return "", fmt.Errorf("%s: unable to store nonce: %w", op, err)
	}

	provider, _, err := h.provider(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	oauth2Config := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       append([]string{oidc.ScopeOpenID}, cfg.Scopes...),
	}
	return oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce)), nil
}

// provider returns the discovered oidc provider for cfg's authority along
// with the http client requests should use, caching discovery per authority.
func (h *Handler) provider(ctx context.Context, cfg *checkauth.Config) (*oidc.Provider, *http.Client, error) {
	const op = "callback.(Handler).provider"
	client, err := sdkHttp.NewClient(cfg.ProviderCA)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	h.mu.Lock()
	p, ok := h.providers[cfg.Authority]
	h.mu.Unlock()
	if ok {
		return p, client, nil
	}
	p, err = oidc.NewProvider(sdkHttp.OidcClientContext(ctx, client), cfg.Authority)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to discover provider: %w", op, err)
	}
	h.mu.Lock()
	h.providers[cfg.Authority] = p
	h.mu.Unlock()
	return p, client, nil
}
