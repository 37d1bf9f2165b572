// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Orchestrator composes the collaborator capabilities into a single
// consistent authentication-status outcome per configuration.  It keeps no
// per-check state of its own: calls may overlap freely, and at-most-one
// concurrent check per configuration is a caller discipline, not something
// the orchestrator enforces.
type Orchestrator struct {
	collabs Collaborators
	logger  hclog.Logger
}

// New creates an Orchestrator from the given collaborators.
// Supported options: WithLogger
func New(c *Collaborators, opt ...Option) (*Orchestrator, error) {
	const op = "checkauth.New"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid collaborators: %w", op, err)
	}
	opts := getOrchestratorOpts(opt...)
	return &Orchestrator{
		collabs: *c,
		logger:  opts.withLogger,
	}, nil
}

// CheckAuth is the single-configuration entry point.  When the current URL
// carries a state parameter it first verifies the state correlates to cfg's
// stored anti-forgery state, failing with ErrConfigMismatch otherwise, then
// runs the per-configuration check.
// Supported options: WithURL
func (o *Orchestrator) CheckAuth(ctx context.Context, cfg *Config, opt ...Option) (*LoginResult, error) {
	const op = "checkauth.(Orchestrator).CheckAuth"
	currentURL := o.resolveURL(opt...)
	if state := o.collabs.URL.StateParam(currentURL); state != "" {
		owner := o.findOwningConfig(ctx, []*Config{cfg}, state)
		if owner == nil {
			o.logError(cfg, fmt.Sprintf("could not find config matching state %q", state))
			return nil, fmt.Errorf("%s: state %q: %w", op, state, ErrConfigMismatch)
		}
		cfg = owner
	}
	return o.checkAuthWithConfig(ctx, cfg, currentURL), nil
}

// CheckAuthMultiple is the multi-configuration entry point.  The returned
// slice preserves the input configuration order.  When the URL carries a
// state parameter, exactly the owning configuration is checked against the
// current URL and every other configuration against its own RedirectURL;
// without one, all configurations are checked against the same URL.  All
// branches run concurrently and the call completes only once all complete;
// per-branch failures surface as error-valued LoginResults, never as a
// call-level error.
// Supported options: WithURL
func (o *Orchestrator) CheckAuthMultiple(ctx context.Context, cfgs []*Config, opt ...Option) ([]*LoginResult, error) {
	const op = "checkauth.(Orchestrator).CheckAuthMultiple"
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%s: no configurations provided: %w", op, ErrInvalidParameter)
	}
	currentURL := o.resolveURL(opt...)

	var owner *Config
	if state := o.collabs.URL.StateParam(currentURL); state != "" {
		owner = o.findOwningConfig(ctx, cfgs, state)
		if owner == nil {
			o.logError(nil, fmt.Sprintf("could not find config matching state %q", state))
			return nil, fmt.Errorf("%s: state %q: %w", op, state, ErrConfigMismatch)
		}
	}

	results := make([]*LoginResult, len(cfgs))
	var wg sync.WaitGroup
	for i, cfg := range cfgs {
		checkURL := currentURL
		// Only the owning configuration is completing a callback; the
		// others re-evaluate their own stored session state against
		// their own redirect URL.
		if owner != nil && cfg != nil && cfg.ConfigID != owner.ConfigID {
			checkURL = cfg.RedirectURL
		}
		wg.Add(1)
		go func(i int, cfg *Config, checkURL string) {
			defer wg.Done()
			results[i] = o.checkAuthWithConfig(ctx, cfg, checkURL)
		}(i, cfg, checkURL)
	}
	wg.Wait()
	return results, nil
}

// CheckAuthIncludingServer runs the single-configuration check and, when the
// result reports not-authenticated, issues a blocking force-refresh against
// the identity provider as a second authoritative check.  Local storage may
// under-report authentication state (for example after a silent renew in
// another tab); the server round-trip is the ground truth fallback.  When
// the forced refresh authenticates, session monitoring is started.
// Supported options: WithURL
func (o *Orchestrator) CheckAuthIncludingServer(ctx context.Context, cfg *Config, opt ...Option) (*LoginResult, error) {
	const op = "checkauth.(Orchestrator).CheckAuthIncludingServer"
	result, err := o.CheckAuth(ctx, cfg, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if result.IsAuthenticated || result.IsEmpty() {
		return result, nil
	}
	if cfg == nil {
		// the check already absorbed the missing configuration into an
		// error result; there is nothing to refresh against
		return result, nil
	}

	forced, err := o.collabs.Refresh.ForceRefreshSession(ctx, cfg)
	if err != nil {
		return o.errorResult(cfg, fmt.Errorf("force refresh session failed: %w", err)), nil
	}
	if forced.IsAuthenticated {
		o.startMonitoring(ctx, cfg)
	}
	return forced, nil
}

// checkAuthWithConfig is the per-configuration check routine.  It never
// raises past its own boundary: every failure is logged with the
// configuration id and converted into an error-valued LoginResult.
func (o *Orchestrator) checkAuthWithConfig(ctx context.Context, cfg *Config, currentURL string) *LoginResult {
	if cfg == nil {
		o.logger.Error("no configuration provided for the auth check")
		return &LoginResult{
			IsAuthenticated: false,
			ErrorMessage:    ErrMissingConfiguration.Error(),
		}
	}
	if currentURL == "" {
		currentURL = o.collabs.URL.CurrentURL()
	}

	// A popup's only job is to relay the URL back to the window that
	// opened it; the parent evaluates authentication.
	if o.collabs.Popup.InPopup() {
		o.logDebug(cfg, "currently in popup, relaying URL to main window")
		o.collabs.Popup.SendMessageToMainWindow(currentURL)
		return &LoginResult{}
	}

	isCallback := o.collabs.Callback.IsCallback(currentURL, cfg)
	o.logDebug(cfg, fmt.Sprintf("checkAuth running, isCallback %v", isCallback))

	if isCallback {
		if err := o.collabs.Callback.HandleCallback(ctx, currentURL, cfg); err != nil {
			return o.errorResult(cfg, fmt.Errorf("%w: %v", ErrCallbackFailed, err))
		}
	}

	// Callback processing, when any, has completed; storage now reflects
	// the outcome.
	authenticated, err := o.collabs.AuthState.TokensValid(ctx, cfg.ConfigID)
	if err != nil {
		return o.errorResult(cfg, err)
	}

	if authenticated {
		o.startMonitoring(ctx, cfg)
		if !isCallback {
			// Became-authenticated events for the callback path were
			// already fired by the handler; firing them again here
			// would double-notify subscribers.
			if err := o.collabs.AuthState.SetAuthenticatedAndFire(ctx, cfg.ConfigID); err != nil {
				return o.errorResult(cfg, err)
			}
			if err := o.collabs.User.PublishUserDataIfExists(ctx, cfg.ConfigID); err != nil {
				return o.errorResult(cfg, err)
			}
		}
		o.collabs.AutoLogin.CheckSavedRedirectRouteAndNavigate(cfg.ConfigID)
	}

	return o.composeResult(ctx, cfg, authenticated)
}

// startMonitoring starts the per-configuration monitors and (re)starts the
// shared periodic validation loop.  Idempotence of the per-configuration
// monitors is the collaborators' responsibility.
func (o *Orchestrator) startMonitoring(ctx context.Context, cfg *Config) {
	if o.collabs.CheckSession.IsConfigured(cfg.ConfigID) {
		o.collabs.CheckSession.Start(ctx, cfg.ConfigID)
	}
	o.collabs.TokenValidation.StartPeriodicValidation()
	if o.collabs.SilentRenew.IsConfigured(cfg.ConfigID) {
		o.collabs.SilentRenew.GetOrCreateWorker(cfg.ConfigID)
	}
}

// composeResult assembles the LoginResult from current auth-state and
// user-service reads.
func (o *Orchestrator) composeResult(ctx context.Context, cfg *Config, authenticated bool) *LoginResult {
	accessToken, err := o.collabs.AuthState.AccessToken(ctx, cfg.ConfigID)
	if err != nil {
		return o.errorResult(cfg, err)
	}
	idToken, err := o.collabs.AuthState.IDToken(ctx, cfg.ConfigID)
	if err != nil {
		return o.errorResult(cfg, err)
	}
	userData, err := o.collabs.User.UserData(ctx, cfg.ConfigID)
	if err != nil {
		return o.errorResult(cfg, err)
	}
	return &LoginResult{
		IsAuthenticated: authenticated,
		UserData:        userData,
		AccessToken:     accessToken,
		IDToken:         idToken,
		ConfigID:        cfg.ConfigID,
	}
}

func (o *Orchestrator) resolveURL(opt ...Option) string {
	opts := getCheckOpts(opt...)
	if opts.withURL != "" {
		return opts.withURL
	}
	return o.collabs.URL.CurrentURL()
}

func (o *Orchestrator) errorResult(cfg *Config, err error) *LoginResult {
	o.logError(cfg, err.Error())
	result := &LoginResult{
		IsAuthenticated: false,
		ErrorMessage:    err.Error(),
	}
	if cfg != nil {
		result.ConfigID = cfg.ConfigID
	}
	return result
}

func (o *Orchestrator) logDebug(cfg *Config, msg string) {
	o.logger.Debug(msg, "configId", cfg.ConfigID)
}

func (o *Orchestrator) logError(cfg *Config, msg string) {
	if cfg == nil {
		o.logger.Error(msg)
		return
	}
	o.logger.Error(msg, "configId", cfg.ConfigID)
}
