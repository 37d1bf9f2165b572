// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

import (
	"context"
	"sync"
)

// The Test* collaborators in this file are in-memory fakes that record the
// calls the orchestrator makes.  They are exported so consumers can unit
// test their own wiring without standing up real collaborators.

// TestURLService is a URLService returning canned values.
type TestURLService struct {
	// URL is returned from CurrentURL.
	URL string

	// State is returned from StateParam for any url.
	State string

	mu              sync.Mutex
	stateParamCalls int
}

func (s *TestURLService) CurrentURL() string { return s.URL }

func (s *TestURLService) StateParam(string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateParamCalls++
	return s.State
}

// StateParamCalls returns how often StateParam was invoked.
func (s *TestURLService) StateParamCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateParamCalls
}

// TestCallbackHandler is a CallbackHandler with canned classification and a
// canned processing error.
type TestCallbackHandler struct {
	// Callback is returned from IsCallback for any url.
	Callback bool

	// HandleErr is returned from HandleCallback.
	HandleErr error

	mu         sync.Mutex
	handled    []string
	classified map[string]string
}

func (h *TestCallbackHandler) IsCallback(currentURL string, cfg *Config) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.classified == nil {
		h.classified = map[string]string{}
	}
	h.classified[cfg.ConfigID] = currentURL
	return h.Callback
}

// Classified returns, per configID, the URL IsCallback was invoked with.
func (h *TestCallbackHandler) Classified() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.classified))
	for k, v := range h.classified {
		out[k] = v
	}
	return out
}

func (h *TestCallbackHandler) HandleCallback(_ context.Context, currentURL string, _ *Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, currentURL)
	return h.HandleErr
}

// Handled returns the URLs HandleCallback was invoked with.
func (h *TestCallbackHandler) Handled() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.handled...)
}

// TestAuthState is an AuthState with canned token state.
type TestAuthState struct {
	Valid          bool
	ValidErr       error
	AccessTokenVal string
	IDTokenVal     string

	mu         sync.Mutex
	fired      []string
	validReads []string
}

func (a *TestAuthState) TokensValid(_ context.Context, configID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validReads = append(a.validReads, configID)
	return a.Valid, a.ValidErr
}

func (a *TestAuthState) SetAuthenticatedAndFire(_ context.Context, configID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fired = append(a.fired, configID)
	return nil
}

func (a *TestAuthState) AccessToken(context.Context, string) (string, error) {
	return a.AccessTokenVal, nil
}

func (a *TestAuthState) IDToken(context.Context, string) (string, error) {
	return a.IDTokenVal, nil
}

// Fired returns the configIDs SetAuthenticatedAndFire was invoked with.
func (a *TestAuthState) Fired() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.fired...)
}

// ValidReads returns the configIDs TokensValid was invoked with.
func (a *TestAuthState) ValidReads() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.validReads...)
}

// TestUserService is a UserService with canned user data.
type TestUserService struct {
	Data interface{}

	mu        sync.Mutex
	published []string
}

func (u *TestUserService) PublishUserDataIfExists(_ context.Context, configID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.published = append(u.published, configID)
	return nil
}

func (u *TestUserService) UserData(context.Context, string) (interface{}, error) {
	return u.Data, nil
}

// Published returns the configIDs PublishUserDataIfExists was invoked with.
func (u *TestUserService) Published() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.published...)
}

// TestCheckSession is a CheckSessionService recording starts.
type TestCheckSession struct {
	Configured bool

	mu      sync.Mutex
	started []string
}

func (c *TestCheckSession) IsConfigured(string) bool { return c.Configured }

func (c *TestCheckSession) Start(_ context.Context, configID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, configID)
}

// Started returns the configIDs Start was invoked with.
func (c *TestCheckSession) Started() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.started...)
}

// TestTokenValidation is a TokenValidationService counting starts.
type TestTokenValidation struct {
	mu     sync.Mutex
	starts int
}

func (v *TestTokenValidation) StartPeriodicValidation() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.starts++
}

// Starts returns how often StartPeriodicValidation was invoked.
func (v *TestTokenValidation) Starts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.starts
}

// TestSilentRenew is a SilentRenewService recording worker creation.
type TestSilentRenew struct {
	Configured bool

	mu      sync.Mutex
	workers []string
}

func (s *TestSilentRenew) IsConfigured(string) bool { return s.Configured }

func (s *TestSilentRenew) GetOrCreateWorker(configID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, configID)
}

// Workers returns the configIDs GetOrCreateWorker was invoked with.
func (s *TestSilentRenew) Workers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.workers...)
}

// TestPopup is a PopupService recording relayed URLs.
type TestPopup struct {
	Popup bool

	mu   sync.Mutex
	sent []string
}

func (p *TestPopup) InPopup() bool { return p.Popup }

func (p *TestPopup) SendMessageToMainWindow(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, url)
}

// Sent returns the URLs relayed to the main window.
func (p *TestPopup) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

// TestRefresh is a RefreshSessionService with a canned result.
type TestRefresh struct {
	Result *LoginResult
	Err    error

	mu    sync.Mutex
	calls []string
}

func (r *TestRefresh) ForceRefreshSession(_ context.Context, cfg *Config) (*LoginResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var configID string
	if cfg != nil {
		configID = cfg.ConfigID
	}
	r.calls = append(r.calls, configID)
	return r.Result, r.Err
}

// Calls returns the configIDs ForceRefreshSession was invoked with.
func (r *TestRefresh) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// TestAutoLogin is an AutoLoginService recording navigations.
type TestAutoLogin struct {
	mu        sync.Mutex
	navigated []string
}

func (a *TestAutoLogin) CheckSavedRedirectRouteAndNavigate(configID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.navigated = append(a.navigated, configID)
}

// Navigated returns the configIDs navigation was triggered for.
func (a *TestAutoLogin) Navigated() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.navigated...)
}

// TestStorage is a StorageReader backed by a map of configID to stored
// anti-forgery state.
type TestStorage struct {
	// States maps configID to the value stored under StateControlKey.
	States map[string]string

	// ReadErr, when set, is returned from every Read.
	ReadErr error

	mu    sync.Mutex
	reads []string
}

func (s *TestStorage) Read(_ context.Context, key string, configID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, configID)
	if s.ReadErr != nil {
		return "", false, s.ReadErr
	}
	if key != StateControlKey {
		return "", false, nil
	}
	v, ok := s.States[configID]
	return v, ok, nil
}

// Reads returns the configIDs Read was invoked with.
func (s *TestStorage) Reads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reads...)
}

// TestCollaborators returns a complete set of fake collaborators reporting a
// not-authenticated, not-a-callback, not-in-popup state.  Callers reach into
// the individual fakes to adjust behavior and assert on recorded calls.
func TestCollaborators() (*Collaborators, *TestFakes) {
	f := &TestFakes{
		URL:             &TestURLService{},
		Callback:        &TestCallbackHandler{},
		AuthState:       &TestAuthState{},
		User:            &TestUserService{},
		CheckSession:    &TestCheckSession{},
		TokenValidation: &TestTokenValidation{},
		SilentRenew:     &TestSilentRenew{},
		Popup:           &TestPopup{},
		Refresh:         &TestRefresh{},
		AutoLogin:       &TestAutoLogin{},
		Storage:         &TestStorage{States: map[string]string{}},
	}
	return &Collaborators{
		URL:             f.URL,
		Callback:        f.Callback,
		AuthState:       f.AuthState,
		User:            f.User,
		CheckSession:    f.CheckSession,
		TokenValidation: f.TokenValidation,
		SilentRenew:     f.SilentRenew,
		Popup:           f.Popup,
		Refresh:         f.Refresh,
		AutoLogin:       f.AutoLogin,
		Storage:         f.Storage,
	}, f
}

// TestFakes holds the concrete fakes behind a TestCollaborators set.
type TestFakes struct {
	URL             *TestURLService
	Callback        *TestCallbackHandler
	AuthState       *TestAuthState
	User            *TestUserService
	CheckSession    *TestCheckSession
	TokenValidation *TestTokenValidation
	SilentRenew     *TestSilentRenew
	Popup           *TestPopup
	Refresh         *TestRefresh
	AutoLogin       *TestAutoLogin
	Storage         *TestStorage
}
