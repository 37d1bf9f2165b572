// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package capcheckauth_test

import (
	"context"
	"fmt"

	"github.com/hashicorp/cap-checkauth/authstate"
	"github.com/hashicorp/cap-checkauth/autologin"
	"github.com/hashicorp/cap-checkauth/callback"
	"github.com/hashicorp/cap-checkauth/checkauth"
	"github.com/hashicorp/cap-checkauth/popup"
	"github.com/hashicorp/cap-checkauth/session"
	"github.com/hashicorp/cap-checkauth/storage"
)

func Example_checkAuth() {
	ctx := context.Background()

	cfg := &checkauth.Config{
		ConfigID:    "example",
		Authority:   "https://your-issuer.com/",
		ClientID:    "your_client_id",
		RedirectURL: "https://your-app.com/callback",
	}
	if err := cfg.Validate(); err != nil {
		// handle error
	}

	// Wire the collaborators over one storage backend
	backend := storage.NewMemory()
	events := authstate.NewEvents()
	store, err := authstate.NewStore(backend, events)
	if err != nil {
		// handle error
	}
	user, err := authstate.NewUserService(backend, events)
	if err != nil {
		// handle error
	}
	handler, err := callback.NewHandler(backend, store, user, events)
	if err != nil {
		// handle error
	}
	refresh, err := session.NewRefreshService(store, user, events)
	if err != nil {
		// handle error
	}
	validator, err := session.NewPeriodicValidator([]*checkauth.Config{cfg}, store, refresh, events)
	if err != nil {
		// handle error
	}
	probe := session.SessionProbeFunc(func(context.Context, *checkauth.Config) (bool, error) {
		return false, nil
	})
	checkSession, err := session.NewCheckSession([]*checkauth.Config{cfg}, probe, events)
	if err != nil {
		// handle error
	}
	silentRenew, err := session.NewSilentRenew([]*checkauth.Config{cfg}, store, refresh, events)
	if err != nil {
		// handle error
	}
	autoLogin, err := autologin.New(backend, func(route string) {
		// navigate the host application to route
	})
	if err != nil {
		// handle error
	}

	o, err := checkauth.New(&checkauth.Collaborators{
		URL:             callback.NewURLReader(func() string { return "https://your-app.com/home" }),
		Callback:        handler,
		AuthState:       store,
		User:            user,
		CheckSession:    checkSession,
		TokenValidation: validator,
		SilentRenew:     silentRenew,
		Popup:           popup.NewRelay(),
		Refresh:         refresh,
		AutoLogin:       autoLogin,
		Storage:         backend,
	})
	if err != nil {
		// handle error
	}

	// Nothing is stored yet, so the check reports not authenticated
	result, err := o.CheckAuth(ctx, cfg)
	if err != nil {
		// handle error
	}
	fmt.Println("authenticated:", result.IsAuthenticated)

	// Output:
	// authenticated: false
}
