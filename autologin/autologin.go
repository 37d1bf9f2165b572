// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// autologin persists the route a user was on when login was initiated and
// navigates back to it once a check reports authenticated.  It implements
// checkauth.AutoLoginService.
package autologin

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/cap-checkauth/storage"
)

// KeyRedirect is the storage key the saved route is kept under.
const KeyRedirect = "redirect"

var ErrNilParameter = errors.New("nil parameter")

// Service saves and consumes post-login redirect routes per configuration.
type Service struct {
	storage  storage.Storage
	navigate func(route string)
	logger   hclog.Logger
}

// New creates the service.  navigate is invoked with the saved route when
// one exists; it is the caller's routing hook.
// Supported options: WithLogger
func New(s storage.Storage, navigate func(route string), opt ...Option) (*Service, error) {
	const op = "autologin.New"
	if s == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	if navigate == nil {
		return nil, fmt.Errorf("%s: navigate func is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Service{
		storage:  s,
		navigate: navigate,
		logger:   opts.withLogger,
	}, nil
}

// SaveRedirectRoute persists the route to return to after login completes.
func (s *Service) SaveRedirectRoute(ctx context.Context, configID string, route string) error {
	const op = "autologin.(Service).SaveRedirectRoute"
	if err := s.storage.Write(ctx, KeyRedirect, configID, route); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckSavedRedirectRouteAndNavigate consumes the saved route for the
// configuration and navigates to it.  It is invoked fire-and-forget by the
// orchestrator: failures are logged, never returned.
func (s *Service) CheckSavedRedirectRouteAndNavigate(configID string) {
	ctx := context.Background()
	route, ok, err := s.storage.Read(ctx, KeyRedirect, configID)
	if err != nil {
		s.logger.Error("reading saved redirect route failed", "configId", configID, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := s.storage.Remove(ctx, KeyRedirect, configID); err != nil {
		s.logger.Error("removing saved redirect route failed", "configId", configID, "error", err)
		return
	}
	s.logger.Debug("navigating to saved route", "configId", configID, "route", route)
	s.navigate(route)
}
