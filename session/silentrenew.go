// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/cap-checkauth/authstate"
	"github.com/hashicorp/cap-checkauth/checkauth"
)

// DefaultRenewCheckInterval is how often a silent-renew worker re-checks the
// stored token expiry when no interval override is given.
const DefaultRenewCheckInterval = 5 * time.Second

// SilentRenew owns one background renew worker per configuration with
// silent renew enabled.  It implements checkauth.SilentRenewService:
// GetOrCreateWorker reuses a running worker, so invoking it on every
// successful check is safe.
type SilentRenew struct {
	cfgs    map[string]*checkauth.Config
	store   *authstate.Store
	refresh *RefreshService
	events  *authstate.Events
	logger  hclog.Logger

	interval time.Duration

	mu      sync.Mutex
	workers map[string]context.CancelFunc
}

// NewSilentRenew creates the worker set for the given configurations.
// Supported options: WithLogger, WithInterval
func NewSilentRenew(cfgs []*checkauth.Config, store *authstate.Store, refresh *RefreshService, events *authstate.Events, opt ...Option) (*SilentRenew, error) {
	const op = "session.NewSilentRenew"
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%s: no configurations provided: %w", op, ErrInvalidParameter)
	}
	if store == nil {
		return nil, fmt.Errorf("%s: auth store is nil: %w", op, ErrNilParameter)
	}
	if refresh == nil {
		return nil, fmt.Errorf("%s: refresh service is nil: %w", op, ErrNilParameter)
	}
	if events == nil {
		return nil, fmt.Errorf("%s: event service is nil: %w", op, ErrNilParameter)
	}
	var invalid *multierror.Error
	byID := make(map[string]*checkauth.Config, len(cfgs))
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			invalid = multierror.Append(invalid, fmt.Errorf("%s: %w", op, err))
			continue
		}
		byID[cfg.ConfigID] = cfg
	}
	if err := invalid.ErrorOrNil(); err != nil {
		return nil, err
	}
	opts := getOpts(opt...)
	interval := opts.withInterval
	if interval == 0 {
		interval = DefaultRenewCheckInterval
	}
	return &SilentRenew{
		cfgs:     byID,
		store:    store,
		refresh:  refresh,
		events:   events,
		logger:   opts.withLogger,
		interval: interval,
		workers:  map[string]context.CancelFunc{},
	}, nil
}

// IsConfigured reports whether silent renew is enabled for the
// configuration.
func (s *SilentRenew) IsConfigured(configID string) bool {
	cfg, ok := s.cfgs[configID]
	return ok && cfg.SilentRenew
}

// GetOrCreateWorker starts the renew worker for the configuration, reusing
// the running one when it already exists.
func (s *SilentRenew) GetOrCreateWorker(configID string) {
	cfg, ok := s.cfgs[configID]
	if !ok {
		s.logger.Error("silent renew requested for unknown config", "configId", configID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workers[configID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.workers[configID] = cancel
	s.logger.Debug("starting silent renew worker", "configId", configID, "interval", s.interval)
	go s.run(ctx, cfg)
}

// Stop stops the worker for the configuration, if one runs.
func (s *SilentRenew) Stop(configID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.workers[configID]; ok {
		cancel()
		delete(s.workers, configID)
	}
}

// StopAll stops every running worker.
func (s *SilentRenew) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for configID, cancel := range s.workers {
		cancel()
		delete(s.workers, configID)
	}
}

func (s *SilentRenew) run(ctx context.Context, cfg *checkauth.Config) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.renewIfNeeded(ctx, cfg)
		}
	}
}

func (s *SilentRenew) renewIfNeeded(ctx context.Context, cfg *checkauth.Config) {
	expiresAt, ok, err := s.store.ExpiresAt(ctx, cfg.ConfigID)
	if err != nil {
		s.logger.Error("reading token expiry failed", "configId", cfg.ConfigID, "error", err)
		return
	}
	if !ok {
		// nothing stored yet; nothing to renew
		return
	}
	if time.Until(expiresAt) > cfg.RenewTimeBeforeTokenExpires {
		return
	}
	s.events.Fire(authstate.Event{
		Type:     authstate.EventSilentRenewStarted,
		ConfigID: cfg.ConfigID,
	})
	if _, err := s.refresh.ForceRefreshSession(ctx, cfg); err != nil {
		s.logger.Error("silent renew failed", "configId", cfg.ConfigID, "error", err)
	}
}
