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

// DefaultValidationInterval is how often the shared loop re-checks token
// validity when no interval override is given.
const DefaultValidationInterval = 10 * time.Second

// PeriodicValidator is the single process-wide token-validation loop, shared
// across all configurations.  It implements
// checkauth.TokenValidationService: StartPeriodicValidation is invoked on
// every successful check and guards its own already-running state.
//
// On each tick, every configuration with invalid tokens either gets a silent
// refresh (when configured for one) or a token-expired event.
type PeriodicValidator struct {
	cfgs    []*checkauth.Config
	store   *authstate.Store
	refresh *RefreshService
	events  *authstate.Events
	logger  hclog.Logger

	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewPeriodicValidator creates the shared loop for the given
// configurations.  Every configuration is validated; an invalid one is
// reported, not skipped.
// Supported options: WithLogger, WithInterval
func NewPeriodicValidator(cfgs []*checkauth.Config, store *authstate.Store, refresh *RefreshService, events *authstate.Events, opt ...Option) (*PeriodicValidator, error) {
	const op = "session.NewPeriodicValidator"
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
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			invalid = multierror.Append(invalid, fmt.Errorf("%s: %w", op, err))
		}
	}
	if err := invalid.ErrorOrNil(); err != nil {
		return nil, err
	}
	opts := getOpts(opt...)
	interval := opts.withInterval
	if interval == 0 {
		interval = DefaultValidationInterval
	}
	return &PeriodicValidator{
		cfgs:     cfgs,
		store:    store,
		refresh:  refresh,
		events:   events,
		logger:   opts.withLogger,
		interval: interval,
	}, nil
}

// StartPeriodicValidation starts the shared loop.  Invoking it while the
// loop runs is a no-op.
func (v *PeriodicValidator) StartPeriodicValidation() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.running = true
	v.logger.Debug("starting periodic token validation", "interval", v.interval)
	go v.loop(ctx)
}

// Stop stops the loop.  It may be restarted afterwards.
func (v *PeriodicValidator) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.running {
		return
	}
	v.cancel()
	v.cancel = nil
	v.running = false
}

func (v *PeriodicValidator) loop(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, cfg := range v.cfgs {
				v.validate(ctx, cfg)
			}
		}
	}
}

func (v *PeriodicValidator) validate(ctx context.Context, cfg *checkauth.Config) {
	valid, err := v.store.TokensValid(ctx, cfg.ConfigID)
	if err != nil {
		v.logger.Error("token validation failed", "configId", cfg.ConfigID, "error", err)
		return
	}
	if valid {
		return
	}
	if cfg.SilentRenew {
		if _, err := v.refresh.ForceRefreshSession(ctx, cfg); err != nil {
			v.logger.Error("periodic refresh failed", "configId", cfg.ConfigID, "error", err)
		}
		return
	}
	v.logger.Debug("token expired", "configId", cfg.ConfigID)
	v.events.Fire(authstate.Event{
		Type:     authstate.EventTokenExpired,
		ConfigID: cfg.ConfigID,
	})
}
