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

// DefaultCheckSessionInterval is how often a session-check poller probes the
// provider when no interval override is given.
const DefaultCheckSessionInterval = 3 * time.Second

// SessionProbe asks the identity provider whether the session for a
// configuration changed since the last probe.  In a browser this is the
// check-session iframe; elsewhere it is typically a front-channel endpoint
// poll.
type SessionProbe interface {
	SessionChanged(ctx context.Context, cfg *checkauth.Config) (bool, error)
}

// SessionProbeFunc adapts a func to the SessionProbe interface.
type SessionProbeFunc func(ctx context.Context, cfg *checkauth.Config) (bool, error)

func (f SessionProbeFunc) SessionChanged(ctx context.Context, cfg *checkauth.Config) (bool, error) {
	return f(ctx, cfg)
}

// CheckSession runs one session-check poller per configuration that has
// session checks enabled.  It implements checkauth.CheckSessionService:
// Start is idempotent per configuration, with running state owned here and
// keyed by configId.
type CheckSession struct {
	cfgs   map[string]*checkauth.Config
	probe  SessionProbe
	events *authstate.Events
	logger hclog.Logger

	interval time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewCheckSession creates the poller set for the given configurations.
// Supported options: WithLogger, WithInterval
func NewCheckSession(cfgs []*checkauth.Config, probe SessionProbe, events *authstate.Events, opt ...Option) (*CheckSession, error) {
	const op = "session.NewCheckSession"
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%s: no configurations provided: %w", op, ErrInvalidParameter)
	}
	if probe == nil {
		return nil, fmt.Errorf("%s: session probe is nil: %w", op, ErrNilParameter)
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
		interval = DefaultCheckSessionInterval
	}
	return &CheckSession{
		cfgs:     byID,
		probe:    probe,
		events:   events,
		logger:   opts.withLogger,
		interval: interval,
		running:  map[string]context.CancelFunc{},
	}, nil
}

// IsConfigured reports whether session checks are enabled for the
// configuration.
func (c *CheckSession) IsConfigured(configID string) bool {
	cfg, ok := c.cfgs[configID]
	return ok && cfg.StartCheckSession
}

// Start begins polling for the configuration.  Starting an already-running
// poller is a no-op.  The poller's lifetime is independent of ctx; it runs
// until Stop or StopAll.
func (c *CheckSession) Start(_ context.Context, configID string) {
	cfg, ok := c.cfgs[configID]
	if !ok {
		c.logger.Error("session check requested for unknown config", "configId", configID)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.running[configID]; ok {
		return
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.running[configID] = cancel
	c.logger.Debug("starting session check", "configId", configID, "interval", c.interval)
	go c.poll(runCtx, cfg)
}

// Stop stops the poller for the configuration, if one runs.
func (c *CheckSession) Stop(configID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.running[configID]; ok {
		cancel()
		delete(c.running, configID)
	}
}

// StopAll stops every running poller.
func (c *CheckSession) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for configID, cancel := range c.running {
		cancel()
		delete(c.running, configID)
	}
}

func (c *CheckSession) poll(ctx context.Context, cfg *checkauth.Config) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := c.probe.SessionChanged(ctx, cfg)
			if err != nil {
				c.logger.Error("session probe failed", "configId", cfg.ConfigID, "error", err)
				continue
			}
			if !changed {
				continue
			}
			c.logger.Debug("provider session changed", "configId", cfg.ConfigID)
			c.events.Fire(authstate.Event{
				Type:     authstate.EventSessionChanged,
				ConfigID: cfg.ConfigID,
			})
		}
	}
}
