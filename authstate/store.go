// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/cap-checkauth/storage"
)

// Storage keys owned by the store, partitioned per configuration id by the
// backend.
const (
	KeyAccessToken  = "accessToken"
	KeyIDToken      = "idToken"
	KeyRefreshToken = "refreshToken"
	KeyExpiresAt    = "expiresAt"
)

// DefaultExpirySkew is subtracted from a token's expiry when deciding
// validity, so tokens about to lapse are not reported valid.
const DefaultExpirySkew = 30 * time.Second

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
)

// TokenSet is the storable outcome of a callback exchange or a refresh.
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Store keeps per-configuration token state in a storage backend and fires
// authentication events.  It implements checkauth.AuthState.
type Store struct {
	storage storage.Storage
	events  *Events
	logger  hclog.Logger
	skew    time.Duration
	nowFunc func() time.Time
}

// NewStore creates a token state store over the given backend.
// Supported options: WithExpirySkew, WithStoreLogger, WithNow
func NewStore(s storage.Storage, events *Events, opt ...StoreOption) (*Store, error) {
	const op = "authstate.NewStore"
	if s == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	if events == nil {
		return nil, fmt.Errorf("%s: event service is nil: %w", op, ErrNilParameter)
	}
	opts := getStoreOpts(opt...)
	return &Store{
		storage: s,
		events:  events,
		logger:  opts.withLogger,
		skew:    opts.withExpirySkew,
		nowFunc: opts.withNow,
	}, nil
}

func (s *Store) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}

// StoreTokens persists a token set for the configuration.  A refresh that
// returned no new refresh or id token keeps the previously stored one.
func (s *Store) StoreTokens(ctx context.Context, configID string, ts *TokenSet) error {
	const op = "authstate.(Store).StoreTokens"
	if ts == nil {
		return fmt.Errorf("%s: token set is nil: %w", op, ErrNilParameter)
	}
	if ts.AccessToken == "" {
		return fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	if err := s.storage.Write(ctx, KeyAccessToken, configID, ts.AccessToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ts.IDToken != "" {
		if err := s.storage.Write(ctx, KeyIDToken, configID, ts.IDToken); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if ts.RefreshToken != "" {
		if err := s.storage.Write(ctx, KeyRefreshToken, configID, ts.RefreshToken); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	exp := strconv.FormatInt(ts.ExpiresAt.Unix(), 10)
	if err := s.storage.Write(ctx, KeyExpiresAt, configID, exp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TokensValid reports whether a non-empty access token is stored and its
// expiry, less the configured skew, is still in the future.
func (s *Store) TokensValid(ctx context.Context, configID string) (bool, error) {
	const op = "authstate.(Store).TokensValid"
	at, ok, err := s.storage.Read(ctx, KeyAccessToken, configID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || at == "" {
		return false, nil
	}
	expRaw, ok, err := s.storage.Read(ctx, KeyExpiresAt, configID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return false, nil
	}
	expUnix, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%s: stored expiry %q is invalid: %w", op, expRaw, err)
	}
	return s.now().Add(s.skew).Before(time.Unix(expUnix, 0)), nil
}

// ExpiresAt returns the stored token expiry.  ok is false when no expiry is
// stored.
func (s *Store) ExpiresAt(ctx context.Context, configID string) (time.Time, bool, error) {
	const op = "authstate.(Store).ExpiresAt"
	expRaw, ok, err := s.storage.Read(ctx, KeyExpiresAt, configID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	expUnix, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: stored expiry %q is invalid: %w", op, expRaw, err)
	}
	return time.Unix(expUnix, 0), true, nil
}

// AccessToken returns the stored access token, or "" when none.
func (s *Store) AccessToken(ctx context.Context, configID string) (string, error) {
	const op = "authstate.(Store).AccessToken"
	v, _, err := s.storage.Read(ctx, KeyAccessToken, configID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// IDToken returns the stored raw id_token, or "" when none.
func (s *Store) IDToken(ctx context.Context, configID string) (string, error) {
	const op = "authstate.(Store).IDToken"
	v, _, err := s.storage.Read(ctx, KeyIDToken, configID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// RefreshToken returns the stored refresh token, or "" when none.
func (s *Store) RefreshToken(ctx context.Context, configID string) (string, error) {
	const op = "authstate.(Store).RefreshToken"
	v, _, err := s.storage.Read(ctx, KeyRefreshToken, configID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// SetAuthenticatedAndFire fires the global authenticated event for the
// configuration.  The orchestrator calls it on fresh checks that find the
// user already authenticated; the callback handler fires the equivalent
// event itself when a callback completes.
func (s *Store) SetAuthenticatedAndFire(_ context.Context, configID string) error {
	s.logger.Debug("firing authenticated event", "configId", configID)
	s.events.Fire(Event{
		Type:     EventNewAuthenticationResult,
		ConfigID: configID,
		Payload:  true,
	})
	return nil
}

// Clear removes all token state for the configuration.
func (s *Store) Clear(ctx context.Context, configID string) error {
	const op = "authstate.(Store).Clear"
	for _, key := range []string{KeyAccessToken, KeyIDToken, KeyRefreshToken, KeyExpiresAt} {
		if err := s.storage.Remove(ctx, key, configID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
