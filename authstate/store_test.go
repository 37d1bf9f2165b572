// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-checkauth/storage"
)

func testStore(t *testing.T, opt ...StoreOption) (*Store, *Events) {
	t.Helper()
	events := NewEvents()
	s, err := NewStore(storage.NewMemory(), events, opt...)
	require.NoError(t, err)
	return s, events
}

func TestNewStore(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	_, err := NewStore(nil, NewEvents())
	assert.Truef(errors.Is(err, ErrNilParameter), "wanted \"%s\" but got \"%s\"", ErrNilParameter, err)
	_, err = NewStore(storage.NewMemory(), nil)
	assert.Truef(errors.Is(err, ErrNilParameter), "wanted \"%s\" but got \"%s\"", ErrNilParameter, err)
}

func TestStore_TokensValid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name      string
		tokens    *TokenSet
		skew      time.Duration
		wantValid bool
	}{
		{
			name: "valid",
			tokens: &TokenSet{
				AccessToken: "at",
				ExpiresAt:   time.Now().Add(time.Hour),
			},
			wantValid: true,
		},
		{
			name: "expired",
			tokens: &TokenSet{
				AccessToken: "at",
				ExpiresAt:   time.Now().Add(-time.Minute),
			},
			wantValid: false,
		},
		{
			name: "expiring-within-skew",
			tokens: &TokenSet{
				AccessToken: "at",
				ExpiresAt:   time.Now().Add(10 * time.Second),
			},
			skew:      time.Minute,
			wantValid: false,
		},
		{
			name:      "nothing-stored",
			wantValid: false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			opts := []StoreOption{}
			if tt.skew != 0 {
				opts = append(opts, WithExpirySkew(tt.skew))
			}
			s, _ := testStore(t, opts...)
			if tt.tokens != nil {
				require.NoError(s.StoreTokens(ctx, "a", tt.tokens))
			}
			got, err := s.TokensValid(ctx, "a")
			require.NoError(err)
			assert.Equal(tt.wantValid, got)
		})
	}
}

func TestStore_StoreTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, _ := testStore(t)
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		require.NoError(s.StoreTokens(ctx, "a", &TokenSet{
			AccessToken:  "at",
			IDToken:      "idt",
			RefreshToken: "rt",
			ExpiresAt:    exp,
		}))
		at, err := s.AccessToken(ctx, "a")
		require.NoError(err)
		assert.Equal("at", at)
		idt, err := s.IDToken(ctx, "a")
		require.NoError(err)
		assert.Equal("idt", idt)
		rt, err := s.RefreshToken(ctx, "a")
		require.NoError(err)
		assert.Equal("rt", rt)
		gotExp, ok, err := s.ExpiresAt(ctx, "a")
		require.NoError(err)
		assert.True(ok)
		assert.True(gotExp.Equal(exp))
	})

	t.Run("refresh-keeps-previous-refresh-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, _ := testStore(t)
		require.NoError(s.StoreTokens(ctx, "a", &TokenSet{
			AccessToken:  "at1",
			RefreshToken: "rt1",
			ExpiresAt:    time.Now().Add(time.Hour),
		}))
		require.NoError(s.StoreTokens(ctx, "a", &TokenSet{
			AccessToken: "at2",
			ExpiresAt:   time.Now().Add(2 * time.Hour),
		}))
		rt, err := s.RefreshToken(ctx, "a")
		require.NoError(err)
		assert.Equal("rt1", rt)
	})

	t.Run("missing-access-token", func(t *testing.T) {
		assert := assert.New(t)
		s, _ := testStore(t)
		err := s.StoreTokens(ctx, "a", &TokenSet{ExpiresAt: time.Now()})
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})

	t.Run("nil-token-set", func(t *testing.T) {
		assert := assert.New(t)
		s, _ := testStore(t)
		err := s.StoreTokens(ctx, "a", nil)
		assert.Truef(errors.Is(err, ErrNilParameter), "wanted \"%s\" but got \"%s\"", ErrNilParameter, err)
	})
}

func TestStore_SetAuthenticatedAndFire(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	s, events := testStore(t)
	ch, cancel := events.Subscribe(1)
	defer cancel()

	require.NoError(s.SetAuthenticatedAndFire(context.Background(), "a"))
	select {
	case ev := <-ch:
		assert.Equal(EventNewAuthenticationResult, ev.Type)
		assert.Equal("a", ev.ConfigID)
	default:
		t.Fatal("expected an authenticated event")
	}
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s, _ := testStore(t)
	require.NoError(s.StoreTokens(ctx, "a", &TokenSet{
		AccessToken: "at",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
	require.NoError(s.Clear(ctx, "a"))
	valid, err := s.TokensValid(ctx, "a")
	require.NoError(err)
	assert.False(valid)
}
