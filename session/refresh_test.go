// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-checkauth/authstate"
	"github.com/hashicorp/cap-checkauth/callback"
	"github.com/hashicorp/cap-checkauth/checkauth"
	"github.com/hashicorp/cap-checkauth/session"
	"github.com/hashicorp/cap-checkauth/storage"
)

type sessionTestState struct {
	events  *authstate.Events
	store   *authstate.Store
	user    *authstate.UserService
	refresh *session.RefreshService
}

func testSessionState(t *testing.T) *sessionTestState {
	t.Helper()
	events := authstate.NewEvents()
	mem := storage.NewMemory()
	store, err := authstate.NewStore(mem, events)
	require.NoError(t, err)
	user, err := authstate.NewUserService(mem, events)
	require.NoError(t, err)
	refresh, err := session.NewRefreshService(store, user, events)
	require.NoError(t, err)
	return &sessionTestState{
		events:  events,
		store:   store,
		user:    user,
		refresh: refresh,
	}
}

func testSessionConfig(tp *callback.TestProvider, configID string) *checkauth.Config {
	return &checkauth.Config{
		ConfigID:    configID,
		Authority:   tp.Addr(),
		ClientID:    "test-rp",
		RedirectURL: "https://rp.example.com/callback",
	}
}

// waitForEvent drains ch until an event of the wanted type arrives for the
// configuration, failing the test after two seconds.
func waitForEvent(t *testing.T, ch <-chan authstate.Event, typ authstate.EventType, configID string) authstate.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ && ev.ConfigID == configID {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event for config %q", typ, configID)
			return authstate.Event{}
		}
	}
}

func TestRefreshService_ForceRefreshSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("refreshes-and-stores", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		tp := callback.StartTestProvider(t)
		tp.SetClientID("test-rp")
		tp.SetSubject("alice@example.com")
		st := testSessionState(t)
		cfg := testSessionConfig(tp, "cfg-refresh")

		require.NoError(st.store.StoreTokens(ctx, cfg.ConfigID, &authstate.TokenSet{
			AccessToken:  "stale-access-token",
			RefreshToken: "stored-refresh-token",
			ExpiresAt:    time.Now().Add(-time.Minute),
		}))

		ch, cancel := st.events.Subscribe(16)
		defer cancel()

		got, err := st.refresh.ForceRefreshSession(ctx, cfg)
		require.NoError(err)
		require.NotNil(got)
		assert.True(got.IsAuthenticated)
		assert.Equal(cfg.ConfigID, got.ConfigID)
		assert.True(strings.HasPrefix(got.AccessToken, "access-refresh_token"))
		assert.NotEmpty(got.IDToken)
		assert.Empty(got.ErrorMessage)
		claims, ok := got.UserData.(map[string]interface{})
		require.True(ok)
		assert.Equal("alice@example.com", claims["sub"])

		stored, err := st.store.AccessToken(ctx, cfg.ConfigID)
		require.NoError(err)
		assert.Equal(got.AccessToken, stored)
		valid, err := st.store.TokensValid(ctx, cfg.ConfigID)
		require.NoError(err)
		assert.True(valid)

		ev := waitForEvent(t, ch, authstate.EventNewAuthenticationResult, cfg.ConfigID)
		assert.Equal(true, ev.Payload)
	})

	t.Run("no-stored-refresh-token", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		tp := callback.StartTestProvider(t)
		st := testSessionState(t)
		cfg := testSessionConfig(tp, "cfg-no-rt")

		got, err := st.refresh.ForceRefreshSession(ctx, cfg)
		require.Error(err)
		assert.ErrorIs(err, session.ErrNoRefreshToken)
		assert.Nil(got)
		assert.Zero(tp.TokenRequests())
	})

	t.Run("nil-config", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		st := testSessionState(t)

		got, err := st.refresh.ForceRefreshSession(ctx, nil)
		require.Error(err)
		assert.ErrorIs(err, session.ErrNilParameter)
		assert.Nil(got)
	})

	t.Run("concurrent-refreshes-deduplicated", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		tp := callback.StartTestProvider(t)
		tp.SetClientID("test-rp")
		tp.SetTokenDelay(250 * time.Millisecond)
		st := testSessionState(t)
		cfg := testSessionConfig(tp, "cfg-dedup")

		require.NoError(st.store.StoreTokens(ctx, cfg.ConfigID, &authstate.TokenSet{
			AccessToken:  "stale-access-token",
			RefreshToken: "stored-refresh-token",
			ExpiresAt:    time.Now().Add(-time.Minute),
		}))

		// warm the discovery cache so the concurrent calls below hit the
		// token endpoint inside the delay window
		_, err := st.refresh.ForceRefreshSession(ctx, cfg)
		require.NoError(err)
		require.Equal(1, tp.TokenRequests())

		const callers = 8
		results := make([]*checkauth.LoginResult, callers)
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = st.refresh.ForceRefreshSession(ctx, cfg)
			}(i)
		}
		wg.Wait()

		for i := 0; i < callers; i++ {
			require.NoError(errs[i])
			require.NotNil(results[i])
			assert.True(results[i].IsAuthenticated)
		}
		// overlapping callers share one provider round-trip
		assert.Less(tp.TokenRequests(), callers+1)
	})
}

func TestNewRefreshService(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	events := authstate.NewEvents()
	mem := storage.NewMemory()
	store, err := authstate.NewStore(mem, events)
	require.NoError(err)
	user, err := authstate.NewUserService(mem, events)
	require.NoError(err)

	_, err = session.NewRefreshService(nil, user, events)
	assert.ErrorIs(err, session.ErrNilParameter)
	_, err = session.NewRefreshService(store, nil, events)
	assert.ErrorIs(err, session.ErrNilParameter)
	_, err = session.NewRefreshService(store, user, nil)
	assert.ErrorIs(err, session.ErrNilParameter)

	got, err := session.NewRefreshService(store, user, events)
	require.NoError(err)
	assert.NotNil(got)
}
