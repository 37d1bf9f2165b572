// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-checkauth/storage"
)

func testUserService(t *testing.T) (*UserService, *Events) {
	t.Helper()
	events := NewEvents()
	u, err := NewUserService(storage.NewMemory(), events)
	require.NoError(t, err)
	return u, events
}

func TestUserService_RoundTrip(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	u, _ := testUserService(t)

	require.NoError(u.StoreUserData(ctx, "a", map[string]interface{}{"sub": "alice", "email": "alice@example.com"}))
	got, err := u.UserData(ctx, "a")
	require.NoError(err)
	data, ok := got.(map[string]interface{})
	require.True(ok)
	assert.Equal("alice", data["sub"])
}

func TestUserService_PublishUserDataIfExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("publishes-when-stored", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		u, events := testUserService(t)
		require.NoError(u.StoreUserData(ctx, "a", map[string]interface{}{"sub": "alice"}))

		ch, cancel := events.Subscribe(1)
		defer cancel()
		require.NoError(u.PublishUserDataIfExists(ctx, "a"))
		select {
		case ev := <-ch:
			assert.Equal(EventUserDataChanged, ev.Type)
			assert.Equal("a", ev.ConfigID)
		default:
			t.Fatal("expected a user-data event")
		}
	})

	t.Run("no-op-when-nothing-stored", func(t *testing.T) {
		require := require.New(t)
		u, events := testUserService(t)
		ch, cancel := events.Subscribe(1)
		defer cancel()
		require.NoError(u.PublishUserDataIfExists(ctx, "a"))
		select {
		case ev := <-ch:
			t.Fatalf("expected no event, got %v", ev)
		default:
		}
	})
}

func TestUserService_RemoveUserData(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	u, _ := testUserService(t)
	require.NoError(u.StoreUserData(ctx, "a", map[string]interface{}{"sub": "alice"}))
	require.NoError(u.RemoveUserData(ctx, "a"))
	got, err := u.UserData(ctx, "a")
	require.NoError(err)
	assert.Nil(got)
}

func TestEvents_SubscribeAndCancel(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	events := NewEvents()
	ch, cancel := events.Subscribe(2)

	events.Fire(Event{Type: EventTokenExpired, ConfigID: "a"})
	ev := <-ch
	assert.Equal(EventTokenExpired, ev.Type)

	cancel()
	// channel is closed after cancel
	_, open := <-ch
	assert.False(open)

	// firing after cancel must not panic
	events.Fire(Event{Type: EventTokenExpired, ConfigID: "a"})
}

func TestEvents_FireNeverBlocks(t *testing.T) {
	t.Parallel()
	events := NewEvents()
	_, cancel := events.Subscribe(1)
	defer cancel()
	// second fire overflows the buffer and must be dropped, not block
	events.Fire(Event{Type: EventSessionChanged, ConfigID: "a"})
	events.Fire(Event{Type: EventSessionChanged, ConfigID: "a"})
}
