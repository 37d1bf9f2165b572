// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("read-missing", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory()
		v, ok, err := m.Read(ctx, "authStateControl", "a")
		require.NoError(err)
		assert.False(ok)
		assert.Empty(v)
	})

	t.Run("write-read-remove", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory()
		require.NoError(m.Write(ctx, "authStateControl", "a", "xyz"))
		v, ok, err := m.Read(ctx, "authStateControl", "a")
		require.NoError(err)
		assert.True(ok)
		assert.Equal("xyz", v)

		require.NoError(m.Remove(ctx, "authStateControl", "a"))
		_, ok, err = m.Read(ctx, "authStateControl", "a")
		require.NoError(err)
		assert.False(ok)
	})

	t.Run("partitioned-by-config-id", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m := NewMemory()
		require.NoError(m.Write(ctx, "authStateControl", "a", "state-a"))
		require.NoError(m.Write(ctx, "authStateControl", "b", "state-b"))

		v, ok, err := m.Read(ctx, "authStateControl", "a")
		require.NoError(err)
		assert.True(ok)
		assert.Equal("state-a", v)

		v, ok, err = m.Read(ctx, "authStateControl", "b")
		require.NoError(err)
		assert.True(ok)
		assert.Equal("state-b", v)
	})

	t.Run("empty-key-or-config", func(t *testing.T) {
		assert := assert.New(t)
		m := NewMemory()
		_, _, err := m.Read(ctx, "", "a")
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
		err = m.Write(ctx, "k", "", "v")
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})

	t.Run("concurrent-writers", func(t *testing.T) {
		require := require.New(t)
		m := NewMemory()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				configID := string(rune('a' + i))
				_ = m.Write(ctx, "accessToken", configID, "tok")
				_, _, _ = m.Read(ctx, "accessToken", configID)
			}(i)
		}
		wg.Wait()
		_, ok, err := m.Read(ctx, "accessToken", "a")
		require.NoError(err)
		require.True(ok)
	})
}
