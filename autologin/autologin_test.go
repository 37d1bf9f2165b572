// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package autologin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-checkauth/storage"
)

func TestService_CheckSavedRedirectRouteAndNavigate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("navigates-and-consumes", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		mem := storage.NewMemory()
		var navigated []string
		svc, err := New(mem, func(route string) { navigated = append(navigated, route) })
		require.NoError(err)

		require.NoError(svc.SaveRedirectRoute(ctx, "a", "/dashboard"))
		svc.CheckSavedRedirectRouteAndNavigate("a")
		assert.Equal([]string{"/dashboard"}, navigated)

		// the saved route is one-shot
		svc.CheckSavedRedirectRouteAndNavigate("a")
		assert.Equal([]string{"/dashboard"}, navigated)
	})

	t.Run("no-saved-route", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var navigated []string
		svc, err := New(storage.NewMemory(), func(route string) { navigated = append(navigated, route) })
		require.NoError(err)

		svc.CheckSavedRedirectRouteAndNavigate("a")
		assert.Empty(navigated)
	})

	t.Run("partitioned-by-config", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		mem := storage.NewMemory()
		var navigated []string
		svc, err := New(mem, func(route string) { navigated = append(navigated, route) })
		require.NoError(err)

		require.NoError(svc.SaveRedirectRoute(ctx, "a", "/a-route"))
		svc.CheckSavedRedirectRouteAndNavigate("b")
		assert.Empty(navigated)
	})
}
