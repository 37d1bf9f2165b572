// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

import (
	"errors"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrConfigMismatch reports that the state parameter found in the
	// current URL does not correlate to any known configuration's stored
	// anti-forgery state.  It is the only failure surfaced at the call
	// level by CheckAuth and CheckAuthMultiple; everything else is
	// absorbed into a per-configuration LoginResult.
	ErrConfigMismatch = errors.New("could not find matching config for state")

	// ErrMissingConfiguration reports that no configuration was supplied
	// to a check.  It never escapes the per-configuration routine; it is
	// converted into an error-valued LoginResult.
	ErrMissingConfiguration = errors.New("no configuration provided")

	// ErrCallbackFailed wraps any failure raised while processing an
	// authorization callback.
	ErrCallbackFailed = errors.New("callback processing failed")
)
