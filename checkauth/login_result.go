// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

// LoginResult is the per-configuration outcome of a check.  It is produced
// fresh on every call and never persisted.
type LoginResult struct {
	// IsAuthenticated is true when the configuration's storage-backed
	// tokens are currently valid.
	IsAuthenticated bool

	// UserData holds any user profile data already stored for the
	// configuration.  Nil when none is stored.
	UserData interface{}

	// AccessToken is the stored access token, when one exists.
	AccessToken string

	// IDToken is the stored raw id_token, when one exists.
	IDToken string

	// ConfigID identifies the configuration this result belongs to.
	ConfigID string

	// ErrorMessage is set when the check for this configuration failed.
	// Failures local to one configuration are always absorbed here rather
	// than raised, so that sibling checks in a multi-configuration call
	// are never aborted.
	ErrorMessage string
}

// IsEmpty reports whether the result is the designed short-circuit value
// returned when the check ran inside a popup window and only relayed the URL
// to the main window.
func (r *LoginResult) IsEmpty() bool {
	return r != nil && *r == LoginResult{}
}
