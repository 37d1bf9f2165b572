// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (s ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (s ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config is the immutable descriptor of one identity-provider integration.
// It is caller-owned: the orchestrator reads it on every check and never
// mutates it.
type Config struct {
	// ConfigID uniquely identifies this configuration.  All storage the
	// collaborators keep is partitioned by this id.
	ConfigID string

	// Authority is the issuer URL of the identity provider, used for
	// discovery by the callback and refresh collaborators.
	Authority string

	// ClientID is the relying party id
	ClientID string

	// ClientSecret is the relying party secret.  May be empty for public
	// clients.
	ClientSecret ClientSecret

	// RedirectURL is the post-login redirect registered with the provider.
	// In a multi-configuration check this URL, not the current browser
	// URL, is what non-owning configurations are evaluated against.
	RedirectURL string

	// Scopes is a list of additional oidc scopes to request of the
	// provider.  The required "openid" scope is requested by default and
	// should not be part of this optional list.
	Scopes []string

	// StartCheckSession enables the session-check poller for this
	// configuration once a check reports authenticated.
	StartCheckSession bool

	// SilentRenew enables the silent-renew worker for this configuration
	// once a check reports authenticated.
	SilentRenew bool

	// RenewTimeBeforeTokenExpires is how long before token expiry the
	// silent-renew worker refreshes the session.  Zero means renew only
	// once the token has expired.
	RenewTimeBeforeTokenExpires time.Duration

	// ProviderCA is an optional CA cert to use when sending requests to
	// the provider.
	ProviderCA string
}

// Validate the configuration.  It verifies the id, authority, client id and
// redirect URL are present and that the authority parses as an http(s) URL;
// it does not verify the authority is discoverable via an http request.
func (c *Config) Validate() error {
	const op = "checkauth.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.ConfigID == "" {
		return fmt.Errorf("%s: config id is empty: %w", op, ErrInvalidParameter)
	}
	if c.Authority == "" {
		return fmt.Errorf("%s: authority is empty: %w", op, ErrInvalidParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Authority)
	if err != nil {
		return fmt.Errorf("%s: authority %s is invalid: %w", op, c.Authority, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s: authority %s scheme is not http or https: %w", op, c.Authority, ErrInvalidParameter)
	}
	return nil
}
