// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// http builds the clients the callback and session collaborators use when
// talking to an identity provider.
package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

var (
	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")
)

// NewClient returns a pooled http client for provider requests.  A non-empty
// caPEM becomes the client's only trusted CA (a Config.ProviderCA, typically);
// otherwise the system chain applies.
func NewClient(caPEM string) (*http.Client, error) {
	const op = "http.NewClient"
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCertificatePem)
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// OidcClientContext returns a Context that carries client for both the
// go-oidc and oauth2 packages, which honor the same context key.  Discovery,
// code exchange, token refresh and key fetches all pick the client up from
// the context this returns.
func OidcClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}
