// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gopkg.in/square/go-jose.v2"
)

// TestProvider is a local http test provider implementing enough of the oidc
// protocol for callback and refresh tests: discovery, token endpoint (code
// and refresh_token grants), jwks and userinfo.  Every id_token it mints is
// RS256 signed with a fresh test key.
type TestProvider struct {
	t        *testing.T
	server   *httptest.Server
	signer   jose.Signer
	pubKey   *rsa.PublicKey
	keyID    string
	issuer   string
	mu       sync.Mutex
	clientID string
	nonce    string
	subject  string
	expiry   time.Duration

	omitIDToken   bool
	tokenDelay    time.Duration
	tokenRequests int
}

// StartTestProvider starts a TestProvider.  It is shut down when the test
// (and all its subtests) completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("unable to generate test key: %v", err)
	}
	const keyID = "test-key-1"
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: priv},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", keyID),
	)
	if err != nil {
		t.Fatalf("unable to create test signer: %v", err)
	}
	p := &TestProvider{
		t:       t,
		signer:  signer,
		pubKey:  &priv.PublicKey,
		keyID:   keyID,
		subject: "alice@example.com",
		expiry:  time.Hour,
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	p.issuer = p.server.URL
	t.Cleanup(p.server.Close)
	return p
}

// Addr returns the provider's issuer URL.
func (p *TestProvider) Addr() string { return p.issuer }

// SetClientID sets the audience minted into id_tokens.
func (p *TestProvider) SetClientID(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetExpectedNonce sets the nonce minted into id_tokens for the code grant.
func (p *TestProvider) SetExpectedNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = nonce
}

// SetSubject sets the sub claim minted into id_tokens.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = sub
}

// SetOmitIDToken makes the token endpoint answer without an id_token.
func (p *TestProvider) SetOmitIDToken(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = omit
}

// SetTokenDelay makes the token endpoint sleep before answering.
func (p *TestProvider) SetTokenDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenDelay = d
}

// TokenRequests returns how many token-endpoint requests were served.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

func (p *TestProvider) serve(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		p.writeJSON(w, map[string]interface{}{
			"issuer":                                p.issuer,
			"authorization_endpoint":                p.issuer + "/authorize",
			"token_endpoint":                        p.issuer + "/token",
			"jwks_uri":                              p.issuer + "/keys",
			"userinfo_endpoint":                     p.issuer + "/userinfo",
			"id_token_signing_alg_values_supported": []string{"RS256"},
			"response_types_supported":              []string{"code"},
			"subject_types_supported":               []string{"public"},
		})
	case "/token":
		p.serveToken(w, req)
	case "/keys":
		p.writeJSON(w, jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{{
				Key:       p.pubKey,
				KeyID:     p.keyID,
				Algorithm: "RS256",
				Use:       "sig",
			}},
		})
	case "/userinfo":
		p.mu.Lock()
		sub := p.subject
		p.mu.Unlock()
		p.writeJSON(w, map[string]interface{}{"sub": sub})
	default:
		http.NotFound(w, req)
	}
}

func (p *TestProvider) serveToken(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.tokenRequests++
	clientID := p.clientID
	nonce := p.nonce
	sub := p.subject
	expiry := p.expiry
	omit := p.omitIDToken
	delay := p.tokenDelay
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	grant := req.Form.Get("grant_type")
	if grant == "refresh_token" {
		// refresh responses carry no nonce
		nonce = ""
	}

	now := time.Now()
	claims := map[string]interface{}{
		"iss": p.issuer,
		"sub": sub,
		"aud": clientID,
		"exp": now.Add(expiry).Unix(),
		"iat": now.Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jws, err := p.signer.Sign(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	idToken, err := jws.CompactSerialize()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"access_token":  fmt.Sprintf("access-%s-%d", grant, now.UnixNano()),
		"token_type":    "Bearer",
		"expires_in":    int(expiry.Seconds()),
		"refresh_token": "refresh-" + grant,
	}
	if !omit {
		resp["id_token"] = idToken
	}
	p.writeJSON(w, resp)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		p.t.Errorf("unable to encode response: %v", err)
	}
}
