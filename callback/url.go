// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/url"
)

// callbackParams are the oidc response parameters carried by a callback URL,
// in either the query or, for fragment-style responses, the fragment.
type callbackParams struct {
	state            string
	code             string
	authError        string
	errorDescription string
}

func parseCallbackParams(rawURL string) callbackParams {
	u, err := url.Parse(rawURL)
	if err != nil {
		return callbackParams{}
	}
	values := u.Query()
	if len(values) == 0 && u.Fragment != "" {
		// fragment responses encode the parameters the same way a query
		// string does
		if fv, err := url.ParseQuery(u.Fragment); err == nil {
			values = fv
		}
	}
	return callbackParams{
		state:            values.Get("state"),
		code:             values.Get("code"),
		authError:        values.Get("error"),
		errorDescription: values.Get("error_description"),
	}
}

// StateParamFromURL extracts the oidc state parameter from rawURL, returning
// "" when none is present.  Both query and fragment responses are supported.
func StateParamFromURL(rawURL string) string {
	return parseCallbackParams(rawURL).state
}

// URLReader implements checkauth.URLService over a caller-supplied source of
// the current URL: a live page, an inbound request, a test fixture.
type URLReader struct {
	current func() string
}

// NewURLReader creates a URLReader.  current may be nil, in which case
// CurrentURL returns "".
func NewURLReader(current func() string) *URLReader {
	return &URLReader{current: current}
}

func (r *URLReader) CurrentURL() string {
	if r.current == nil {
		return ""
	}
	return r.current()
}

func (r *URLReader) StateParam(rawURL string) string {
	return StateParamFromURL(rawURL)
}
