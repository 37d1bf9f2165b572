// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateParamFromURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "query",
			url:  "https://app.example.com/cb?code=abc&state=xyz",
			want: "xyz",
		},
		{
			name: "fragment",
			url:  "https://app.example.com/cb#id_token=jwt&state=xyz",
			want: "xyz",
		},
		{
			name: "no-state",
			url:  "https://app.example.com/home",
			want: "",
		},
		{
			name: "unparseable",
			url:  "://not-a-url",
			want: "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StateParamFromURL(tt.url))
		})
	}
}

func TestURLReader(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	r := NewURLReader(func() string { return "https://app.example.com/cb?state=xyz" })
	assert.Equal("https://app.example.com/cb?state=xyz", r.CurrentURL())
	assert.Equal("xyz", r.StateParam(r.CurrentURL()))

	empty := NewURLReader(nil)
	assert.Empty(empty.CurrentURL())
}
