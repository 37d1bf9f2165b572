// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package popup

import (
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

// options is the set of available options for NewRelay
type options struct {
	withLogger hclog.Logger
	withBuffer int
}

func defaults() options {
	return options{
		withLogger: hclog.NewNullLogger(),
		withBuffer: 8,
	}
}

func getOpts(opt ...Option) options {
	opts := defaults()
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithLogger provides an optional logger for the relay
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}

// WithBuffer overrides the relay's message buffer size
func WithBuffer(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			if n > 0 {
				o.withBuffer = n
			}
		}
	}
}
