// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

import (
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// orchestratorOptions is the set of available options for New
type orchestratorOptions struct {
	withLogger hclog.Logger
}

// orchestratorDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func orchestratorDefaults() orchestratorOptions {
	return orchestratorOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getOrchestratorOpts gets the defaults and applies the opt overrides passed
// in.
func getOrchestratorOpts(opt ...Option) orchestratorOptions {
	opts := orchestratorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for the orchestrator
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*orchestratorOptions); ok {
			o.withLogger = l
		}
	}
}

// checkOptions is the set of available options for the CheckAuth* operations
type checkOptions struct {
	withURL string
}

func checkDefaults() checkOptions {
	return checkOptions{}
}

func getCheckOpts(opt ...Option) checkOptions {
	opts := checkDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithURL overrides auto-detection of the current URL for a single
// CheckAuth, CheckAuthMultiple or CheckAuthIncludingServer call.
func WithURL(url string) Option {
	return func(o interface{}) {
		if o, ok := o.(*checkOptions); ok {
			o.withURL = url
		}
	}
}
