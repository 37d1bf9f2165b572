// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authstate

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// StoreOption defines a common functional options type for this package
type StoreOption func(interface{})

// applyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func applyOpts(opts interface{}, opt ...StoreOption) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// storeOptions is the set of available options for NewStore
type storeOptions struct {
	withLogger     hclog.Logger
	withExpirySkew time.Duration
	withNow        func() time.Time
}

// storeDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func storeDefaults() storeOptions {
	return storeOptions{
		withLogger:     hclog.NewNullLogger(),
		withExpirySkew: DefaultExpirySkew,
	}
}

func getStoreOpts(opt ...StoreOption) storeOptions {
	opts := storeDefaults()
	applyOpts(&opts, opt...)
	return opts
}

// WithExpirySkew overrides the default skew applied when deciding token
// validity.
func WithExpirySkew(d time.Duration) StoreOption {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withExpirySkew = d
		}
	}
}

// WithStoreLogger provides an optional logger.
func WithStoreLogger(l hclog.Logger) StoreOption {
	return func(o interface{}) {
		switch v := o.(type) {
		case *storeOptions:
			v.withLogger = l
		case *userOptions:
			v.withLogger = l
		}
	}
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) StoreOption {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withNow = now
		}
	}
}

// userOptions is the set of available options for NewUserService
type userOptions struct {
	withLogger hclog.Logger
}

func userDefaults() userOptions {
	return userOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getUserOpts(opt ...StoreOption) userOptions {
	opts := userDefaults()
	applyOpts(&opts, opt...)
	return opts
}
