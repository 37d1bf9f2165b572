// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package checkauth

import (
	"context"
)

// findOwningConfig resolves which configuration initiated the flow that is
// now completing, by comparing each candidate's stored anti-forgery state
// against the state parameter carried by the return URL.  It is a linear
// scan and the first match wins: configurations are expected to hold
// mutually distinct stored states, which is the login writer's contract and
// is not enforced here.  Returns nil when no candidate matches.
//
// A storage read failure for one candidate is logged and treated as
// no-stored-state for that candidate; the scan continues.
func (o *Orchestrator) findOwningConfig(ctx context.Context, cfgs []*Config, stateFromURL string) *Config {
	for _, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		stored, ok, err := o.collabs.Storage.Read(ctx, StateControlKey, cfg.ConfigID)
		if err != nil {
			o.logError(cfg, "reading stored state failed: "+err.Error())
			continue
		}
		if ok && stored == stateFromURL {
			return cfg
		}
	}
	return nil
}
