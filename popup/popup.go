// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// popup models the cross-window relationship between a login popup and the
// window that opened it.  A check running inside a popup never evaluates
// authentication; it only relays the callback URL to the main window, which
// runs the check itself.  No state is shared across the boundary: the relay
// is pure message passing.
package popup

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Relay implements checkauth.PopupService.  The main window holds the relay
// and receives on Messages; the popup side is handed the same relay marked
// via OpenedAsPopup.
type Relay struct {
	logger hclog.Logger

	mu      sync.Mutex
	inPopup bool

	messages chan string
}

// NewRelay creates a relay that reports not-in-popup.
func NewRelay(opt ...Option) *Relay {
	opts := getOpts(opt...)
	return &Relay{
		logger:   opts.withLogger,
		messages: make(chan string, opts.withBuffer),
	}
}

// OpenedAsPopup marks the current execution context as a popup opened by a
// parent window.
func (r *Relay) OpenedAsPopup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inPopup = true
}

// InPopup reports whether the current execution context is a popup.
func (r *Relay) InPopup() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inPopup
}

// SendMessageToMainWindow relays url to the opening window.  Sending never
// blocks; if the main window is not draining Messages the url is dropped and
// logged.
func (r *Relay) SendMessageToMainWindow(url string) {
	select {
	case r.messages <- url:
	default:
		r.logger.Error("main window is not receiving, dropping relayed url")
	}
}

// Messages is the main-window side of the relay.
func (r *Relay) Messages() <-chan string {
	return r.messages
}
