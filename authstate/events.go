// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// authstate holds the storage-backed authentication state for each
// configuration (tokens, validity, user profile data) and the event service
// the rest of cap-checkauth notifies subscribers through.
package authstate

import (
	"sync"
)

// EventType names a notification published by the event service.
type EventType string

const (
	// EventNewAuthenticationResult fires when a configuration becomes, or
	// is confirmed, authenticated or unauthenticated.
	EventNewAuthenticationResult EventType = "NewAuthenticationResult"

	// EventUserDataChanged fires when stored user profile data is
	// published.
	EventUserDataChanged EventType = "UserDataChanged"

	// EventSessionChanged fires when the session-check poller observes a
	// changed session at the provider.
	EventSessionChanged EventType = "CheckSessionChanged"

	// EventTokenExpired fires when the periodic validation loop finds an
	// expired token for a configuration with no silent renew configured.
	EventTokenExpired EventType = "TokenExpired"

	// EventSilentRenewStarted fires when a silent-renew worker begins a
	// refresh.
	EventSilentRenewStarted EventType = "SilentRenewStarted"
)

// Event is one notification.  Payload is event-specific and may be nil.
type Event struct {
	Type     EventType
	ConfigID string
	Payload  interface{}
}

// Events is a process-wide event service.  Firing never blocks: a
// subscriber that has fallen behind its buffer misses events rather than
// stalling the check that fired them.
type Events struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewEvents creates an event service with no subscribers.
func NewEvents() *Events {
	return &Events{
		subs: map[int]chan Event{},
	}
}

// Subscribe registers a subscriber with the given buffer size and returns
// its channel along with a cancel func that unregisters and closes it.
func (e *Events) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = ch
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Fire publishes ev to every subscriber without blocking.
func (e *Events) Fire(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
