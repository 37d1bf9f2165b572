// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"sync"
)

// Memory is an in-memory Storage, the default backend and the one unit tests
// use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: map[string]string{},
	}
}

func (m *Memory) Read(_ context.Context, key string, configID string) (string, bool, error) {
	k, err := partitionKey(configID, key)
	if err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[k]
	return v, ok, nil
}

func (m *Memory) Write(_ context.Context, key string, configID string, value string) error {
	k, err := partitionKey(configID, key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[k] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string, configID string) error {
	k, err := partitionKey(configID, key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
	return nil
}
