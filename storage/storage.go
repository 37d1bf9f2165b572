// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// storage provides the persisted key/value store the cap-checkauth
// collaborators keep their state in.  Every key is partitioned by
// configuration id, so concurrent checks across different configurations
// never contend on each other's entries.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
)

// Storage is the persisted key/value contract.  Read reports ok=false when
// the key holds no value for the given configuration.
//
// Implementations must be safe for concurrent use: checks for different
// configurations run in parallel and their storage calls interleave.
type Storage interface {
	Read(ctx context.Context, key string, configID string) (value string, ok bool, err error)
	Write(ctx context.Context, key string, configID string, value string) error
	Remove(ctx context.Context, key string, configID string) error
}

// partitionKey builds the flat key an entry is stored under.
func partitionKey(configID, key string) (string, error) {
	if configID == "" {
		return "", fmt.Errorf("storage.partitionKey: config id is empty: %w", ErrInvalidParameter)
	}
	if key == "" {
		return "", fmt.Errorf("storage.partitionKey: key is empty: %w", ErrInvalidParameter)
	}
	return configID + "." + key, nil
}
