// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/cap-checkauth/storage"
)

// KeyUserData is the storage key user profile data is kept under.
const KeyUserData = "userData"

// UserService stores and publishes user profile data per configuration.  It
// implements checkauth.UserService.
type UserService struct {
	storage storage.Storage
	events  *Events
	logger  hclog.Logger
}

// NewUserService creates a user service over the given backend.
// Supported options: WithStoreLogger
func NewUserService(s storage.Storage, events *Events, opt ...StoreOption) (*UserService, error) {
	const op = "authstate.NewUserService"
	if s == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	if events == nil {
		return nil, fmt.Errorf("%s: event service is nil: %w", op, ErrNilParameter)
	}
	opts := getUserOpts(opt...)
	return &UserService{
		storage: s,
		events:  events,
		logger:  opts.withLogger,
	}, nil
}

// StoreUserData persists profile data (typically id_token claims) for the
// configuration and fires the user-data event.
func (u *UserService) StoreUserData(ctx context.Context, configID string, data interface{}) error {
	const op = "authstate.(UserService).StoreUserData"
	if data == nil {
		return fmt.Errorf("%s: user data is nil: %w", op, ErrNilParameter)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%s: unable to marshal user data: %w", op, err)
	}
	if err := u.storage.Write(ctx, KeyUserData, configID, string(b)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	u.events.Fire(Event{
		Type:     EventUserDataChanged,
		ConfigID: configID,
		Payload:  data,
	})
	return nil
}

// UserData returns the stored profile data, or nil when none is stored.
func (u *UserService) UserData(ctx context.Context, configID string) (interface{}, error) {
	const op = "authstate.(UserService).UserData"
	raw, ok, err := u.storage.Read(ctx, KeyUserData, configID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, nil
	}
	var data interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("%s: stored user data is invalid: %w", op, err)
	}
	return data, nil
}

// PublishUserDataIfExists fires the user-data event when profile data is
// already stored for the configuration; it is a no-op otherwise.
func (u *UserService) PublishUserDataIfExists(ctx context.Context, configID string) error {
	const op = "authstate.(UserService).PublishUserDataIfExists"
	data, err := u.UserData(ctx, configID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if data == nil {
		u.logger.Debug("no stored user data to publish", "configId", configID)
		return nil
	}
	u.events.Fire(Event{
		Type:     EventUserDataChanged,
		ConfigID: configID,
		Payload:  data,
	})
	return nil
}

// RemoveUserData deletes stored profile data for the configuration.
func (u *UserService) RemoveUserData(ctx context.Context, configID string) error {
	const op = "authstate.(UserService).RemoveUserData"
	if err := u.storage.Remove(ctx, KeyUserData, configID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
