// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the guildgate settings.
//
// Settings are intentionally re-read from disk on every authorization
// attempt: operators edit the rule blocks while the server is running and
// expect the next login to see them. The file is small, so the cost of a
// fresh read is negligible compared to the provider round-trips that follow.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/guildgate/guildgate/pkg/rules"
)

// ErrMissingSettings is returned when required settings are absent.
var ErrMissingSettings = errors.New("missing required settings")

// Settings is the full guildgate configuration: provider credentials plus
// the three rule blocks.
type Settings struct {
	// ClientID is the OAuth client ID registered with the provider.
	ClientID string `mapstructure:"client_id"`

	// ClientSecret is the OAuth client secret.
	ClientSecret string `mapstructure:"client_secret"`

	// CallbackURL is the absolute URL of the /callback endpoint as
	// registered with the provider.
	CallbackURL string `mapstructure:"callback_url"`

	// ClearSessionOnDenial controls whether a denied login attempt clears
	// a previously admitted session. The historical behavior is to leave
	// the prior session intact; set this to true to force re-login to be
	// authoritative.
	ClearSessionOnDenial bool `mapstructure:"clear_session_on_denial"`

	// Rules holds the authorizedUsers, admins and excluded blocks.
	Rules rules.Config `mapstructure:",squash"`
}

// Validate checks that the settings required to run a login flow are present.
func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: settings are nil", ErrMissingSettings)
	}
	if s.ClientID == "" {
		return fmt.Errorf("%w: client_id", ErrMissingSettings)
	}
	if s.CallbackURL == "" {
		return fmt.Errorf("%w: callback_url", ErrMissingSettings)
	}
	return nil
}

// Provider supplies settings for one authorization attempt.
type Provider interface {
	// Load returns the current settings. Implementations must return
	// settings at least as fresh as the start of the attempt.
	Load(ctx context.Context) (*Settings, error)
}

// FileProvider reads settings from a file on every Load call.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading the given settings file.
// The format is inferred from the file extension (JSON, YAML, TOML).
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Load reads and parses the settings file. A fresh parser is used per call
// so edits to the file are picked up by the next attempt.
func (p *FileProvider) Load(_ context.Context) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(p.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", p.path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", p.path, err)
	}
	return &s, nil
}

// StaticProvider returns fixed settings; useful for tests and embedders
// that manage configuration themselves.
type StaticProvider struct {
	Settings *Settings
}

// Load returns the fixed settings.
func (p *StaticProvider) Load(_ context.Context) (*Settings, error) {
	if p.Settings == nil {
		return nil, fmt.Errorf("%w: no settings configured", ErrMissingSettings)
	}
	return p.Settings, nil
}

// Compile-time interface compliance checks.
var (
	_ Provider = (*FileProvider)(nil)
	_ Provider = (*StaticProvider)(nil)
)
