// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists per-session authorization state: the pending
// anti-forgery token of an in-flight login, and the identity plus admin
// flag of a completed one. Records live exactly as long as the host
// session does; the store never expires them on its own.
package store

import (
	"context"
	"errors"

	"github.com/guildgate/guildgate/pkg/provider"
)

// ErrNotFound is returned when no record exists for a session.
var ErrNotFound = errors.New("session record not found")

// Record is the committed authorization decision for one session.
type Record struct {
	// User is the admitted identity.
	User *provider.Identity

	// Admin reports whether the admitted identity holds admin rights.
	Admin bool
}

// Store persists authorization state keyed by host session identifier.
// Reads and writes are per-session-key; implementations need no
// cross-session coordination.
type Store interface {
	// BeginLogin records the pending anti-forgery state for a session,
	// overwriting any previous pending state.
	BeginLogin(ctx context.Context, sessionID, state string) error

	// PendingState returns the session's pending anti-forgery state.
	// Returns ErrNotFound when no login is in flight.
	PendingState(ctx context.Context, sessionID string) (string, error)

	// Commit records an admitted identity and its admin flag. A commit
	// supersedes any pending state for the session.
	Commit(ctx context.Context, sessionID string, user *provider.Identity, admin bool) error

	// Lookup returns the committed record for a session, or ErrNotFound
	// when the session has no admitted user.
	Lookup(ctx context.Context, sessionID string) (*Record, error)

	// Clear removes all state for a session. Clearing a session that has
	// no state is not an error.
	Clear(ctx context.Context, sessionID string) error
}
