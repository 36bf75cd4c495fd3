// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"

	"github.com/guildgate/guildgate/pkg/provider"
)

// MemoryStore implements Store with in-memory maps. It is thread-safe and
// suitable for single-instance deployments and testing; use RedisStore when
// running more than one replica.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
}

type memoryEntry struct {
	pendingState string
	user         *provider.Identity
	admin        bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
	}
}

// BeginLogin records the pending anti-forgery state for a session.
func (s *MemoryStore) BeginLogin(_ context.Context, sessionID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = &memoryEntry{}
		s.sessions[sessionID] = entry
	}
	entry.pendingState = state
	return nil
}

// PendingState returns the session's pending anti-forgery state.
func (s *MemoryStore) PendingState(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok || entry.pendingState == "" {
		return "", ErrNotFound
	}
	return entry.pendingState, nil
}

// Commit records an admitted identity for the session. The pending state is
// cleared: a completed login consumes it.
func (s *MemoryStore) Commit(_ context.Context, sessionID string, user *provider.Identity, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity := *user
	s.sessions[sessionID] = &memoryEntry{
		user:  &identity,
		admin: admin,
	}
	return nil
}

// Lookup returns the committed record for a session.
func (s *MemoryStore) Lookup(_ context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok || entry.user == nil {
		return nil, ErrNotFound
	}

	// Defensive copy so callers cannot mutate stored state.
	identity := *entry.user
	return &Record{User: &identity, Admin: entry.admin}, nil
}

// Clear removes all state for a session. Idempotent.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Compile-time interface compliance check.
var _ Store = (*MemoryStore)(nil)
