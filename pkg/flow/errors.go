// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package flow

import "errors"

// Error taxonomy of a login attempt. Handlers map these to HTTP responses
// at the callback boundary; nothing propagates to the host uncaught.
var (
	// ErrConfig indicates required settings are absent or unreadable.
	// Surfaced as a 500 with a generic message; details are logged only.
	ErrConfig = errors.New("configuration error")

	// ErrStateMismatch indicates the anti-forgery check failed: the
	// callback's state did not match the session's pending state, or no
	// login was in flight. Treated as a denied attempt, not a crash.
	ErrStateMismatch = errors.New("anti-forgery state mismatch")

	// ErrMissingCode indicates the provider redirected back without an
	// authorization code. The user restarts the login; not an error.
	ErrMissingCode = errors.New("authorization code absent")

	// ErrIdentityFetch indicates the identity lookup failed after a
	// successful exchange. Fatal for the attempt.
	ErrIdentityFetch = errors.New("identity fetch failed")

	// ErrAccessDenied indicates the rules evaluated successfully and
	// admission is false.
	ErrAccessDenied = errors.New("access denied")
)
