// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// newStateToken generates the per-login anti-forgery token. 16 random
// bytes give ample guess-resistance within the attempt window.
func newStateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// verifyState reports whether the supplied state exactly matches the
// session's pending state. The pending state is not cleared here; a
// successful commit consumes it, and a fresh login overwrites it.
func verifyState(pending, supplied string) bool {
	return pending != "" && pending == supplied
}
