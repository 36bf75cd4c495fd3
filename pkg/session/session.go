// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package session adapts the host's session mechanism for the login flow.
// The flow only needs an opaque session identifier per request; embedders
// with their own session middleware implement Manager on top of it, while
// the standalone server uses the cookie-backed implementation here.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultCookieName is the session cookie issued by CookieManager.
const DefaultCookieName = "guildgate_session"

// Manager identifies the host session of an HTTP request.
type Manager interface {
	// ID returns the request's session identifier, establishing a new
	// session if the request carries none.
	ID(w http.ResponseWriter, r *http.Request) string

	// Destroy terminates the host session.
	Destroy(w http.ResponseWriter, r *http.Request)
}

// CookieManager implements Manager with an opaque random cookie. The cookie
// carries no claims; all authorization state lives server-side keyed by
// its value.
type CookieManager struct {
	cookieName string
	secure     bool
}

// CookieOption configures a CookieManager.
type CookieOption func(*CookieManager)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) CookieOption {
	return func(m *CookieManager) {
		m.cookieName = name
	}
}

// WithSecure marks the session cookie Secure; enable whenever the server
// is reached over HTTPS.
func WithSecure(secure bool) CookieOption {
	return func(m *CookieManager) {
		m.secure = secure
	}
}

// NewCookieManager creates a cookie-backed session manager.
func NewCookieManager(opts ...CookieOption) *CookieManager {
	m := &CookieManager{cookieName: DefaultCookieName}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the session identifier from the request cookie, issuing a new
// one when absent.
func (m *CookieManager) ID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	// Make the id visible to later middleware within the same request.
	r.AddCookie(&http.Cookie{Name: m.cookieName, Value: id})
	return id
}

// Destroy expires the session cookie.
func (m *CookieManager) Destroy(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// Compile-time interface compliance check.
var _ Manager = (*CookieManager)(nil)
