// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package flow wires the login endpoints together: it starts the
// authorization-code flow, completes it at the callback, evaluates the
// access rules and commits or denies the session. All provider and rule
// errors are absorbed here and mapped to HTTP responses.
package flow

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/guildgate/guildgate/pkg/config"
	"github.com/guildgate/guildgate/pkg/guilds"
	"github.com/guildgate/guildgate/pkg/logger"
	"github.com/guildgate/guildgate/pkg/provider"
	"github.com/guildgate/guildgate/pkg/rules"
	"github.com/guildgate/guildgate/pkg/session"
	"github.com/guildgate/guildgate/pkg/store"
)

// Paths served by the flow. RequireAuth leaves these unguarded so the
// login flow itself is always reachable.
const (
	LoginPath    = "/login"
	CallbackPath = "/callback"
	LogoutPath   = "/logout"
)

// DefaultPostLoginURL is where an admitted user lands when no earlier
// request was recorded.
const DefaultPostLoginURL = "/"

// returnToCookieName remembers the URL a not-yet-admitted user asked for,
// so the callback can send them back after admission.
const returnToCookieName = "guildgate_return_to"

// ProviderClient is the provider surface one login attempt needs.
// *provider.Client implements it; tests substitute fakes.
type ProviderClient interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*provider.Token, error)
	FetchIdentity(ctx context.Context, token *provider.Token) (*provider.Identity, error)
	guilds.API
}

// ClientFactory builds a provider client from freshly loaded settings.
// A new client is built per attempt because the settings file may have
// changed since the previous one.
type ClientFactory func(settings *config.Settings) (ProviderClient, error)

func defaultClientFactory(settings *config.Settings) (ProviderClient, error) {
	return provider.NewClient(settings.ClientID, settings.ClientSecret, settings.CallbackURL)
}

// Handler serves the login, callback and logout endpoints.
type Handler struct {
	settings  config.Provider
	store     store.Store
	sessions  session.Manager
	newClient ClientFactory
}

// Option configures a Handler.
type Option func(*Handler)

// WithClientFactory overrides how provider clients are built; tests use it
// to point the flow at a fake provider.
func WithClientFactory(factory ClientFactory) Option {
	return func(h *Handler) {
		h.newClient = factory
	}
}

// NewHandler creates the flow handler.
func NewHandler(settings config.Provider, st store.Store, sessions session.Manager, opts ...Option) *Handler {
	h := &Handler{
		settings:  settings,
		store:     st,
		sessions:  sessions,
		newClient: defaultClientFactory,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the flow endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get(LoginPath, h.LoginHandler)
	r.Get(CallbackPath, h.CallbackHandler)
	r.Get(LogoutPath, h.LogoutHandler)
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Sign in</title>
<style>
body { font-family: sans-serif; text-align: center; margin-top: 15%; }
a.button {
  display: inline-block; padding: 12px 28px; border-radius: 4px;
  background: #5865f2; color: #fff; text-decoration: none; font-size: 1.1em;
}
</style>
</head>
<body>
<a class="button" href="{{.AuthURL}}">Sign in with Discord</a>
</body>
</html>
`))

// LoginHandler starts a login attempt: it stores a fresh anti-forgery
// state for the session and serves a page linking to the provider's
// authorize URL. Revisiting /login simply starts a new attempt.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := h.sessions.ID(w, r)

	settings, err := h.loadSettings(ctx)
	if err != nil {
		logger.Errorw("login rejected, settings unavailable", "error", err)
		http.Error(w, "Configuration Error: check server logs.", http.StatusInternalServerError)
		return
	}

	client, err := h.newClient(settings)
	if err != nil {
		logger.Errorw("login rejected, provider client setup failed", "error", err)
		http.Error(w, "Configuration Error: check server logs.", http.StatusInternalServerError)
		return
	}

	state, err := newStateToken()
	if err != nil {
		logger.Errorw("failed to generate login state", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.store.BeginLogin(ctx, sid, state); err != nil {
		logger.Errorw("failed to store login state", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	loginsStarted.Inc()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPage.Execute(w, map[string]string{"AuthURL": client.AuthCodeURL(state)}); err != nil {
		logger.Warnw("failed to render login page", "error", err)
	}
}

// CallbackHandler completes a login attempt. Each outcome of the attempt
// maps to one HTTP response; see completeLogin for the order of checks.
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := h.sessions.ID(w, r)

	err := h.completeLogin(ctx, sid, r.URL.Query())

	var exchangeErr *provider.ExchangeError
	switch {
	case err == nil:
		callbackResults.WithLabelValues(resultAdmitted).Inc()
		target := h.consumeReturnTo(w, r)
		http.Redirect(w, r, target, http.StatusFound)

	case errors.Is(err, ErrStateMismatch), errors.Is(err, ErrMissingCode):
		// Not necessarily an attack: an expired session or a stale
		// browser tab lands here too. Restart the flow.
		logger.Warnw("restarting login", "reason", err)
		callbackResults.WithLabelValues(resultRestart).Inc()
		http.Redirect(w, r, LoginPath, http.StatusFound)

	case errors.As(err, &exchangeErr):
		callbackResults.WithLabelValues(resultExchangeError).Inc()
		msg := exchangeErr.Description
		if msg == "" {
			msg = exchangeErr.Code
		}
		http.Error(w, "Auth Error: "+msg, http.StatusBadRequest)

	case errors.Is(err, ErrAccessDenied):
		callbackResults.WithLabelValues(resultDenied).Inc()
		http.Error(w, "Access denied. You are not authorized.", http.StatusForbidden)

	case errors.Is(err, ErrConfig):
		logger.Errorw("callback rejected, settings unavailable", "error", err)
		callbackResults.WithLabelValues(resultError).Inc()
		http.Error(w, "Configuration Error: check server logs.", http.StatusInternalServerError)

	default:
		logger.Errorw("login attempt failed", "error", err)
		callbackResults.WithLabelValues(resultError).Inc()
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// completeLogin runs the callback side of the flow for one session:
// state check, code exchange, identity fetch, rule evaluation, commit.
// Checks are ordered so that no provider call happens before the
// anti-forgery state is verified.
func (h *Handler) completeLogin(ctx context.Context, sid string, query url.Values) error {
	settings, err := h.loadSettings(ctx)
	if err != nil {
		return err
	}

	pending, err := h.store.PendingState(ctx, sid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no login in flight", ErrStateMismatch)
		}
		return fmt.Errorf("failed to read pending state: %w", err)
	}
	if !verifyState(pending, query.Get("state")) {
		return ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return ErrMissingCode
	}

	client, err := h.newClient(settings)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	token, err := client.ExchangeCode(ctx, code)
	if err != nil {
		// *provider.ExchangeError passes through untouched so the
		// handler can surface the provider's description.
		return err
	}

	identity, err := client.FetchIdentity(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentityFetch, err)
	}

	resolver := guilds.NewResolver(client)
	memberships, err := resolver.Resolve(ctx, token, &settings.Rules)
	if err != nil {
		return fmt.Errorf("failed to resolve guild memberships: %w", err)
	}

	decision := rules.Evaluate(identity.ID, &settings.Rules, resolver.Matcher(ctx, token, memberships))
	if !decision.Admitted {
		logger.Warnw("access denied", "username", identity.Username, "user_id", identity.ID)
		if settings.ClearSessionOnDenial {
			if err := h.store.Clear(ctx, sid); err != nil {
				logger.Warnw("failed to clear session after denial", "error", err)
			}
		}
		return ErrAccessDenied
	}

	if err := h.store.Commit(ctx, sid, identity, decision.Admin); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	logger.Infow("login succeeded",
		"username", identity.Username, "user_id", identity.ID, "admin", decision.Admin)
	return nil
}

// LogoutHandler clears the session's authorization state and the host
// session itself, then lands on the login page. Logging out a session
// that was never admitted behaves the same way.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sid := h.sessions.ID(w, r)
	if err := h.store.Clear(r.Context(), sid); err != nil {
		logger.Warnw("failed to clear session state on logout", "error", err)
	}
	h.sessions.Destroy(w, r)
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

func (h *Handler) loadSettings(ctx context.Context) (*config.Settings, error) {
	settings, err := h.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return settings, nil
}

// Authenticated returns the committed record for a session, or nil when
// the session has no admitted user.
func (h *Handler) Authenticated(ctx context.Context, sessionID string) (*store.Record, error) {
	rec, err := h.store.Lookup(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Authorized reports whether the session holds an admitted user.
func (h *Handler) Authorized(ctx context.Context, sessionID string) (bool, error) {
	rec, err := h.Authenticated(ctx, sessionID)
	return rec != nil, err
}

// RequireAuth guards every route except the flow's own endpoints. A
// request without an admitted session is remembered and redirected to the
// login page; an admitted one proceeds with its record in the context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LoginPath, CallbackPath, LogoutPath:
			next.ServeHTTP(w, r)
			return
		}

		sid := h.sessions.ID(w, r)
		rec, err := h.Authenticated(r.Context(), sid)
		if err != nil {
			logger.Errorw("session lookup failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if rec == nil {
			h.rememberReturnTo(w, r)
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(withRecord(r.Context(), rec)))
	})
}

// rememberReturnTo records the request URL so the callback can redirect
// back to it after admission.
func (h *Handler) rememberReturnTo(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     returnToCookieName,
		Value:    url.QueryEscape(r.URL.RequestURI()),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// consumeReturnTo reads and clears the remembered URL, falling back to
// DefaultPostLoginURL when none was recorded or the value is not a local
// path. Only same-site relative paths are honored.
func (h *Handler) consumeReturnTo(w http.ResponseWriter, r *http.Request) string {
	target := DefaultPostLoginURL
	if cookie, err := r.Cookie(returnToCookieName); err == nil {
		if decoded, err := url.QueryUnescape(cookie.Value); err == nil && isLocalPath(decoded) {
			target = decoded
		}
		http.SetCookie(w, &http.Cookie{
			Name:     returnToCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
	return target
}

// isLocalPath accepts only server-relative paths, rejecting absolute URLs
// and scheme-relative ones so the cookie cannot become an open redirect.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}
