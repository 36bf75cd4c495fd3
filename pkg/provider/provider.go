// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider implements the identity-provider API client used during
// a login attempt: the authorization-code exchange plus the identity, guild
// and guild-member fetches. The client holds no per-login state; the access
// token is passed explicitly through every call.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// UserAgent identifies guildgate to the provider API.
const UserAgent = "Guildgate/1.0"

// Default endpoints of the guild-based identity provider.
const (
	DefaultAPIBaseURL   = "https://discord.com/api"
	DefaultAuthorizeURL = "https://discord.com/oauth2/authorize"
	DefaultTokenURL     = "https://discord.com/api/oauth2/token"
)

// DefaultScopes requests identity plus guild and member read access.
var DefaultScopes = []string{"identify", "guilds", "guilds.members.read"}

// maxResponseSize bounds provider API responses.
const maxResponseSize = 1024 * 1024 // 1MB

// Token is the credential pair returned by the code exchange.
type Token struct {
	// Type is the token type, typically "Bearer".
	Type string

	// Access is the access token value.
	Access string
}

// authorization renders the Authorization header value for API calls.
func (t *Token) authorization() string {
	return t.Type + " " + t.Access
}

// Identity is the provider profile of the caller. Immutable once fetched.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Guild is one guild the caller is a member of.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is the caller's membership in a single guild.
type Member struct {
	Roles []string `json:"roles"`
}

// ExchangeError is a token-endpoint error payload. The description is safe
// to surface to the end user; it comes from the provider, not the caller.
type ExchangeError struct {
	Code        string
	Description string
}

// Error returns the provider's error code and description.
func (e *ExchangeError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// ErrNoMembership is returned by FetchGuildMember when the provider does not
// return a membership for the guild (caller not a member, or rate limited).
// Callers treat it as "no roles held", not as a failed attempt.
var ErrNoMembership = errors.New("no guild membership available")

// Client talks to the identity provider. Safe for concurrent use.
type Client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithEndpoints overrides the provider endpoints; used by tests and by
// deployments fronting the provider with a proxy.
func WithEndpoints(apiBaseURL, authorizeURL, tokenURL string) Option {
	return func(c *Client) {
		c.apiBaseURL = apiBaseURL
		c.oauth.Endpoint.AuthURL = authorizeURL
		c.oauth.Endpoint.TokenURL = tokenURL
	}
}

// WithScopes overrides the requested OAuth scopes.
func WithScopes(scopes []string) Option {
	return func(c *Client) {
		c.oauth.Scopes = scopes
	}
}

// NewClient creates a provider client for one OAuth application.
func NewClient(clientID, clientSecret, redirectURL string, opts ...Option) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("client ID is required")
	}
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       DefaultScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  DefaultAuthorizeURL,
				TokenURL: DefaultTokenURL,
				// Credentials go in the request body for consistent
				// behavior across provider implementations.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: DefaultAPIBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AuthCodeURL builds the provider authorize URL carrying client_id,
// response_type=code, redirect_uri, scope and the anti-forgery state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for an access token.
// The exchange is attempted exactly once: authorization codes are
// single-use, so a failed exchange invalidates the whole login attempt.
// A provider error payload is returned as *ExchangeError.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			exchangeErr := &ExchangeError{
				Code:        retrieveErr.ErrorCode,
				Description: retrieveErr.ErrorDescription,
			}
			if exchangeErr.Code == "" {
				exchangeErr.Code = fmt.Sprintf("http %d", retrieveErr.Response.StatusCode)
			}
			return nil, exchangeErr
		}
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &Token{Type: tokenType, Access: tok.AccessToken}, nil
}

// FetchIdentity fetches the caller's profile using the exchanged token.
func (c *Client) FetchIdentity(ctx context.Context, token *Token) (*Identity, error) {
	var identity Identity
	if err := c.getJSON(ctx, token, "/users/@me", &identity); err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}
	return &identity, nil
}

// FetchGuilds fetches the caller's guild memberships, in provider order.
func (c *Client) FetchGuilds(ctx context.Context, token *Token) ([]Guild, error) {
	var guilds []Guild
	if err := c.getJSON(ctx, token, "/users/@me/guilds", &guilds); err != nil {
		return nil, fmt.Errorf("failed to fetch guilds: %w", err)
	}
	return guilds, nil
}

// FetchGuildMember fetches the caller's membership in a single guild.
// Any non-success response maps to ErrNoMembership: the caller may simply
// not be a member, or the provider may be rate limiting this lookup.
func (c *Client) FetchGuildMember(ctx context.Context, token *Token, guildID string) (*Member, error) {
	var member Member
	err := c.getJSON(ctx, token, "/users/@me/guilds/"+guildID+"/member", &member)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: guild %s: %s", ErrNoMembership, guildID, statusErr)
		}
		return nil, fmt.Errorf("failed to fetch guild member: %w", err)
	}
	return &member, nil
}

// statusError is a non-2xx API response.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

// getJSON performs an authorized GET against the provider API and decodes
// the JSON response into out.
func (c *Client) getJSON(ctx context.Context, token *Token, path string, out any) error {
	if token == nil || token.Access == "" {
		return errors.New("access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", token.authorization())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{status: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}
	return nil
}
