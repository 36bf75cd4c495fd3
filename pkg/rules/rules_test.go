// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// matcherFor returns a GuildMatcher that reports a match for exactly the
// given blocks and records every block it was invoked with.
func matcherFor(calls *[]*Block, matching ...*Block) GuildMatcher {
	return func(block *Block) bool {
		*calls = append(*calls, block)
		for _, m := range matching {
			if block == m {
				return true
			}
		}
		return false
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	authorizedByID := &Config{
		AuthorizedUsers: &Block{Individuals: []string{"42"}},
	}
	adminByGuild := &Config{
		Admins: &Block{Guilds: map[string]GuildRule{"g1": {Roles: []string{"r1"}}}},
	}
	authorizedButExcluded := &Config{
		AuthorizedUsers: &Block{Individuals: []string{"42"}},
		Excluded:        &Block{Individuals: []string{"42"}},
	}

	tests := []struct {
		name     string
		userID   string
		cfg      *Config
		matching func(cfg *Config) []*Block
		want     Decision
	}{
		{
			name:   "authorized individual without admin or exclusion rules",
			userID: "42",
			cfg:    authorizedByID,
			want:   Decision{Admitted: true, Admin: false},
		},
		{
			name:     "admin via guild role",
			userID:   "7",
			cfg:      adminByGuild,
			matching: func(cfg *Config) []*Block { return []*Block{cfg.Admins} },
			want:     Decision{Admitted: true, Admin: true},
		},
		{
			name:   "individual exclusion beats authorized individual",
			userID: "42",
			cfg:    authorizedButExcluded,
			want:   Decision{Admitted: false, Admin: false},
		},
		{
			name:   "unknown caller is denied",
			userID: "999",
			cfg:    authorizedByID,
			want:   Decision{Admitted: false, Admin: false},
		},
		{
			name:   "empty user id is never admitted",
			userID: "",
			cfg: &Config{
				AuthorizedUsers: &Block{Individuals: []string{""}},
			},
			want: Decision{Admitted: false, Admin: false},
		},
		{
			name:   "nil config denies everyone",
			userID: "42",
			cfg:    nil,
			want:   Decision{Admitted: false, Admin: false},
		},
		{
			name:   "guild exclusion revokes guild-granted permission",
			userID: "7",
			cfg: &Config{
				AuthorizedUsers: &Block{Guilds: map[string]GuildRule{"g1": {Roles: []string{"member"}}}},
				Excluded:        &Block{Guilds: map[string]GuildRule{"g2": {Roles: []string{"banned"}}}},
			},
			matching: func(cfg *Config) []*Block { return []*Block{cfg.AuthorizedUsers, cfg.Excluded} },
			want:     Decision{Admitted: false, Admin: false},
		},
		{
			name:   "admin individual also gains permission",
			userID: "9",
			cfg: &Config{
				Admins: &Block{Individuals: []string{"9"}},
			},
			want: Decision{Admitted: true, Admin: true},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls []*Block
			var matching []*Block
			if tt.matching != nil {
				matching = tt.matching(tt.cfg)
			}
			got := Evaluate(tt.userID, tt.cfg, matcherFor(&calls, matching...))
			assert.Equal(t, tt.want, got)
			if got.Admin {
				assert.True(t, got.Admitted, "admin must imply admitted")
			}
		})
	}
}

func TestEvaluateExclusionAlwaysWins(t *testing.T) {
	t.Parallel()

	// An individually excluded caller is denied regardless of how many
	// other blocks they satisfy, including admin.
	cfg := &Config{
		AuthorizedUsers: &Block{Individuals: []string{"42"}},
		Admins:          &Block{Individuals: []string{"42"}},
		Excluded:        &Block{Individuals: []string{"42"}},
	}
	got := Evaluate("42", cfg, nil)
	assert.Equal(t, Decision{}, got)
}

func TestEvaluateGuildExclusionGuard(t *testing.T) {
	t.Parallel()

	// A caller with no standing permission must never trigger the
	// exclusion-side guild matcher.
	cfg := &Config{
		AuthorizedUsers: &Block{Individuals: []string{"somebody-else"}},
		Excluded:        &Block{Guilds: map[string]GuildRule{"g1": {Roles: []string{"banned"}}}},
	}

	var calls []*Block
	got := Evaluate("42", cfg, matcherFor(&calls))
	assert.False(t, got.Admitted)
	for _, b := range calls {
		require.NotSame(t, cfg.Excluded, b, "exclusion matcher invoked without standing permission")
	}
}

func TestEvaluateIndividualExclusionSkipsGuildExclusion(t *testing.T) {
	t.Parallel()

	// Once the cheap individual exclusion fires, the expensive guild
	// exclusion check is skipped entirely.
	cfg := &Config{
		AuthorizedUsers: &Block{Individuals: []string{"42"}},
		Excluded: &Block{
			Individuals: []string{"42"},
			Guilds:      map[string]GuildRule{"g1": {Roles: []string{"banned"}}},
		},
	}

	var calls []*Block
	got := Evaluate("42", cfg, matcherFor(&calls))
	assert.Equal(t, Decision{}, got)
	for _, b := range calls {
		require.NotSame(t, cfg.Excluded, b)
	}
}

func TestNeedsGuilds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *Config
		want bool
	}{
		{"nil config", nil, false},
		{"empty config", &Config{}, false},
		{"individuals only", &Config{AuthorizedUsers: &Block{Individuals: []string{"1"}}}, false},
		{"authorized guilds", &Config{AuthorizedUsers: &Block{Guilds: map[string]GuildRule{"g": {}}}}, true},
		{"admin guilds", &Config{Admins: &Block{Guilds: map[string]GuildRule{"g": {}}}}, true},
		{"excluded guilds", &Config{Excluded: &Block{Guilds: map[string]GuildRule{"g": {}}}}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.NeedsGuilds())
		})
	}
}

func TestBlockHasIndividual(t *testing.T) {
	t.Parallel()

	var nilBlock *Block
	assert.False(t, nilBlock.HasIndividual("42"))
	assert.False(t, (&Block{Individuals: []string{"42"}}).HasIndividual(""))
	assert.True(t, (&Block{Individuals: []string{"1", "42"}}).HasIndividual("42"))
	assert.False(t, (&Block{Individuals: []string{"1"}}).HasIndividual("42"))
}
