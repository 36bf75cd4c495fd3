// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package guilds

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildgate/guildgate/pkg/provider"
	"github.com/guildgate/guildgate/pkg/rules"
)

// fakeAPI implements API in memory and records which guilds were queried.
type fakeAPI struct {
	guilds       []provider.Guild
	guildsErr    error
	members      map[string]*provider.Member
	memberErrs   map[string]error
	guildFetches int
	memberCalls  []string
}

func (f *fakeAPI) FetchGuilds(_ context.Context, _ *provider.Token) ([]provider.Guild, error) {
	f.guildFetches++
	return f.guilds, f.guildsErr
}

func (f *fakeAPI) FetchGuildMember(_ context.Context, _ *provider.Token, guildID string) (*provider.Member, error) {
	f.memberCalls = append(f.memberCalls, guildID)
	if err, ok := f.memberErrs[guildID]; ok {
		return nil, err
	}
	member, ok := f.members[guildID]
	if !ok {
		return nil, fmt.Errorf("%w: guild %s", provider.ErrNoMembership, guildID)
	}
	return member, nil
}

var testToken = &provider.Token{Type: "Bearer", Access: "tok"}

func TestResolveSkipsFetchWhenNoGuildRules(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{guilds: []provider.Guild{{ID: "g1"}}}
	r := NewResolver(api)

	cfg := &rules.Config{AuthorizedUsers: &rules.Block{Individuals: []string{"42"}}}
	memberships, err := r.Resolve(context.Background(), testToken, cfg)
	require.NoError(t, err)
	assert.Empty(t, memberships)
	assert.Zero(t, api.guildFetches)
}

func TestResolveFetchesWhenGuildsReferenced(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{guilds: []provider.Guild{{ID: "g1"}, {ID: "g2"}}}
	r := NewResolver(api)

	cfg := &rules.Config{Admins: &rules.Block{Guilds: map[string]rules.GuildRule{"g1": {Roles: []string{"r1"}}}}}
	memberships, err := r.Resolve(context.Background(), testToken, cfg)
	require.NoError(t, err)
	assert.Len(t, memberships, 2)
	assert.Equal(t, 1, api.guildFetches)
}

func TestResolvePropagatesGuildListError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{guildsErr: errors.New("boom")}
	r := NewResolver(api)

	cfg := &rules.Config{Excluded: &rules.Block{Guilds: map[string]rules.GuildRule{"g": {}}}}
	_, err := r.Resolve(context.Background(), testToken, cfg)
	assert.Error(t, err)
}

func TestHasMatchingRole(t *testing.T) {
	t.Parallel()

	memberships := []provider.Guild{{ID: "g1"}, {ID: "g2"}, {ID: "g3"}}

	tests := []struct {
		name        string
		block       *rules.Block
		members     map[string]*provider.Member
		memberErrs  map[string]error
		want        bool
		wantQueried []string
	}{
		{
			name: "nil block never queries",
			want: false,
		},
		{
			name:  "block without guilds never queries",
			block: &rules.Block{Individuals: []string{"42"}},
			want:  false,
		},
		{
			name:    "matching role in first referenced guild",
			block:   &rules.Block{Guilds: map[string]rules.GuildRule{"g1": {Roles: []string{"r1"}}}},
			members: map[string]*provider.Member{"g1": {Roles: []string{"r9", "r1"}}},
			want:    true,

			wantQueried: []string{"g1"},
		},
		{
			name: "short-circuits after first match",
			block: &rules.Block{Guilds: map[string]rules.GuildRule{
				"g1": {Roles: []string{"r1"}},
				"g3": {Roles: []string{"r3"}},
			}},
			members: map[string]*provider.Member{
				"g1": {Roles: []string{"r1"}},
				"g3": {Roles: []string{"r3"}},
			},
			want:        true,
			wantQueried: []string{"g1"},
		},
		{
			name:    "unreferenced memberships are not queried",
			block:   &rules.Block{Guilds: map[string]rules.GuildRule{"g2": {Roles: []string{"r2"}}}},
			members: map[string]*provider.Member{"g2": {Roles: []string{"r7"}}},
			want:    false,

			wantQueried: []string{"g2"},
		},
		{
			name: "failed member lookup skips to next guild",
			block: &rules.Block{Guilds: map[string]rules.GuildRule{
				"g1": {Roles: []string{"r1"}},
				"g2": {Roles: []string{"r2"}},
			}},
			memberErrs:  map[string]error{"g1": provider.ErrNoMembership},
			members:     map[string]*provider.Member{"g2": {Roles: []string{"r2"}}},
			want:        true,
			wantQueried: []string{"g1", "g2"},
		},
		{
			name:  "guild rule without roles is ignored",
			block: &rules.Block{Guilds: map[string]rules.GuildRule{"g1": {}}},
			want:  false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := &fakeAPI{members: tt.members, memberErrs: tt.memberErrs}
			r := NewResolver(api)

			got := r.HasMatchingRole(context.Background(), testToken, tt.block, memberships)
			assert.Equal(t, tt.want, got)
			if tt.wantQueried != nil {
				assert.Equal(t, tt.wantQueried, api.memberCalls)
			} else {
				assert.Empty(t, api.memberCalls)
			}
		})
	}
}

func TestMatcherBindsTokenAndMemberships(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{members: map[string]*provider.Member{"g1": {Roles: []string{"r1"}}}}
	r := NewResolver(api)

	match := r.Matcher(context.Background(), testToken, []provider.Guild{{ID: "g1"}})
	assert.True(t, match(&rules.Block{Guilds: map[string]rules.GuildRule{"g1": {Roles: []string{"r1"}}}}))
	assert.False(t, match(nil))
}
