// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package guilds resolves guild memberships and role matches for a login
// attempt. Memberships are fetched only when the active rule configuration
// actually references guilds, and per-guild role lookups happen lazily
// while matching.
package guilds

import (
	"context"
	"slices"

	"github.com/guildgate/guildgate/pkg/logger"
	"github.com/guildgate/guildgate/pkg/provider"
	"github.com/guildgate/guildgate/pkg/rules"
)

// API is the subset of the provider client the resolver needs.
type API interface {
	FetchGuilds(ctx context.Context, token *provider.Token) ([]provider.Guild, error)
	FetchGuildMember(ctx context.Context, token *provider.Token, guildID string) (*provider.Member, error)
}

// Resolver fetches guild data on demand for rule evaluation.
type Resolver struct {
	api API
}

// NewResolver creates a resolver backed by the given provider API.
func NewResolver(api API) *Resolver {
	return &Resolver{api: api}
}

// Resolve returns the caller's guild memberships, or an empty sequence
// without any provider call when the rule configuration references no
// guilds at all.
func (r *Resolver) Resolve(ctx context.Context, token *provider.Token, cfg *rules.Config) ([]provider.Guild, error) {
	if !cfg.NeedsGuilds() {
		return nil, nil
	}
	return r.api.FetchGuilds(ctx, token)
}

// Matcher binds the token and membership list into a rules.GuildMatcher
// for one evaluation pass.
func (r *Resolver) Matcher(ctx context.Context, token *provider.Token, memberships []provider.Guild) rules.GuildMatcher {
	return func(block *rules.Block) bool {
		return r.HasMatchingRole(ctx, token, block, memberships)
	}
}

// HasMatchingRole reports whether the caller holds at least one of the
// roles the block requires in any guild they are a member of. Memberships
// are checked in provider order and the first match short-circuits. A
// failed member lookup counts as "no roles" for that guild only.
func (r *Resolver) HasMatchingRole(
	ctx context.Context,
	token *provider.Token,
	block *rules.Block,
	memberships []provider.Guild,
) bool {
	if !block.HasGuilds() {
		return false
	}

	for _, guild := range memberships {
		rule, ok := block.Guilds[guild.ID]
		if !ok || len(rule.Roles) == 0 {
			continue
		}

		member, err := r.api.FetchGuildMember(ctx, token, guild.ID)
		if err != nil {
			logger.Debugw("skipping guild after member lookup failure",
				"guild_id", guild.ID, "error", err)
			continue
		}

		for _, role := range member.Roles {
			if slices.Contains(rule.Roles, role) {
				return true
			}
		}
	}
	return false
}
