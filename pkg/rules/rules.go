// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package rules implements the layered admission rule engine.
//
// A rule configuration carries three independent blocks: authorized users,
// admins, and exclusions. Each block may list individual user IDs and/or
// per-guild role requirements. Evaluation follows a fixed precedence where
// exclusions always win.
package rules

import "slices"

// GuildRule lists the roles that satisfy a block within one guild.
type GuildRule struct {
	Roles []string `mapstructure:"roles" json:"roles,omitempty"`
}

// Block is one admission rule block, expressed as individual user IDs
// and/or guild-role criteria. A nil or empty block contributes nothing.
type Block struct {
	Individuals []string             `mapstructure:"individuals" json:"individuals,omitempty"`
	Guilds      map[string]GuildRule `mapstructure:"guilds" json:"guilds,omitempty"`
}

// HasIndividual reports whether the block lists the given user ID.
func (b *Block) HasIndividual(userID string) bool {
	if b == nil || userID == "" {
		return false
	}
	return slices.Contains(b.Individuals, userID)
}

// HasGuilds reports whether the block declares any guild-role criteria.
func (b *Block) HasGuilds() bool {
	return b != nil && len(b.Guilds) > 0
}

// Config is the full rule configuration. Absent blocks contribute nothing
// to admission.
type Config struct {
	AuthorizedUsers *Block `mapstructure:"authorizedUsers" json:"authorizedUsers,omitempty"`
	Admins          *Block `mapstructure:"admins" json:"admins,omitempty"`
	Excluded        *Block `mapstructure:"excluded" json:"excluded,omitempty"`
}

// NeedsGuilds reports whether any block declares guild-role criteria.
// When false, no guild membership data needs to be fetched at all.
func (c *Config) NeedsGuilds() bool {
	if c == nil {
		return false
	}
	return c.AuthorizedUsers.HasGuilds() || c.Admins.HasGuilds() || c.Excluded.HasGuilds()
}

// GuildMatcher reports whether the caller holds at least one of the roles
// a block requires in any guild the caller is a member of. Implementations
// may perform network calls; they must treat per-guild failures as
// "no matching role" rather than erroring out.
type GuildMatcher func(block *Block) bool

// Decision is the outcome of rule evaluation.
type Decision struct {
	// Admitted reports whether the caller may proceed at all.
	Admitted bool

	// Admin reports whether the caller holds admin rights.
	// Admin is never true unless Admitted is true.
	Admin bool
}

// Evaluate applies the rule blocks to a caller in fixed precedence order:
//
//  1. authorized users grant permission (individuals, then guild roles)
//  2. admins grant admin and implicitly permission
//  3. an individual exclusion revokes both
//  4. a guild-role exclusion revokes both, but is only evaluated when the
//     caller has standing permission to revoke (guild-role checks cost one
//     provider call per referenced guild; individual checks are free and
//     always run)
//  5. admission additionally requires a non-empty user ID
//
// Evaluate itself performs no I/O; guild-role lookups are delegated to the
// supplied matcher, which is invoked lazily so that callers without any
// standing permission never trigger exclusion-side guild fetches.
func Evaluate(userID string, cfg *Config, guildMatch GuildMatcher) Decision {
	if cfg == nil {
		cfg = &Config{}
	}
	if guildMatch == nil {
		guildMatch = func(*Block) bool { return false }
	}

	permission := cfg.AuthorizedUsers.HasIndividual(userID)
	if !permission && guildMatch(cfg.AuthorizedUsers) {
		permission = true
	}

	admin := cfg.Admins.HasIndividual(userID)
	if !admin && guildMatch(cfg.Admins) {
		admin = true
	}
	if admin {
		permission = true
	}

	if cfg.Excluded.HasIndividual(userID) {
		permission, admin = false, false
	} else if (permission || admin) && guildMatch(cfg.Excluded) {
		permission, admin = false, false
	}

	admitted := userID != "" && (permission || admin)
	return Decision{Admitted: admitted, Admin: admin && admitted}
}
