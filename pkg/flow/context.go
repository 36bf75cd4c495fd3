// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"

	"github.com/guildgate/guildgate/pkg/store"
)

type recordContextKey struct{}

// withRecord attaches the session's authorization record to the context.
func withRecord(ctx context.Context, rec *store.Record) context.Context {
	return context.WithValue(ctx, recordContextKey{}, rec)
}

// RecordFromContext retrieves the authorization record attached by
// RequireAuth. Handlers behind the middleware use it to read the admitted
// identity and the admin flag.
func RecordFromContext(ctx context.Context) (*store.Record, bool) {
	rec, ok := ctx.Value(recordContextKey{}).(*store.Record)
	return rec, ok
}
