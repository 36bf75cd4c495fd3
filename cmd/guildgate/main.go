// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the guildgate server.
package main

import (
	"os"

	"github.com/guildgate/guildgate/cmd/guildgate/app"
	"github.com/guildgate/guildgate/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
