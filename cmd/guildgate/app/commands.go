// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package app defines the guildgate command tree.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guildgate/guildgate/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "guildgate",
	Short: "Guild-based OAuth login gate",
	Long: `Guildgate fronts a web application with an OAuth authorization-code
login flow and admits users by identity or guild-role rules.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	return rootCmd
}
