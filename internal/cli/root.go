// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the maestro command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orchestra-ai/maestro/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// cfgFile holds the --config flag value, shared by all subcommands.
var cfgFile string

// Execute runs the root command. It is the program entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maestro",
		Short: "Persona-aware model routing and cost accounting",
		Long: `Maestro routes assistant messages to the cheapest model that can
handle them, applies persona- and mode-specific generation settings,
and tracks the cost saved against always using the premium model.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.maestro/config.toml)")

	cmd.AddCommand(
		newAskCmd(),
		newStatsCmd(),
		newModelsCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show maestro version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("maestro v%s (%s)\n", Version, GitCommit)
		},
	}
}

// loadConfig loads the effective configuration, honoring --config.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromPath(cfgFile)
	}
	return config.Load()
}
