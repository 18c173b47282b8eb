// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchestra-ai/maestro/internal/accounting"
	"github.com/orchestra-ai/maestro/internal/backend"
	"github.com/orchestra-ai/maestro/internal/config"
	"github.com/orchestra-ai/maestro/internal/dispatch"
	"github.com/orchestra-ai/maestro/internal/ledger"
	"github.com/orchestra-ai/maestro/internal/router"
)

func newAskCmd() *cobra.Command {
	var (
		persona  string
		mode     string
		showCost bool
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a message through the router",
		Long: `Send a single message through the routing pipeline and print the
response. The message is classified, routed to a model based on the
persona and mode, and the usage is recorded in the session ledger.

Examples:
  maestro ask "hi there"
  maestro ask --persona karen --mode medical "dosage limits for ibuprofen?"
  maestro ask --mode coding "write a quicksort in Go" --cost`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			p := router.Persona(strings.ToLower(persona))
			m := router.Mode(strings.ToLower(mode))
			message := strings.Join(args, " ")

			d, cleanup, err := buildDispatcher(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := d.Send(cmd.Context(), p, m, message)
			if err != nil {
				if errors.Is(err, backend.ErrNotConfigured) {
					return fmt.Errorf("no API key configured; set MAESTRO_OPENROUTER_KEY or backend.openrouter_key in the config file")
				}
				return err
			}

			fmt.Println(result.Content)

			if showCost {
				fmt.Fprintln(os.Stderr)
				fmt.Fprintln(os.Stderr, result.Usage.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&persona, "persona", string(router.PersonaCherry), "persona (cherry, sophia, karen)")
	cmd.Flags().StringVar(&mode, "mode", string(router.ModeCasual), "conversation mode (casual, analysis, strategy, creative, writing, medical, coding, development)")
	cmd.Flags().BoolVar(&showCost, "cost", false, "print the usage record after the response")

	return cmd
}

// buildDispatcher wires the full pipeline from a loaded config. The returned
// cleanup closes the ledger (a no-op when persistence is disabled).
func buildDispatcher(cfg *config.Config) (*dispatch.Dispatcher, func(), error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid model catalog: %w", err)
	}

	r := router.NewWithOptions(catalog, cfg.RouterOptions())
	acct := accounting.New(catalog)

	client := backend.NewClient(cfg.Backend.OpenRouterKey).
		WithMaxRetries(cfg.Backend.MaxRetries)
	if cfg.Backend.BaseURL != "" {
		client = client.WithBaseURL(cfg.Backend.BaseURL)
	}
	if cfg.Backend.RequestsPerSecond > 0 {
		client = client.WithRateLimit(cfg.Backend.RequestsPerSecond, 1)
	}

	d := dispatch.New(r, acct, client, backend.NewDirect(client, cfg.Fallback.Model)).
		WithCallTimeout(time.Duration(cfg.Backend.TimeoutSecs) * time.Second)

	cleanup := func() {}
	if cfg.Ledger.Enabled {
		path, err := cfg.LedgerPath()
		if err != nil {
			return nil, nil, err
		}
		store, err := ledger.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open usage ledger: %w", err)
		}
		d = d.WithRecorder(store)
		cleanup = func() { _ = store.Close() }
	}

	return d, cleanup, nil
}
