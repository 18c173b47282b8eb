// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchestra-ai/maestro/internal/ledger"
)

func newStatsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage and savings from the ledger",
		Long: `Summarize recorded usage: total tokens, total cost, savings against the
premium baseline, and a per-model breakdown.

Examples:
  maestro stats             # last 30 days
  maestro stats --days 7    # last week`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return fmt.Errorf("usage persistence is disabled (ledger.enabled = false)")
			}

			path, err := cfg.LedgerPath()
			if err != nil {
				return err
			}
			store, err := ledger.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open usage ledger: %w", err)
			}
			defer store.Close()

			end := time.Now()
			start := end.AddDate(0, 0, -days)
			summary, err := store.Summarize(start, end)
			if err != nil {
				return fmt.Errorf("failed to summarize usage: %w", err)
			}

			fmt.Printf("Usage (last %d days)\n", days)
			fmt.Println("----------------------------------------")
			fmt.Printf("Requests:      %d\n", summary.Requests)
			fmt.Printf("Fallbacks:     %d\n", summary.FallbackCount)
			fmt.Printf("Tokens:        %d\n", summary.Tokens)
			fmt.Printf("Cost:          $%.4f\n", summary.TotalCost)
			fmt.Printf("Saved:         $%.4f\n", summary.TotalSavings)
			if len(summary.ByModel) > 0 {
				fmt.Println()
				fmt.Println("Per model:")
				for _, m := range summary.ByModel {
					fmt.Printf("  %-32s %8d req  %10d tok  $%.4f\n",
						m.ModelID, m.Requests, m.Tokens, m.Cost)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "number of days to summarize")

	return cmd
}
