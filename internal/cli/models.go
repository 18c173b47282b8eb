// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the routable model catalog",
		Long:  `Show the configured model catalog with prices and role bindings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return fmt.Errorf("invalid model catalog: %w", err)
			}

			// Invert the role bindings so each model shows its roles.
			rolesByModel := make(map[string][]string)
			for role, id := range cfg.Roles {
				rolesByModel[id] = append(rolesByModel[id], role)
			}
			for _, roles := range rolesByModel {
				sort.Strings(roles)
			}

			fmt.Printf("%-36s %12s  %s\n", "MODEL", "$/1M TOKENS", "ROLES")
			for _, m := range catalog.Models() {
				fmt.Printf("%-36s %12.2f  %s\n", m.ID, m.PricePerMillion, joinOrDash(rolesByModel[m.ID]))
			}
			fmt.Printf("\nBaseline price: $%.2f per 1M tokens\n", catalog.BaselinePrice())
			fmt.Printf("Fallback model: %s\n", cfg.Fallback.Model)
			return nil
		},
	}
}

func joinOrDash(roles []string) string {
	if len(roles) == 0 {
		return "-"
	}
	return strings.Join(roles, ", ")
}
