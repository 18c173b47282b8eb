// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestra-ai/maestro/internal/router"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	// The default tables must produce a working catalog and router.
	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	require.Equal(t, len(router.DefaultModels), catalog.Len())
	require.InDelta(t, router.DefaultBaselinePrice, catalog.BaselinePrice(), 1e-9)
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = "1.0"

[routing]
default_token_limit = 1234
baseline_price = 25.0

[backend]
timeout_secs = 30

[fallback]
model = "custom/fallback"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, 1234, cfg.Routing.DefaultTokenLimit)
	require.InDelta(t, 25.0, cfg.Routing.BaselinePrice, 1e-9)
	require.Equal(t, 30, cfg.Backend.TimeoutSecs)
	require.Equal(t, "custom/fallback", cfg.Fallback.Model)

	// Unspecified sections keep their defaults.
	require.NotEmpty(t, cfg.Models)
	require.NotEmpty(t, cfg.Roles)
	require.Equal(t, 3, cfg.Backend.MaxRetries)
}

// TestLoadZeroBaselinePrice verifies an explicit zero baseline survives
// loading: zero is a valid price, not an unset marker.
func TestLoadZeroBaselinePrice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[routing]
baseline_price = 0.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Zero(t, cfg.Routing.BaselinePrice)

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	require.Zero(t, catalog.BaselinePrice())
}

func TestLoadFromPathInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[[models]]
id = "only/model"
price_per_million = -5.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MAESTRO_OPENROUTER_KEY", "env-key")
	t.Setenv("MAESTRO_TIMEOUT_SECS", "15")
	t.Setenv("MAESTRO_FALLBACK_MODEL", "env/fallback")
	t.Setenv("MAESTRO_NO_LEDGER", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	require.Equal(t, "env-key", cfg.Backend.OpenRouterKey)
	require.Equal(t, 15, cfg.Backend.TimeoutSecs)
	require.Equal(t, "env/fallback", cfg.Fallback.Model)
	require.False(t, cfg.Ledger.Enabled)
}

func TestEnvOverrideIgnoresBadTimeout(t *testing.T) {
	t.Setenv("MAESTRO_TIMEOUT_SECS", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	require.Equal(t, 60, cfg.Backend.TimeoutSecs)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{
			name:   "persona_temp_out_of_range",
			mutate: func(cfg *Config) { cfg.Routing.PersonaTemps["cherry"] = 3.0 },
		},
		{
			name:   "unknown_mode_delta",
			mutate: func(cfg *Config) { cfg.Routing.ModeDeltas["turbo"] = 0.1 },
		},
		{
			name:   "nonpositive_token_limit",
			mutate: func(cfg *Config) { cfg.Routing.TokenLimits["casual"] = 0 },
		},
		{
			name:   "negative_baseline",
			mutate: func(cfg *Config) { cfg.Routing.BaselinePrice = -1 },
		},
		{
			name:   "duplicate_model",
			mutate: func(cfg *Config) { cfg.Models = append(cfg.Models, cfg.Models[0]) },
		},
		{
			name:   "role_to_unknown_model",
			mutate: func(cfg *Config) { cfg.Roles["default"] = "ghost/model" },
		},
		{
			name:   "unknown_role",
			mutate: func(cfg *Config) { cfg.Roles["wizard"] = cfg.Models[0].ID },
		},
		{
			name:   "empty_fallback_model",
			mutate: func(cfg *Config) { cfg.Fallback.Model = "" },
		},
		{
			name:   "negative_retries",
			mutate: func(cfg *Config) { cfg.Backend.MaxRetries = -1 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			require.NotEmpty(t, verrs)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Fallback.Model = "roundtrip/model"
	cfg.Backend.TimeoutSecs = 42
	require.NoError(t, SaveTOML(cfg, path))

	// Saved with owner-only permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "roundtrip/model", loaded.Fallback.Model)
	require.Equal(t, 42, loaded.Backend.TimeoutSecs)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("fallback.model", "set/model"))
	v, err := cfg.Get("fallback.model")
	require.NoError(t, err)
	require.Equal(t, "set/model", v)

	require.NoError(t, cfg.Set("backend.timeout_secs", "90"))
	v, err = cfg.Get("backend.timeout_secs")
	require.NoError(t, err)
	require.Equal(t, 90, v)

	_, err = cfg.Get("nonsense.key")
	require.Error(t, err)
	require.Error(t, cfg.Set("nonsense.key", "x"))
}

func TestRouterOptions(t *testing.T) {
	cfg := Default()
	cfg.Routing.PersonaTemps = map[string]float64{"cherry": 0.9}
	cfg.Routing.TokenLimits = map[string]int{"casual": 500}
	cfg.Routing.DefaultTokenLimit = 777

	opts := cfg.RouterOptions()
	require.InDelta(t, 0.9, opts.PersonaTemps[router.PersonaCherry], 1e-9)
	require.Equal(t, 500, opts.TokenLimits[router.ModeCasual])
	require.Equal(t, 777, opts.DefaultLimit)
}
