// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for maestro.
//
// Configuration is TOML with sensible built-in defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.maestro/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/orchestra-ai/maestro/internal/router"
	"github.com/orchestra-ai/maestro/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete maestro configuration.
type Config struct {
	// Version is the config schema version, used for migrations.
	Version string `toml:"version"`

	// Routing configuration: persona temperatures, mode adjustments, token limits.
	Routing RoutingConfig `toml:"routing"`

	// Models is the routable model catalog with per-model pricing.
	Models []ModelEntry `toml:"models"`

	// Roles binds routing roles (accuracy, balanced, code, creative, default)
	// to model ids from the Models table.
	Roles map[string]string `toml:"roles"`

	// Backend (OpenRouter) configuration.
	Backend BackendConfig `toml:"backend"`

	// Fallback configuration for the degraded direct path.
	Fallback FallbackConfig `toml:"fallback"`

	// Ledger (usage persistence) configuration.
	Ledger LedgerConfig `toml:"ledger"`
}

// RoutingConfig contains routing table overrides. Empty maps fall back to the
// built-in tables.
type RoutingConfig struct {
	// PersonaTemps maps persona name -> base temperature.
	PersonaTemps map[string]float64 `toml:"persona_temps"`
	// ModeDeltas maps mode name -> temperature adjustment.
	ModeDeltas map[string]float64 `toml:"mode_deltas"`
	// TokenLimits maps mode name -> max response tokens.
	TokenLimits map[string]int `toml:"token_limits"`
	// DefaultTokenLimit is used for modes absent from TokenLimits.
	DefaultTokenLimit int `toml:"default_token_limit"`
	// BaselinePrice is the reference price per million tokens that savings
	// are computed against.
	BaselinePrice float64 `toml:"baseline_price"`
}

// ModelEntry is one row of the model catalog.
type ModelEntry struct {
	// ID is the backend model identifier.
	ID string `toml:"id"`
	// PricePerMillion is the blended price per million tokens in dollars.
	PricePerMillion float64 `toml:"price_per_million"`
}

// BackendConfig contains OpenRouter backend configuration.
type BackendConfig struct {
	// OpenRouterKey is the OpenRouter API key.
	OpenRouterKey string `toml:"openrouter_key"`
	// BaseURL overrides the OpenRouter API base URL (empty = default).
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-call timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is the per-call retry limit for retryable failures.
	MaxRetries int `toml:"max_retries"`
	// RequestsPerSecond caps the outbound request rate (0 = default).
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// FallbackConfig contains the degraded direct-path configuration.
type FallbackConfig struct {
	// Model is the fixed model used when routing or the routed call fails.
	Model string `toml:"model"`
}

// LedgerConfig contains usage-ledger persistence configuration.
type LedgerConfig struct {
	// Enabled turns usage persistence on or off.
	Enabled bool `toml:"enabled"`
	// Path is the SQLite database path (empty = ~/.maestro/usage.db).
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	models := make([]ModelEntry, 0, len(router.DefaultModels))
	for _, m := range router.DefaultModels {
		models = append(models, ModelEntry{ID: m.ID, PricePerMillion: m.PricePerMillion})
	}

	roles := make(map[string]string, len(router.DefaultRoles))
	for role, id := range router.DefaultRoles {
		roles[string(role)] = id
	}

	personaTemps := make(map[string]float64, len(router.DefaultPersonaTemps))
	for p, t := range router.DefaultPersonaTemps {
		personaTemps[string(p)] = t
	}
	modeDeltas := make(map[string]float64, len(router.DefaultModeDeltas))
	for m, d := range router.DefaultModeDeltas {
		modeDeltas[string(m)] = d
	}
	tokenLimits := make(map[string]int, len(router.DefaultModeTokenLimits))
	for m, n := range router.DefaultModeTokenLimits {
		tokenLimits[string(m)] = n
	}

	return &Config{
		Version: "1.0",
		Routing: RoutingConfig{
			PersonaTemps:      personaTemps,
			ModeDeltas:        modeDeltas,
			TokenLimits:       tokenLimits,
			DefaultTokenLimit: router.DefaultTokenLimit,
			BaselinePrice:     router.DefaultBaselinePrice,
		},
		Models: models,
		Roles:  roles,
		Backend: BackendConfig{
			TimeoutSecs:       60,
			MaxRetries:        3,
			RequestsPerSecond: 5,
		},
		Fallback: FallbackConfig{
			Model: "anthropic/claude-3-haiku",
		},
		Ledger: LedgerConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// CONFIG PATHS
// =============================================================================

// ConfigDir returns the maestro configuration directory (~/.maestro).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".maestro"), nil
}

// ConfigPath returns the full path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LedgerPath returns the effective usage database path for this config.
func (c *Config) LedgerPath() (string, error) {
	if c.Ledger.Path != "" {
		return c.Ledger.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "usage.db"), nil
}

// EnsureConfigDir creates the configuration directory if it does not exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	// SECURITY: Config dir holds the API key; keep it owner-only.
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ensureSecurePermissions checks the file permissions and tightens them to
// 0600 if they are broader. The config file can contain an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to tighten permissions: %w", err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.maestro/config.toml, falling back to
// built-in defaults when no file exists. Environment overrides are applied
// last, then the result is validated.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Log warning but don't fail - permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Used by the --config flag.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills in any missing values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if len(c.Routing.PersonaTemps) == 0 {
		c.Routing.PersonaTemps = defaults.Routing.PersonaTemps
	}
	if len(c.Routing.ModeDeltas) == 0 {
		c.Routing.ModeDeltas = defaults.Routing.ModeDeltas
	}
	if len(c.Routing.TokenLimits) == 0 {
		c.Routing.TokenLimits = defaults.Routing.TokenLimits
	}
	if c.Routing.DefaultTokenLimit == 0 {
		c.Routing.DefaultTokenLimit = defaults.Routing.DefaultTokenLimit
	}
	// BaselinePrice is deliberately not defaulted here: zero is a valid
	// configured value (savings reporting off). Load decodes over Default,
	// so an absent key already keeps the built-in price.
	if len(c.Models) == 0 {
		c.Models = defaults.Models
	}
	if len(c.Roles) == 0 {
		c.Roles = defaults.Roles
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}
	if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = defaults.Backend.MaxRetries
	}
	if c.Backend.RequestsPerSecond == 0 {
		c.Backend.RequestsPerSecond = defaults.Backend.RequestsPerSecond
	}
	if c.Fallback.Model == "" {
		c.Fallback.Model = defaults.Fallback.Model
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# maestro configuration file")
	fmt.Fprintln(&buf, "# Generated by maestro - edit with care")
	fmt.Fprintln(&buf, "")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// ==========================================================================
	// Routing Settings Validation
	// ==========================================================================

	for name, temp := range c.Routing.PersonaTemps {
		if temp < 0 || temp > 2 {
			errs = append(errs, ValidationError{
				Field:   "routing.persona_temps." + name,
				Message: fmt.Sprintf("temperature must be between 0 and 2, got %g", temp),
			})
		}
	}

	for name := range c.Routing.ModeDeltas {
		if !router.Mode(name).Valid() {
			errs = append(errs, ValidationError{
				Field:   "routing.mode_deltas." + name,
				Message: fmt.Sprintf("unknown mode '%s', must be one of: %s", name, knownModeList()),
			})
		}
	}

	for name, limit := range c.Routing.TokenLimits {
		if !router.Mode(name).Valid() {
			errs = append(errs, ValidationError{
				Field:   "routing.token_limits." + name,
				Message: fmt.Sprintf("unknown mode '%s', must be one of: %s", name, knownModeList()),
			})
		}
		if limit <= 0 {
			errs = append(errs, ValidationError{
				Field:   "routing.token_limits." + name,
				Message: fmt.Sprintf("token limit must be positive, got %d", limit),
			})
		}
	}

	if c.Routing.DefaultTokenLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "routing.default_token_limit",
			Message: fmt.Sprintf("must be positive, got %d", c.Routing.DefaultTokenLimit),
		})
	}

	if c.Routing.BaselinePrice < 0 {
		errs = append(errs, ValidationError{
			Field:   "routing.baseline_price",
			Message: fmt.Sprintf("cannot be negative, got %g", c.Routing.BaselinePrice),
		})
	}

	// ==========================================================================
	// Model Catalog Validation
	// ==========================================================================

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("models[%d].id", i),
				Message: "model id cannot be empty",
			})
			continue
		}
		if seen[m.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("models[%d].id", i),
				Message: fmt.Sprintf("duplicate model id '%s'", m.ID),
			})
		}
		seen[m.ID] = true
		if m.PricePerMillion < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("models[%d].price_per_million", i),
				Message: fmt.Sprintf("price cannot be negative, got %g", m.PricePerMillion),
			})
		}
	}

	for role, id := range c.Roles {
		switch router.Role(role) {
		case router.RoleAccuracy, router.RoleBalanced, router.RoleCode, router.RoleCreative, router.RoleDefault:
		default:
			errs = append(errs, ValidationError{
				Field:   "roles." + role,
				Message: fmt.Sprintf("unknown role '%s', must be one of: accuracy, balanced, code, creative, default", role),
			})
			continue
		}
		if !seen[id] {
			errs = append(errs, ValidationError{
				Field:   "roles." + role,
				Message: fmt.Sprintf("model '%s' is not in the models table", id),
			})
		}
	}

	// ==========================================================================
	// Backend Settings Validation
	// ==========================================================================

	if c.Backend.BaseURL != "" {
		if _, err := url.Parse(c.Backend.BaseURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "backend.base_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}
	if c.Backend.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: fmt.Sprintf("cannot be negative, got %d", c.Backend.TimeoutSecs),
		})
	}
	if c.Backend.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.max_retries",
			Message: fmt.Sprintf("cannot be negative, got %d", c.Backend.MaxRetries),
		})
	}
	if c.Backend.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.requests_per_second",
			Message: fmt.Sprintf("cannot be negative, got %g", c.Backend.RequestsPerSecond),
		})
	}

	if c.Fallback.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "fallback.model",
			Message: "fallback model cannot be empty",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func knownModeList() string {
	modes := router.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - MAESTRO_OPENROUTER_KEY: overrides backend.openrouter_key
//   - MAESTRO_BASE_URL: overrides backend.base_url
//   - MAESTRO_TIMEOUT_SECS: overrides backend.timeout_secs
//   - MAESTRO_FALLBACK_MODEL: overrides fallback.model
//   - MAESTRO_LEDGER_PATH: overrides ledger.path
//   - MAESTRO_NO_LEDGER: set to "1" or "true" to disable usage persistence
func (c *Config) ApplyEnvOverrides() {
	// MAESTRO_OPENROUTER_KEY
	if key := os.Getenv("MAESTRO_OPENROUTER_KEY"); key != "" {
		c.Backend.OpenRouterKey = key
	}

	// MAESTRO_BASE_URL
	if base := os.Getenv("MAESTRO_BASE_URL"); base != "" {
		c.Backend.BaseURL = base
	}

	// MAESTRO_TIMEOUT_SECS
	if secs := os.Getenv("MAESTRO_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			c.Backend.TimeoutSecs = n
		}
	}

	// MAESTRO_FALLBACK_MODEL
	if model := os.Getenv("MAESTRO_FALLBACK_MODEL"); model != "" {
		c.Fallback.Model = model
	}

	// MAESTRO_LEDGER_PATH
	if path := os.Getenv("MAESTRO_LEDGER_PATH"); path != "" {
		c.Ledger.Path = path
	}

	// MAESTRO_NO_LEDGER
	if off := os.Getenv("MAESTRO_NO_LEDGER"); off != "" {
		if off == "1" || strings.EqualFold(off, "true") {
			c.Ledger.Enabled = false
		}
	}
}

// =============================================================================
// ROUTING CONSTRUCTORS
// =============================================================================

// Catalog builds a router catalog from the configured model and role tables.
func (c *Config) Catalog() (*router.Catalog, error) {
	models := make([]router.ModelDescriptor, len(c.Models))
	for i, m := range c.Models {
		models[i] = router.ModelDescriptor{ID: m.ID, PricePerMillion: m.PricePerMillion}
	}
	roles := make(map[router.Role]string, len(c.Roles))
	for role, id := range c.Roles {
		roles[router.Role(role)] = id
	}
	return router.NewCatalog(models, roles, c.Routing.BaselinePrice)
}

// RouterOptions builds router options from the configured routing tables.
func (c *Config) RouterOptions() router.Options {
	opts := router.Options{DefaultLimit: c.Routing.DefaultTokenLimit}
	if len(c.Routing.PersonaTemps) > 0 {
		opts.PersonaTemps = make(map[router.Persona]float64, len(c.Routing.PersonaTemps))
		for name, t := range c.Routing.PersonaTemps {
			opts.PersonaTemps[router.Persona(name)] = t
		}
	}
	if len(c.Routing.ModeDeltas) > 0 {
		opts.ModeDeltas = make(map[router.Mode]float64, len(c.Routing.ModeDeltas))
		for name, d := range c.Routing.ModeDeltas {
			opts.ModeDeltas[router.Mode(name)] = d
		}
	}
	if len(c.Routing.TokenLimits) > 0 {
		opts.TokenLimits = make(map[router.Mode]int, len(c.Routing.TokenLimits))
		for name, n := range c.Routing.TokenLimits {
			opts.TokenLimits[router.Mode(name)] = n
		}
	}
	return opts
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "backend.timeout_secs").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "fallback.model").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	// String input gets converted to the field's kind
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}
