// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"sort"
)

// ============================================================================
// MODEL CATALOG
// ============================================================================

// ModelDescriptor describes one routable backend model.
type ModelDescriptor struct {
	// ID is the unique backend model identifier (e.g. "anthropic/claude-3-opus").
	ID string `json:"id" toml:"id"`
	// PricePerMillion is the blended price per million tokens in dollars.
	PricePerMillion float64 `json:"price_per_million" toml:"price_per_million"`
}

// Role names the designated slot a model fills in the routing rules.
type Role string

const (
	// RoleAccuracy is the highest-accuracy model (medical safety override).
	RoleAccuracy Role = "accuracy"
	// RoleBalanced is the balanced quality/cost model for high-tier work.
	RoleBalanced Role = "balanced"
	// RoleCode is the cheapest code-specialized model.
	RoleCode Role = "code"
	// RoleCreative is the creative-tuned model.
	RoleCreative Role = "creative"
	// RoleDefault is the fast/cheap default model.
	RoleDefault Role = "default"
)

// Catalog is the static table of routable models plus role bindings and the
// baseline reference price. Loaded once at process start and immutable for
// the process lifetime; safe for concurrent reads.
type Catalog struct {
	models   map[string]ModelDescriptor
	roles    map[Role]string
	baseline float64
}

// NewCatalog builds a catalog from model descriptors, role bindings, and the
// baseline reference price (the most expensive comparison model, used solely
// for savings computation). Every role must bind to a listed model.
func NewCatalog(models []ModelDescriptor, roles map[Role]string, baselinePrice float64) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog requires at least one model")
	}
	if baselinePrice < 0 {
		return nil, fmt.Errorf("baseline price must be >= 0, got %f", baselinePrice)
	}

	byID := make(map[string]ModelDescriptor, len(models))
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model with empty id")
		}
		if m.PricePerMillion < 0 {
			return nil, fmt.Errorf("model %s: price must be >= 0, got %f", m.ID, m.PricePerMillion)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %s", m.ID)
		}
		byID[m.ID] = m
	}

	bound := make(map[Role]string, len(roles))
	for role, id := range roles {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("role %s bound to unknown model %s", role, id)
		}
		bound[role] = id
	}
	for _, required := range []Role{RoleAccuracy, RoleBalanced, RoleCode, RoleCreative, RoleDefault} {
		if bound[required] == "" {
			return nil, fmt.Errorf("role %s is not bound", required)
		}
	}

	return &Catalog{models: byID, roles: bound, baseline: baselinePrice}, nil
}

// Lookup returns the descriptor for id, and whether it exists.
func (c *Catalog) Lookup(id string) (ModelDescriptor, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Price returns the price per million tokens for id. Unknown models fail
// with a configuration error rather than a silent zero.
func (c *Catalog) Price(id string) (float64, error) {
	m, ok := c.models[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnroutableModel, id)
	}
	return m.PricePerMillion, nil
}

// ModelForRole returns the model id bound to the given role.
func (c *Catalog) ModelForRole(role Role) string {
	return c.roles[role]
}

// BaselinePrice returns the baseline reference price per million tokens.
func (c *Catalog) BaselinePrice() float64 {
	return c.baseline
}

// Models returns all descriptors sorted by id.
func (c *Catalog) Models() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of routable models.
func (c *Catalog) Len() int {
	return len(c.models)
}

// ============================================================================
// DEFAULT CATALOG
// ============================================================================

// DefaultModels is the built-in model price table, used when the
// configuration file does not override it. Blended per-million pricing.
var DefaultModels = []ModelDescriptor{
	{ID: "anthropic/claude-3-opus", PricePerMillion: 30.00},
	{ID: "anthropic/claude-3.5-sonnet", PricePerMillion: 9.00},
	{ID: "openai/gpt-4o", PricePerMillion: 7.50},
	{ID: "deepseek/deepseek-coder", PricePerMillion: 0.25},
	{ID: "anthropic/claude-3-haiku", PricePerMillion: 0.80},
}

// DefaultRoles is the built-in role binding for DefaultModels.
var DefaultRoles = map[Role]string{
	RoleAccuracy: "anthropic/claude-3-opus",
	RoleBalanced: "anthropic/claude-3.5-sonnet",
	RoleCode:     "deepseek/deepseek-coder",
	RoleCreative: "openai/gpt-4o",
	RoleDefault:  "anthropic/claude-3-haiku",
}

// DefaultBaselinePrice is the built-in baseline reference price, matching
// the most expensive model in DefaultModels.
const DefaultBaselinePrice = 30.00

// DefaultCatalog returns a catalog built from the built-in tables.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultModels, DefaultRoles, DefaultBaselinePrice)
	if err != nil {
		// Built-in tables are validated by tests; this cannot happen at runtime.
		panic(err)
	}
	return c
}
