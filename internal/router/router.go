// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"log"
)

// ============================================================================
// TEMPERATURE AND TOKEN TABLES
// ============================================================================

// Temperature bounds for generation parameters.
const (
	MinTemperature = 0.1
	MaxTemperature = 1.0
)

// DefaultPersonaTemps is the built-in per-persona base temperature table.
// More deterministic personas carry lower base values.
var DefaultPersonaTemps = map[Persona]float64{
	PersonaCherry: 0.8,
	PersonaSophia: 0.6,
	PersonaKaren:  0.4,
}

// DefaultModeDeltas is the built-in mode temperature adjustment table.
// Creative work warms the sampling; precision-critical modes cool it.
var DefaultModeDeltas = map[Mode]float64{
	ModeCasual:      0.0,
	ModeAnalysis:    -0.2,
	ModeStrategy:    -0.1,
	ModeCreative:    0.2,
	ModeWriting:     0.1,
	ModeMedical:     -0.2,
	ModeCoding:      -0.2,
	ModeDevelopment: -0.1,
}

// DefaultModeTokenLimits is the built-in mode -> max token table.
var DefaultModeTokenLimits = map[Mode]int{
	ModeCasual:      800,
	ModeAnalysis:    3000,
	ModeStrategy:    3000,
	ModeCreative:    1500,
	ModeWriting:     1500,
	ModeMedical:     1200,
	ModeCoding:      2000,
	ModeDevelopment: 2000,
}

// DefaultTokenLimit is the permissive fallback when a mode has no entry in
// the token table. Unknown modes here are not an error, unlike the
// classifier's strict mode validation.
const DefaultTokenLimit = 1000

// ============================================================================
// ROUTER
// ============================================================================

// Router selects a model and generation parameters from static tables.
// All tables are set at construction and immutable afterwards; Route is
// safe for concurrent use.
type Router struct {
	catalog      *Catalog
	personaTemps map[Persona]float64
	modeDeltas   map[Mode]float64
	tokenLimits  map[Mode]int
	defaultLimit int
}

// Options overrides the built-in routing tables. Nil maps keep defaults.
type Options struct {
	PersonaTemps map[Persona]float64
	ModeDeltas   map[Mode]float64
	TokenLimits  map[Mode]int
	DefaultLimit int
}

// New creates a router over the given catalog with the built-in tables.
func New(catalog *Catalog) *Router {
	return NewWithOptions(catalog, Options{})
}

// NewWithOptions creates a router with table overrides.
func NewWithOptions(catalog *Catalog, opts Options) *Router {
	r := &Router{
		catalog:      catalog,
		personaTemps: DefaultPersonaTemps,
		modeDeltas:   DefaultModeDeltas,
		tokenLimits:  DefaultModeTokenLimits,
		defaultLimit: DefaultTokenLimit,
	}
	if opts.PersonaTemps != nil {
		r.personaTemps = opts.PersonaTemps
	}
	if opts.ModeDeltas != nil {
		r.modeDeltas = opts.ModeDeltas
	}
	if opts.TokenLimits != nil {
		r.tokenLimits = opts.TokenLimits
	}
	if opts.DefaultLimit > 0 {
		r.defaultLimit = opts.DefaultLimit
	}
	return r
}

// Catalog returns the catalog the router was built with.
func (r *Router) Catalog() *Catalog {
	return r.catalog
}

// Route selects one backend model plus generation parameters for a request.
//
// Selection rules, evaluated in strict priority order. First match wins;
// the ordering is deliberate, not incidental:
//  1. karen in medical mode -> accuracy model, regardless of tier.
//     Medical-accuracy correctness takes precedence over cost.
//  2. TierHigh, or analysis/strategy mode -> balanced quality/cost model.
//  3. coding/development -> code model; creative/writing -> creative model.
//  4. everything else -> fast/cheap default model.
//
// Fails with ErrUnknownPersona for personas without a temperature default,
// and ErrUnroutableModel when the resolved model is absent from the catalog.
func (r *Router) Route(persona Persona, mode Mode, tier Tier) (Decision, error) {
	baseTemp, ok := r.personaTemps[persona]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownPersona, persona)
	}

	modelID, reason := r.selectModel(persona, mode, tier)
	if _, ok := r.catalog.Lookup(modelID); !ok {
		return Decision{}, fmt.Errorf("%w: %s (rule: %s)", ErrUnroutableModel, modelID, reason)
	}

	decision := Decision{
		ModelID:     modelID,
		Temperature: clampTemp(baseTemp + r.modeDeltas[mode]),
		MaxTokens:   r.maxTokens(mode),
		Tier:        tier,
		Reason:      reason,
	}

	log.Printf("ROUTING: persona=%s mode=%s tier=%s -> model=%s temp=%.2f max_tokens=%d",
		persona, mode, tier, decision.ModelID, decision.Temperature, decision.MaxTokens)

	return decision, nil
}

// selectModel applies the ordered selection rules.
func (r *Router) selectModel(persona Persona, mode Mode, tier Tier) (string, string) {
	// Rule 1: persona-specific safety override.
	if persona == PersonaKaren && mode == ModeMedical {
		return r.catalog.ModelForRole(RoleAccuracy), "medical safety override"
	}

	// Rule 2: high-tier or specialized-task override.
	if tier == TierHigh || mode == ModeAnalysis || mode == ModeStrategy {
		return r.catalog.ModelForRole(RoleBalanced), "high complexity"
	}

	// Rule 3: mode-based specialization.
	switch mode {
	case ModeCoding, ModeDevelopment:
		return r.catalog.ModelForRole(RoleCode), "code specialization"
	case ModeCreative, ModeWriting:
		return r.catalog.ModelForRole(RoleCreative), "creative specialization"
	}

	// Rule 4: default.
	return r.catalog.ModelForRole(RoleDefault), "default"
}

// maxTokens looks up the mode token limit, falling back to the configured
// default for modes without an entry.
func (r *Router) maxTokens(mode Mode) int {
	if limit, ok := r.tokenLimits[mode]; ok {
		return limit
	}
	return r.defaultLimit
}

// clampTemp clamps a temperature to [MinTemperature, MaxTemperature].
func clampTemp(t float64) float64 {
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}
