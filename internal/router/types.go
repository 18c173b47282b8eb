// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
)

// ============================================================================
// PERSONA
// ============================================================================

// Persona identifies the behavioral profile of the assistant for one turn.
// The set of personas is closed and configuration-defined; a turn never
// changes persona mid-flight.
type Persona string

const (
	// PersonaCherry is the default conversational persona.
	PersonaCherry Persona = "cherry"
	// PersonaSophia is the analytical/strategy persona.
	PersonaSophia Persona = "sophia"
	// PersonaKaren is the compliance-sensitive persona. In medical mode she
	// always routes to the highest-accuracy model regardless of cost.
	PersonaKaren Persona = "karen"
)

// String returns the persona identifier.
func (p Persona) String() string {
	return string(p)
}

// ============================================================================
// CONVERSATION MODE
// ============================================================================

// Mode describes the task category of the current turn. Supplied by the
// caller per request and never persisted across turns.
type Mode string

const (
	// ModeCasual is small talk and general conversation.
	ModeCasual Mode = "casual"
	// ModeAnalysis is data/document analysis work.
	ModeAnalysis Mode = "analysis"
	// ModeStrategy is planning and strategy work.
	ModeStrategy Mode = "strategy"
	// ModeCreative is open-ended creative generation.
	ModeCreative Mode = "creative"
	// ModeWriting is prose drafting and editing.
	ModeWriting Mode = "writing"
	// ModeMedical is health-related conversation (accuracy-critical).
	ModeMedical Mode = "medical"
	// ModeCoding is code generation and explanation.
	ModeCoding Mode = "coding"
	// ModeDevelopment is broader software-development work.
	ModeDevelopment Mode = "development"
)

// knownModes is the closed set of valid conversation modes.
var knownModes = map[Mode]bool{
	ModeCasual:      true,
	ModeAnalysis:    true,
	ModeStrategy:    true,
	ModeCreative:    true,
	ModeWriting:     true,
	ModeMedical:     true,
	ModeCoding:      true,
	ModeDevelopment: true,
}

// Valid reports whether m is one of the enumerated conversation modes.
func (m Mode) Valid() bool {
	return knownModes[m]
}

// String returns the mode identifier.
func (m Mode) String() string {
	return string(m)
}

// Modes returns all valid conversation modes. The slice is freshly
// allocated; callers may mutate it.
func Modes() []Mode {
	return []Mode{
		ModeCasual, ModeAnalysis, ModeStrategy, ModeCreative,
		ModeWriting, ModeMedical, ModeCoding, ModeDevelopment,
	}
}

// ============================================================================
// COMPLEXITY TIER
// ============================================================================

// Tier is the coarse complexity classification of a request. Derived per
// request from message content and mode; never stored.
type Tier int

const (
	// TierLow represents greetings and short, simple turns.
	TierLow Tier = iota
	// TierMedium represents ordinary conversational turns.
	TierMedium
	// TierHigh represents turns that need substantial reasoning.
	TierHigh
)

// String returns the human-readable name of the tier.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// ============================================================================
// ROUTING DECISION
// ============================================================================

// Decision is the output of the router for one request. Created fresh per
// request and never mutated afterwards.
type Decision struct {
	// ModelID is the selected backend model identifier. Always present in
	// the catalog the router was built with.
	ModelID string `json:"model_id"`
	// Temperature is the derived sampling temperature, clamped to [0.1, 1.0].
	Temperature float64 `json:"temperature"`
	// MaxTokens is the generation token limit for this turn.
	MaxTokens int `json:"max_tokens"`
	// Tier is the complexity tier the decision was made for.
	Tier Tier `json:"tier"`
	// Reason explains which rule selected the model.
	Reason string `json:"reason"`
}

// String returns a human-readable summary of the decision.
func (d Decision) String() string {
	return fmt.Sprintf("%s (tier=%s, temp=%.2f, max_tokens=%d): %s",
		d.ModelID, d.Tier, d.Temperature, d.MaxTokens, d.Reason)
}

// ============================================================================
// ERRORS
// ============================================================================

// ErrInvalidMode is returned when a request carries a conversation mode
// outside the enumerated set. This is a caller programming error and is
// never retried.
var ErrInvalidMode = errors.New("invalid conversation mode")

// ErrUnroutableModel is returned when a routing rule resolves to a model
// identifier absent from the catalog. This is a configuration gap; callers
// recover via the fallback path.
var ErrUnroutableModel = errors.New("routing rule resolved to unknown model")

// ErrUnknownPersona is returned when a persona has no configured defaults.
var ErrUnknownPersona = errors.New("unknown persona")
