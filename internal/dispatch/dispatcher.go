// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/orchestra-ai/maestro/internal/accounting"
	"github.com/orchestra-ai/maestro/internal/backend"
	"github.com/orchestra-ai/maestro/internal/router"
)

// DefaultCallTimeout is the per-call timeout applied to both the primary
// and the fallback backend call when none is configured.
const DefaultCallTimeout = 60 * time.Second

// ErrServiceUnavailable is surfaced when both the routed call and the
// direct fallback failed. Terminal; no further recovery is attempted
// within this component.
var ErrServiceUnavailable = errors.New("service unavailable: primary and fallback backends failed")

// Result is the outcome of one dispatched turn: the generated content plus
// its accounting record.
type Result struct {
	// Content is the generated response text.
	Content string
	// Usage is the accounting record for this turn.
	Usage accounting.UsageRecord
}

// Recorder receives completed usage records for persistence. Optional;
// recording failures are logged and never fail the turn.
type Recorder interface {
	Append(record accounting.UsageRecord) error
}

// Dispatcher orchestrates one assistant turn: classification, routing, the
// primary backend call, and the single fallback attempt. Safe for
// concurrent Send calls; the accountant serializes metric updates.
type Dispatcher struct {
	router      *router.Router
	accountant  *accounting.Accountant
	primary     backend.Generator
	fallback    backend.Generator
	callTimeout time.Duration
	recorder    Recorder
}

// New creates a dispatcher. The accountant is owned by the caller and
// passed in explicitly; its lifetime defines the accounting session.
func New(r *router.Router, acct *accounting.Accountant, primary, fallback backend.Generator) *Dispatcher {
	return &Dispatcher{
		router:      r,
		accountant:  acct,
		primary:     primary,
		fallback:    fallback,
		callTimeout: DefaultCallTimeout,
	}
}

// WithCallTimeout sets the per-call timeout for both call states.
func (d *Dispatcher) WithCallTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.callTimeout = timeout
	}
	return d
}

// WithRecorder attaches a persistent usage recorder.
func (d *Dispatcher) WithRecorder(rec Recorder) *Dispatcher {
	d.recorder = rec
	return d
}

// Metrics returns the current session metrics snapshot.
func (d *Dispatcher) Metrics() accounting.SessionMetrics {
	return d.accountant.Metrics()
}

// Send runs one turn through the state machine
//
//	CLASSIFYING -> ROUTING -> CALLING_PRIMARY -> {SUCCESS | CALLING_FALLBACK}
//	CALLING_FALLBACK -> SUCCESS | FAILED
//
// Error policy:
//   - router.ErrInvalidMode propagates unchanged before any backend I/O;
//     an invalid mode is a caller bug, not a transient fault.
//   - router.ErrUnroutableModel is a configuration gap and recovers
//     directly through the fallback path.
//   - any primary backend failure triggers exactly one fallback attempt;
//     the primary is never retried here.
//   - fallback failure surfaces ErrServiceUnavailable.
//   - caller cancellation aborts the in-flight call and records nothing.
func (d *Dispatcher) Send(ctx context.Context, persona router.Persona, mode router.Mode, message string) (*Result, error) {
	// CLASSIFYING
	tier, err := router.Classify(message, mode)
	if err != nil {
		return nil, err
	}

	// ROUTING
	decision, err := d.router.Route(persona, mode, tier)
	if err != nil {
		if errors.Is(err, router.ErrUnroutableModel) {
			log.Printf("DISPATCH: unroutable, going direct: %v", err)
			return d.sendFallback(ctx, message)
		}
		return nil, err
	}

	// CALLING_PRIMARY
	log.Printf("DISPATCH: calling %s est_tokens=%d", decision.ModelID, router.EstimateTokens(message))
	start := time.Now()
	resp, err := d.generate(ctx, d.primary, backend.GenerateRequest{
		Model:       decision.ModelID,
		Prompt:      message,
		Temperature: decision.Temperature,
		MaxTokens:   decision.MaxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		// Partial work on caller cancellation is discarded, not accounted.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("DISPATCH: primary failed after %v, going direct: %v", elapsed, err)
		return d.sendFallback(ctx, message)
	}

	// SUCCESS (primary path)
	record, err := d.accountant.Record(decision, resp.TokensUsed, elapsed)
	if err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	d.persist(record)
	return &Result{Content: resp.Content, Usage: record}, nil
}

// sendFallback is the CALLING_FALLBACK state: one direct attempt, then fail.
func (d *Dispatcher) sendFallback(ctx context.Context, message string) (*Result, error) {
	start := time.Now()
	resp, err := d.generate(ctx, d.fallback, backend.GenerateRequest{Prompt: message})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	record := d.accountant.RecordFallback(elapsed)
	d.persist(record)
	return &Result{Content: resp.Content, Usage: record}, nil
}

// generate issues one backend call under the per-call timeout.
func (d *Dispatcher) generate(ctx context.Context, gen backend.Generator, req backend.GenerateRequest) (*backend.GenerateResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	return gen.Generate(callCtx, req)
}

// persist hands a record to the recorder, if one is attached.
func (d *Dispatcher) persist(record accounting.UsageRecord) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Append(record); err != nil {
		log.Printf("DISPATCH: usage ledger append failed: %v", err)
	}
}
