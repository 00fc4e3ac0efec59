// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calderahealth/intake/services/interview/bank"
	"github.com/calderahealth/intake/services/interview/observability"
)

// Sentinel errors returned by StateStore implementations. The
// controller recognizes these and recovers locally; any other error is
// treated as a transient store failure and propagated to the caller,
// who may retry.
var (
	// ErrStateNotFound means the store holds no record for the session.
	ErrStateNotFound = errors.New("session state not found")

	// ErrStateCorrupt means the stored payload could not be decoded.
	// The controller discards it and restarts the session fresh.
	ErrStateCorrupt = errors.New("session state unreadable")
)

// StateStore is the contract both session stores satisfy: a low-latency
// cache and a durable checkpoint, with identical interfaces.
//
// Load returns ErrStateNotFound when the session is absent and
// ErrStateCorrupt (possibly wrapped) when the payload is unreadable.
// Save failures are transient and retryable by the caller; the
// controller performs no retry loops itself.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Save(ctx context.Context, sessionID string, state *SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// AnswerSink receives recorded answers for downstream indexing. Submit
// must not block: sink failure or backpressure must never alter or
// delay the interview result.
type AnswerSink interface {
	Submit(sessionID string, question *bank.Question, answer string)
}

// Result is the outcome of one interview turn.
type Result struct {
	// Prompt is the next question's text, or the completion message.
	// This is the only field the presentation layer may render.
	Prompt string

	// CurrentLabel is the label of the question just presented, or ""
	// when the interview is complete. Internal bookkeeping only: it must
	// never be rendered to the respondent.
	CurrentLabel string

	// Complete is true once no eligible question remains.
	Complete bool

	// AnsweredCount is the number of resolved questions after this turn.
	AnsweredCount int

	// TotalQuestions is the bank size.
	TotalQuestions int
}

// DefaultCompletionMessage is emitted when the interview finishes and
// no custom message is configured.
const DefaultCompletionMessage = "Thank you — the consultation is complete. A clinician will review your responses."

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	// Bank is the loaded question bank. Required.
	Bank *bank.Bank

	// Cache is the low-latency session store. Required.
	Cache StateStore

	// Checkpoint is the durable session store. Required.
	Checkpoint StateStore

	// Sink receives recorded answers for embedding. Optional.
	Sink AnswerSink

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to observability.Default().
	Metrics *observability.InterviewMetrics

	// CompletionMessage overrides DefaultCompletionMessage.
	CompletionMessage string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Controller orchestrates one interview turn: reconcile state, record
// the answer, select the next question, write through to both stores.
//
// # Thread Safety
//
// All work for a given session ID runs under that session's mutex, so
// a client retry racing the original request serializes instead of
// double-selecting a question or losing an answer. Distinct sessions
// proceed in parallel.
type Controller struct {
	bank       *bank.Bank
	seq        *Sequencer
	cache      StateStore
	checkpoint StateStore
	sink       AnswerSink
	logger     *slog.Logger
	metrics    *observability.InterviewMetrics
	completion string
	now        func() time.Time
	locks      *keyedMutex
}

// NewController creates a Controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Bank == nil {
		return nil, fmt.Errorf("flow: controller requires a question bank")
	}
	if cfg.Cache == nil || cfg.Checkpoint == nil {
		return nil, fmt.Errorf("flow: controller requires both state stores")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.Default()
	}
	completion := cfg.CompletionMessage
	if completion == "" {
		completion = DefaultCompletionMessage
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		bank:       cfg.Bank,
		seq:        NewSequencer(cfg.Bank),
		cache:      cfg.Cache,
		checkpoint: cfg.Checkpoint,
		sink:       cfg.Sink,
		logger:     logger,
		metrics:    metrics,
		completion: completion,
		now:        now,
		locks:      newKeyedMutex(),
	}, nil
}

// Process consumes one respondent message for a session and returns the
// next prompt.
//
// # Description
//
// On a fresh session the incoming text is the opening trigger, not an
// answer, so nothing is recorded and the first eligible question is
// selected. Otherwise the text is recorded against the current question
// (idempotently: a retried request overwrites the same answer, it never
// double-advances), the answered set is re-derived defensively, and the
// sequencer picks the next question. The updated state is written
// through to both stores before the result is returned.
//
// # Outputs
//
//   - *Result: The next prompt, or the completion message.
//   - error: Non-nil only for transient store failures; the caller may
//     retry. No partial state is persisted on error.
func (c *Controller) Process(ctx context.Context, sessionID, answerText string) (*Result, error) {
	start := c.now()
	c.locks.Lock(sessionID)
	defer c.locks.Unlock(sessionID)

	result, err := c.process(ctx, sessionID, answerText)
	if err != nil {
		c.metrics.RequestsTotal.WithLabelValues("store_error").Inc()
		return nil, err
	}
	c.metrics.RequestsTotal.WithLabelValues("ok").Inc()
	c.metrics.ProcessDurationSeconds.Observe(c.now().Sub(start).Seconds())
	return result, nil
}

func (c *Controller) process(ctx context.Context, sessionID, answerText string) (*Result, error) {
	logger := c.logger.With("session_id", sessionID)

	state, err := c.reconciled(ctx, sessionID, logger)
	if err != nil {
		return nil, err
	}

	// Complete is terminal: answer nothing, select nothing, write
	// nothing. Repeated calls get the same completion result.
	if state.Phase() == PhaseComplete {
		return c.completionResult(state), nil
	}

	var recorded *bank.Question
	if state.Phase() != PhaseFresh {
		recorded = c.recordAnswer(state, answerText, logger)
	} else {
		logger.Info("opening interview session")
	}

	// Defensive re-derivation: every recorded answer implies membership
	// in the answered set, even if a prior write landed partially.
	state.Normalize()

	next := c.seq.Next(state.Answered)
	var result *Result
	if next != nil {
		state.Present(next.Label)
		result = &Result{
			Prompt:         next.Text,
			CurrentLabel:   next.Label,
			AnsweredCount:  len(state.Answered),
			TotalQuestions: c.bank.Len(),
		}
		c.metrics.QuestionsServedTotal.Inc()
		logger.Info("selected next question",
			"label", next.Label,
			"category", next.Category,
			"answered", len(state.Answered))
	} else {
		state.Complete = true
		state.CurrentLabel = ""
		result = c.completionResult(state)
		c.metrics.SessionsCompletedTotal.Inc()
		logger.Info("interview complete", "answered", len(state.Answered))
	}

	state.UpdatedAt = c.now()
	if err := c.writeThrough(ctx, sessionID, state, logger); err != nil {
		return nil, err
	}

	// Notify the sink only once the answer is durable. A failed turn is
	// retried by the client; submitting before the persist would index
	// the same answer twice.
	if recorded != nil && c.sink != nil {
		c.sink.Submit(sessionID, recorded, answerText)
	}
	return result, nil
}

// recordAnswer applies the incoming text to the current question.
// Returns the question the answer was recorded against, or nil when the
// text could not be attributed to one.
func (c *Controller) recordAnswer(state *SessionState, answerText string, logger *slog.Logger) *bank.Question {
	label := state.CurrentLabel
	if label == "" {
		// Answered set is non-empty but no pointer survived in either
		// store. The text cannot be attributed to a question; selection
		// below recovers the session without re-asking anything.
		logger.Warn("no current question recorded; discarding unattributable answer")
		return nil
	}

	question := c.bank.Get(label)
	if question == nil {
		// The label refers to a question no longer in the bank (bank
		// updated between deploys). Recover by clearing the pointer and
		// re-selecting; never fatal, never re-asks the removed question.
		logger.Warn("current question no longer present in bank; re-selecting",
			"label", label)
		c.metrics.RecoveriesTotal.WithLabelValues("stale_label").Inc()
		state.CurrentLabel = ""
		return nil
	}

	if _, already := state.Answered[label]; already {
		logger.Info("overwriting answer for already-resolved question", "label", label)
	}
	state.Record(label, answerText)
	return question
}

// reconciled loads the session from both stores, merges the reads, and
// writes the merged value back so subsequent reads are consistent.
func (c *Controller) reconciled(ctx context.Context, sessionID string, logger *slog.Logger) (*SessionState, error) {
	cached, err := c.loadFrom(ctx, c.cache, "cache", sessionID, logger)
	if err != nil {
		return nil, err
	}
	checkpointed, err := c.loadFrom(ctx, c.checkpoint, "checkpoint", sessionID, logger)
	if err != nil {
		return nil, err
	}

	c.metrics.ReconciliationsTotal.WithLabelValues(reconcileSource(cached, checkpointed)).Inc()

	state := Reconcile(cached, checkpointed)
	if cached == nil && checkpointed == nil {
		return state, nil
	}

	// Write-through, not write-back: both stores observe the reconciled
	// value before any of it is acted on.
	if err := c.writeThrough(ctx, sessionID, state, logger); err != nil {
		return nil, err
	}
	return state, nil
}

// loadFrom reads one store, translating absent and corrupt records into
// a nil state. Corrupt payloads are discarded with a warning and never
// surfaced to the respondent.
func (c *Controller) loadFrom(ctx context.Context, store StateStore, name, sessionID string, logger *slog.Logger) (*SessionState, error) {
	state, err := store.Load(ctx, sessionID)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, ErrStateNotFound):
		return nil, nil
	case errors.Is(err, ErrStateCorrupt):
		logger.Warn("discarding unreadable session state", "store", name, "error", err)
		c.metrics.RecoveriesTotal.WithLabelValues("unreadable_state").Inc()
		if derr := store.Delete(ctx, sessionID); derr != nil {
			logger.Warn("failed to delete unreadable session state", "store", name, "error", derr)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("loading session state from %s: %w", name, err)
	}
}

// writeThrough persists state to the checkpoint first, then the cache.
// A checkpoint failure aborts before the cache is touched, so an
// errored request leaves no partial write behind.
func (c *Controller) writeThrough(ctx context.Context, sessionID string, state *SessionState, logger *slog.Logger) error {
	if err := c.checkpoint.Save(ctx, sessionID, state); err != nil {
		return fmt.Errorf("saving session state to checkpoint: %w", err)
	}
	if err := c.cache.Save(ctx, sessionID, state); err != nil {
		// The checkpoint already holds the truth. A stale cache entry
		// would win the next pointer reconciliation, so drop it rather
		// than leave it behind.
		logger.Warn("cache save failed; evicting entry", "error", err)
		if derr := c.cache.Delete(ctx, sessionID); derr != nil {
			return fmt.Errorf("saving session state to cache: %w", err)
		}
	}
	return nil
}

// Reset removes the session from both stores.
func (c *Controller) Reset(ctx context.Context, sessionID string) error {
	c.locks.Lock(sessionID)
	defer c.locks.Unlock(sessionID)

	if err := c.checkpoint.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrStateNotFound) {
		return fmt.Errorf("deleting session state from checkpoint: %w", err)
	}
	if err := c.cache.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrStateNotFound) {
		return fmt.Errorf("deleting session state from cache: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the reconciled session state, for the
// status and answers endpoints. The copy is safe to read without the
// session lock held.
func (c *Controller) Snapshot(ctx context.Context, sessionID string) (*SessionState, error) {
	c.locks.Lock(sessionID)
	defer c.locks.Unlock(sessionID)

	logger := c.logger.With("session_id", sessionID)
	state, err := c.reconciled(ctx, sessionID, logger)
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// Bank exposes the loaded question bank.
func (c *Controller) Bank() *bank.Bank {
	return c.bank
}

func (c *Controller) completionResult(state *SessionState) *Result {
	return &Result{
		Prompt:         c.completion,
		Complete:       true,
		AnsweredCount:  len(state.Answered),
		TotalQuestions: c.bank.Len(),
	}
}

func reconcileSource(cached, checkpointed *SessionState) string {
	switch {
	case cached == nil && checkpointed == nil:
		return "fresh"
	case cached == nil:
		return "checkpoint_only"
	case checkpointed == nil:
		return "cache_only"
	default:
		return "both"
	}
}
