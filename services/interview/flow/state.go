// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package flow implements the interview sequencing engine: eligibility
// resolution, deterministic ordering, session state, reconciliation of
// state across the cache and checkpoint stores, and the per-request
// controller that ties them together.
//
// # Description
//
// The engine presents one question at a time from a dependency-ordered
// bank. Each request records the respondent's answer, advances session
// state, and selects the next eligible question under a strict total
// order. The hard invariants:
//
//   - No question label is ever presented twice in a session.
//   - An answer present in either state store is never dropped.
//   - Freshness is decided only on the reconciled state, never on a
//     single field or a single store.
//   - Completion is terminal and idempotent.
//
// # Thread Safety
//
// The Controller serializes all work per session ID via a keyed mutex.
// Requests for distinct sessions run fully in parallel.
package flow

import (
	"time"
)

// Phase classifies a session's position in its lifecycle.
type Phase int

const (
	// PhaseFresh means the session has never produced a question.
	PhaseFresh Phase = iota

	// PhaseAwaitingAnswer means a question has been presented and the
	// engine is waiting for its answer.
	PhaseAwaitingAnswer

	// PhaseComplete means every eligible question has been answered.
	// Complete is terminal.
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "fresh"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// SessionState is the per-respondent record of interview progress.
//
// SessionState is a plain value: all mutation happens inside the
// Controller under the session lock. The JSON wire format used by both
// state stores is defined in state_codec.go.
type SessionState struct {
	// Answers maps question label to the recorded answer text.
	Answers map[string]string

	// Answered is the set of labels considered resolved. Always a
	// superset of the keys of Answers.
	Answered map[string]struct{}

	// Asked is the set of labels ever presented to the respondent.
	Asked map[string]struct{}

	// CurrentLabel is the label last presented, or "" if the session is
	// fresh or complete.
	CurrentLabel string

	// Complete is true once no eligible question remains.
	Complete bool

	// UpdatedAt is the time of the last mutation, used by the cache
	// store for TTL eviction.
	UpdatedAt time.Time
}

// NewSessionState returns an empty, fresh session.
func NewSessionState() *SessionState {
	return &SessionState{
		Answers:  make(map[string]string),
		Answered: make(map[string]struct{}),
		Asked:    make(map[string]struct{}),
	}
}

// Phase classifies the session. A session is fresh if and only if the
// answered set is empty AND no current question is set; checking either
// field alone misclassifies a session whose stores disagree.
func (s *SessionState) Phase() Phase {
	switch {
	case s.Complete:
		return PhaseComplete
	case len(s.Answered) == 0 && len(s.Answers) == 0 && s.CurrentLabel == "":
		return PhaseFresh
	default:
		return PhaseAwaitingAnswer
	}
}

// Normalize restores internal invariants after a load or merge: every
// answered question's label is a member of the answered set, and every
// presented label is a member of the asked set.
func (s *SessionState) Normalize() {
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	if s.Answered == nil {
		s.Answered = make(map[string]struct{})
	}
	if s.Asked == nil {
		s.Asked = make(map[string]struct{})
	}
	for label := range s.Answers {
		s.Answered[label] = struct{}{}
	}
	for label := range s.Answered {
		s.Asked[label] = struct{}{}
	}
	if s.CurrentLabel != "" {
		s.Asked[s.CurrentLabel] = struct{}{}
	}
}

// Record stores an answer for a label. Recording is idempotent: a label
// already answered has its value overwritten, never duplicated.
func (s *SessionState) Record(label, answer string) {
	s.Answers[label] = answer
	s.Answered[label] = struct{}{}
	s.Asked[label] = struct{}{}
}

// Present marks a label as the current question.
func (s *SessionState) Present(label string) {
	s.CurrentLabel = label
	s.Asked[label] = struct{}{}
	s.Complete = false
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	c := &SessionState{
		Answers:      make(map[string]string, len(s.Answers)),
		Answered:     make(map[string]struct{}, len(s.Answered)),
		Asked:        make(map[string]struct{}, len(s.Asked)),
		CurrentLabel: s.CurrentLabel,
		Complete:     s.Complete,
		UpdatedAt:    s.UpdatedAt,
	}
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	for k := range s.Answered {
		c.Answered[k] = struct{}{}
	}
	for k := range s.Asked {
		c.Asked[k] = struct{}{}
	}
	return c
}
