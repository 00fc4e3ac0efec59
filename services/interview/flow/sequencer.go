// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"sort"

	"github.com/calderahealth/intake/services/interview/bank"
)

// Resolver computes which questions are currently eligible.
//
// Eligibility is recomputed from scratch on every call. The answered set
// is small, and incremental caching is exactly the kind of staleness
// this engine exists to avoid: a stale availability view is how repeated
// questions happened in the first place.
type Resolver struct {
	bank *bank.Bank
}

// NewResolver creates a resolver over a loaded bank.
func NewResolver(b *bank.Bank) *Resolver {
	return &Resolver{bank: b}
}

// Eligible returns every question that is not yet answered and whose
// dependencies are all answered. A question with no dependencies is
// eligible from the start.
func (r *Resolver) Eligible(answered map[string]struct{}) []*bank.Question {
	var out []*bank.Question
	for _, q := range r.bank.All() {
		if _, done := answered[q.Label]; done {
			continue
		}
		ok := true
		for _, dep := range q.Dependencies {
			if _, done := answered[dep]; !done {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, q)
		}
	}
	return out
}

// Sequencer imposes the deterministic total order over eligible
// questions: flow_order index, then subcategory, then priority, then
// label as the final tie-break.
type Sequencer struct {
	bank     *bank.Bank
	resolver *Resolver
}

// NewSequencer creates a sequencer over a loaded bank.
func NewSequencer(b *bank.Bank) *Sequencer {
	return &Sequencer{bank: b, resolver: NewResolver(b)}
}

// Resolver exposes the underlying eligibility resolver.
func (s *Sequencer) Resolver() *Resolver {
	return s.resolver
}

// Order sorts eligible questions into presentation order. The input
// slice is not modified.
func (s *Sequencer) Order(eligible []*bank.Question) []*bank.Question {
	out := append([]*bank.Question(nil), eligible...)
	sort.Slice(out, func(i, j int) bool {
		return s.bank.Less(out[i], out[j])
	})
	return out
}

// Next returns the first eligible question under the canonical order,
// or nil when the interview is complete for the given answered set.
func (s *Sequencer) Next(answered map[string]struct{}) *bank.Question {
	ordered := s.Order(s.resolver.Eligible(answered))
	if len(ordered) == 0 {
		return nil
	}
	return ordered[0]
}
