// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bank loads and validates the interview question bank.
//
// # Description
//
// The question bank is the immutable source of truth for an interview:
// which questions exist, which category and subcategory they belong to,
// how they are ordered, and which questions must be answered before a
// given question becomes eligible.
//
// The on-disk format is a nested JSON document:
//
//	{
//	  "flow_order": ["A", "B", "C"],
//	  "categories": {
//	    "A": {
//	      "title": "Introduction",
//	      "subcategories": {
//	        "AA": {
//	          "title": "Consent",
//	          "questions": {"AA_1": "Are you ready to begin?"}
//	        }
//	      }
//	    }
//	  },
//	  "question_dependencies": {"BA_1": ["AA_1"]},
//	  "question_priorities": {"AA_1": 1}
//	}
//
// Loading is a one-time, fail-fast operation. A malformed bank (dangling
// dependency, dependency cycle, category missing from flow_order) returns
// a *SchemaError and the service must not start.
//
// # Thread Safety
//
// A loaded Bank is immutable and safe for unsynchronized concurrent reads.
package bank

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Question is a single immutable question definition.
type Question struct {
	// Label uniquely identifies the question (e.g. "AA_1").
	// Labels are internal bookkeeping and are never shown to respondents.
	Label string

	// Category is the category label (e.g. "A").
	Category string

	// CategoryTitle is the human-readable category name.
	CategoryTitle string

	// Subcategory is the subcategory label (e.g. "AA"). Subcategories are
	// assigned in creation order, so lexicographic order matches intended
	// presentation order.
	Subcategory string

	// SubcategoryTitle is the human-readable subcategory name.
	SubcategoryTitle string

	// Text is the prompt shown to the respondent.
	Text string

	// Priority breaks ties within a subcategory (lower asks earlier).
	Priority int

	// Dependencies lists labels that must be answered before this
	// question becomes eligible.
	Dependencies []string
}

// Bank is the validated, immutable question bank.
type Bank struct {
	questions    map[string]*Question
	ordered      []*Question
	flowOrder    []string
	categoryRank map[string]int
}

// SchemaError reports a structural problem found while loading a bank.
//
// SchemaError is fatal: the engine must refuse to start with a bank that
// fails validation.
type SchemaError struct {
	// Label is the question, category, or dependency label involved,
	// if the problem is attributable to one.
	Label string

	// Reason describes what is wrong.
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("question bank schema error: %s", e.Reason)
	}
	return fmt.Sprintf("question bank schema error: %s: %s", e.Label, e.Reason)
}

// fileSchema mirrors the JSON document layout.
type fileSchema struct {
	FlowOrder    []string                  `json:"flow_order" yaml:"flow_order" validate:"required,min=1"`
	Categories   map[string]categorySchema `json:"categories" yaml:"categories" validate:"required,min=1"`
	Dependencies map[string][]string       `json:"question_dependencies" yaml:"question_dependencies"`
	Priorities   map[string]int            `json:"question_priorities" yaml:"question_priorities"`
}

type categorySchema struct {
	Title         string                       `json:"title" yaml:"title"`
	Subcategories map[string]subcategorySchema `json:"subcategories" yaml:"subcategories" validate:"required,min=1"`
}

type subcategorySchema struct {
	Title     string            `json:"title" yaml:"title"`
	Questions map[string]string `json:"questions" yaml:"questions" validate:"required,min=1"`
}

var validate = validator.New()

// Load parses and validates a question bank from raw JSON.
//
// # Inputs
//
//   - data: Raw JSON bytes in the bank file format.
//
// # Outputs
//
//   - *Bank: Immutable bank, ready for concurrent reads.
//   - error: *SchemaError on structural problems, wrapped JSON error on
//     malformed input. Any error means the engine must not start.
func Load(data []byte) (*Bank, error) {
	var file fileSchema
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing question bank: %w", err)
	}
	return build(&file)
}

// build validates the parsed schema and assembles the Bank.
func build(file *fileSchema) (*Bank, error) {
	if err := validate.Struct(file); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}

	rank := make(map[string]int, len(file.FlowOrder))
	for i, cat := range file.FlowOrder {
		if _, dup := rank[cat]; dup {
			return nil, &SchemaError{Label: cat, Reason: "category listed twice in flow_order"}
		}
		rank[cat] = i
	}

	b := &Bank{
		questions:    make(map[string]*Question),
		flowOrder:    append([]string(nil), file.FlowOrder...),
		categoryRank: rank,
	}

	for catLabel, cat := range file.Categories {
		if _, ok := rank[catLabel]; !ok {
			return nil, &SchemaError{Label: catLabel, Reason: "category not present in flow_order"}
		}
		for subLabel, sub := range cat.Subcategories {
			for label, text := range sub.Questions {
				if _, dup := b.questions[label]; dup {
					return nil, &SchemaError{Label: label, Reason: "duplicate question label"}
				}
				if text == "" {
					return nil, &SchemaError{Label: label, Reason: "empty question text"}
				}
				prio, ok := file.Priorities[label]
				if !ok {
					prio = 1
				}
				deps := append([]string(nil), file.Dependencies[label]...)
				sort.Strings(deps)
				b.questions[label] = &Question{
					Label:            label,
					Category:         catLabel,
					CategoryTitle:    cat.Title,
					Subcategory:      subLabel,
					SubcategoryTitle: sub.Title,
					Text:             text,
					Priority:         prio,
					Dependencies:     deps,
				}
			}
		}
	}

	for cat := range rank {
		if _, ok := file.Categories[cat]; !ok {
			return nil, &SchemaError{Label: cat, Reason: "flow_order references unknown category"}
		}
	}

	if err := b.checkDependencies(file.Dependencies); err != nil {
		return nil, err
	}

	b.ordered = make([]*Question, 0, len(b.questions))
	for _, q := range b.questions {
		b.ordered = append(b.ordered, q)
	}
	sort.Slice(b.ordered, func(i, j int) bool {
		return b.Less(b.ordered[i], b.ordered[j])
	})

	return b, nil
}

// checkDependencies rejects dangling references and cycles.
func (b *Bank) checkDependencies(deps map[string][]string) error {
	for label, requires := range deps {
		if _, ok := b.questions[label]; !ok {
			return &SchemaError{Label: label, Reason: "dependency list for unknown question"}
		}
		for _, dep := range requires {
			if _, ok := b.questions[dep]; !ok {
				return &SchemaError{Label: label, Reason: fmt.Sprintf("depends on unknown question %q", dep)}
			}
		}
	}

	// Three-color DFS over the dependency relation.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(b.questions))
	var visit func(label string) error
	visit = func(label string) error {
		switch color[label] {
		case gray:
			return &SchemaError{Label: label, Reason: "dependency cycle"}
		case black:
			return nil
		}
		color[label] = gray
		for _, dep := range b.questions[label].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[label] = black
		return nil
	}
	for label := range b.questions {
		if err := visit(label); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the question with the given label, or nil if absent.
func (b *Bank) Get(label string) *Question {
	return b.questions[label]
}

// All returns every question in canonical presentation order.
//
// The returned slice is shared; callers must not modify it.
func (b *Bank) All() []*Question {
	return b.ordered
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// FlowOrder returns the category presentation order.
func (b *Bank) FlowOrder() []string {
	return b.flowOrder
}

// CategoryRank returns the position of a category label in flow_order.
// Unknown categories rank last.
func (b *Bank) CategoryRank(category string) int {
	if r, ok := b.categoryRank[category]; ok {
		return r
	}
	return len(b.categoryRank)
}

// Less reports whether question a sorts before question b under the
// canonical interview order: flow_order index, then subcategory, then
// priority, then label. The final label comparison makes the order a
// strict total order, so two calls with identical input never diverge.
func (b *Bank) Less(a, q *Question) bool {
	ra, rb := b.CategoryRank(a.Category), b.CategoryRank(q.Category)
	if ra != rb {
		return ra < rb
	}
	if a.Subcategory != q.Subcategory {
		return a.Subcategory < q.Subcategory
	}
	if a.Priority != q.Priority {
		return a.Priority < q.Priority
	}
	return a.Label < q.Label
}
