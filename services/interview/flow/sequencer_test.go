// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"testing"

	"github.com/calderahealth/intake/services/interview/bank"
)

// testBankJSON is the bank used across the flow tests: two consent
// questions, a dependency chain through the symptom questions, and a
// history question gated on consent.
const testBankJSON = `{
  "flow_order": ["A", "B", "C"],
  "categories": {
    "A": {
      "title": "Introduction",
      "subcategories": {
        "AA": {
          "title": "Consent",
          "questions": {
            "AA_1": "Are you ready to begin?",
            "AA_2": "Do you consent to data processing?"
          }
        }
      }
    },
    "B": {
      "title": "Symptoms",
      "subcategories": {
        "BA": {
          "title": "Primary complaint",
          "questions": {
            "BA_1": "What brings you in today?",
            "BA_2": "How long has this been going on?"
          }
        }
      }
    },
    "C": {
      "title": "History",
      "subcategories": {
        "CA": {
          "title": "Medical history",
          "questions": {
            "CA_1": "Any prior diagnoses?"
          }
        }
      }
    }
  },
  "question_dependencies": {
    "BA_1": ["AA_1"],
    "BA_2": ["BA_1"],
    "CA_1": ["AA_1"]
  },
  "question_priorities": {
    "AA_1": 1,
    "AA_2": 2,
    "BA_1": 1,
    "BA_2": 2
  }
}`

func testBank(t *testing.T) *bank.Bank {
	t.Helper()
	b, err := bank.Load([]byte(testBankJSON))
	if err != nil {
		t.Fatalf("loading test bank: %v", err)
	}
	return b
}

func answeredSet(labels ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return set
}

func TestResolver_Eligible_Fresh(t *testing.T) {
	r := NewResolver(testBank(t))

	eligible := r.Eligible(answeredSet())
	// Only the dependency-free questions qualify at the start.
	want := map[string]bool{"AA_1": true, "AA_2": true}
	if len(eligible) != len(want) {
		t.Fatalf("Eligible() returned %d questions, want %d", len(eligible), len(want))
	}
	for _, q := range eligible {
		if !want[q.Label] {
			t.Errorf("unexpected eligible question %s", q.Label)
		}
	}
}

func TestResolver_Eligible_DependencyGating(t *testing.T) {
	r := NewResolver(testBank(t))

	tests := []struct {
		name     string
		answered map[string]struct{}
		label    string
		want     bool
	}{
		{"unmet dependency blocks", answeredSet(), "BA_1", false},
		{"met dependency unlocks", answeredSet("AA_1"), "BA_1", true},
		{"chained dependency still blocked", answeredSet("AA_1"), "BA_2", false},
		{"chained dependency unlocks in order", answeredSet("AA_1", "BA_1"), "BA_2", true},
		{"answered question never eligible again", answeredSet("AA_1"), "AA_1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := false
			for _, q := range r.Eligible(tt.answered) {
				if q.Label == tt.label {
					got = true
					break
				}
			}
			if got != tt.want {
				t.Errorf("eligibility of %s = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestSequencer_Next_Deterministic(t *testing.T) {
	s := NewSequencer(testBank(t))

	answered := answeredSet("AA_1")
	first := s.Next(answered)
	for i := 0; i < 50; i++ {
		if got := s.Next(answered); got.Label != first.Label {
			t.Fatalf("Next() flapped: %s then %s", first.Label, got.Label)
		}
	}
}

func TestSequencer_Next_DoesNotMutateInput(t *testing.T) {
	s := NewSequencer(testBank(t))

	answered := answeredSet("AA_1")
	s.Next(answered)
	if len(answered) != 1 {
		t.Errorf("Next() mutated the answered set: %v", answered)
	}
}

func TestSequencer_FullWalk(t *testing.T) {
	s := NewSequencer(testBank(t))

	// Selecting and answering repeatedly must present every question
	// exactly once, in the canonical order.
	want := []string{"AA_1", "AA_2", "BA_1", "BA_2", "CA_1"}
	answered := answeredSet()
	var got []string
	for {
		next := s.Next(answered)
		if next == nil {
			break
		}
		got = append(got, next.Label)
		answered[next.Label] = struct{}{}
	}

	if len(got) != len(want) {
		t.Fatalf("walk presented %d questions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("walk[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSequencer_Next_CompleteReturnsNil(t *testing.T) {
	s := NewSequencer(testBank(t))

	answered := answeredSet("AA_1", "AA_2", "BA_1", "BA_2", "CA_1")
	if next := s.Next(answered); next != nil {
		t.Errorf("Next() = %s, want nil when everything is answered", next.Label)
	}
}

func TestSequencer_Order_PreservesInput(t *testing.T) {
	b := testBank(t)
	s := NewSequencer(b)

	input := []*bank.Question{b.Get("CA_1"), b.Get("AA_1")}
	out := s.Order(input)

	if input[0].Label != "CA_1" {
		t.Error("Order() reordered the caller's slice")
	}
	if out[0].Label != "AA_1" || out[1].Label != "CA_1" {
		t.Errorf("Order() = [%s %s], want [AA_1 CA_1]", out[0].Label, out[1].Label)
	}
}
