// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bank

import (
	"errors"
	"strings"
	"testing"
)

// validBankJSON is a small bank exercising every schema feature:
// multiple categories, subcategories, dependencies, and priorities.
const validBankJSON = `{
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
        },
        "BB": {
          "title": "Severity",
          "questions": {
            "BB_1": "On a scale of 1-10, how severe is it?"
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
    "BA_2": ["BA_1"],
    "BB_1": ["BA_1"],
    "CA_1": ["AA_1"]
  },
  "question_priorities": {
    "AA_1": 1,
    "AA_2": 2,
    "BA_1": 1,
    "BA_2": 2
  }
}`

func TestLoad_ValidBank(t *testing.T) {
	b, err := Load([]byte(validBankJSON))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if b.Len() != 6 {
		t.Errorf("Len() = %d, want 6", b.Len())
	}
	if got := len(b.FlowOrder()); got != 3 {
		t.Errorf("FlowOrder() has %d categories, want 3", got)
	}

	q := b.Get("BA_2")
	if q == nil {
		t.Fatal("Get(BA_2) returned nil")
	}
	if q.Category != "B" || q.Subcategory != "BA" {
		t.Errorf("BA_2 placement = %s/%s, want B/BA", q.Category, q.Subcategory)
	}
	if q.Priority != 2 {
		t.Errorf("BA_2 priority = %d, want 2", q.Priority)
	}
	if len(q.Dependencies) != 1 || q.Dependencies[0] != "BA_1" {
		t.Errorf("BA_2 dependencies = %v, want [BA_1]", q.Dependencies)
	}
	if q.CategoryTitle != "Symptoms" {
		t.Errorf("BA_2 category title = %q, want Symptoms", q.CategoryTitle)
	}
}

func TestLoad_DefaultPriority(t *testing.T) {
	b, err := Load([]byte(validBankJSON))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	// BB_1 and CA_1 have no priority entry
	if got := b.Get("BB_1").Priority; got != 1 {
		t.Errorf("BB_1 priority = %d, want default 1", got)
	}
	if got := b.Get("CA_1").Priority; got != 1 {
		t.Errorf("CA_1 priority = %d, want default 1", got)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load([]byte("{not json"))
	if err == nil {
		t.Fatal("Load() should fail on malformed JSON")
	}
}

func TestLoad_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{
			name: "empty document",
			json: `{}`,
			want: "schema error",
		},
		{
			name: "category missing from flow_order",
			json: `{
				"flow_order": ["A"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": "q"}}}},
					"B": {"subcategories": {"BA": {"questions": {"BA_1": "q"}}}}
				}
			}`,
			want: "not present in flow_order",
		},
		{
			name: "flow_order references unknown category",
			json: `{
				"flow_order": ["A", "Z"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": "q"}}}}
				}
			}`,
			want: "unknown category",
		},
		{
			name: "duplicate category in flow_order",
			json: `{
				"flow_order": ["A", "A"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": "q"}}}}
				}
			}`,
			want: "listed twice",
		},
		{
			name: "empty question text",
			json: `{
				"flow_order": ["A"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": ""}}}}
				}
			}`,
			want: "empty question text",
		},
		{
			name: "dependency on unknown question",
			json: `{
				"flow_order": ["A"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": "q"}}}}
				},
				"question_dependencies": {"AA_1": ["ZZ_9"]}
			}`,
			want: "unknown question",
		},
		{
			name: "dependency list for unknown question",
			json: `{
				"flow_order": ["A"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": "q"}}}}
				},
				"question_dependencies": {"ZZ_9": ["AA_1"]}
			}`,
			want: "unknown question",
		},
		{
			name: "dependency cycle",
			json: `{
				"flow_order": ["A"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": "q", "AA_2": "q", "AA_3": "q"}}}}
				},
				"question_dependencies": {
					"AA_1": ["AA_2"],
					"AA_2": ["AA_3"],
					"AA_3": ["AA_1"]
				}
			}`,
			want: "cycle",
		},
		{
			name: "self dependency",
			json: `{
				"flow_order": ["A"],
				"categories": {
					"A": {"subcategories": {"AA": {"questions": {"AA_1": "q"}}}}
				},
				"question_dependencies": {"AA_1": ["AA_1"]}
			}`,
			want: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.json))
			if err == nil {
				t.Fatal("Load() should have failed")
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("error type = %T, want *SchemaError: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestBank_Less(t *testing.T) {
	b, err := Load([]byte(validBankJSON))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	tests := []struct {
		name string
		a, q string
		want bool
	}{
		{"earlier category wins", "AA_2", "BA_1", true},
		{"later category loses", "CA_1", "BA_1", false},
		{"subcategory breaks within category", "BA_2", "BB_1", true},
		{"priority breaks within subcategory", "AA_1", "AA_2", true},
		{"label is the final tie-break", "BA_1", "BA_1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Less(b.Get(tt.a), b.Get(tt.q))
			if got != tt.want {
				t.Errorf("Less(%s, %s) = %v, want %v", tt.a, tt.q, got, tt.want)
			}
		})
	}
}

func TestBank_All_CanonicalOrder(t *testing.T) {
	b, err := Load([]byte(validBankJSON))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	want := []string{"AA_1", "AA_2", "BA_1", "BA_2", "BB_1", "CA_1"}
	all := b.All()
	if len(all) != len(want) {
		t.Fatalf("All() returned %d questions, want %d", len(all), len(want))
	}
	for i, q := range all {
		if q.Label != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, q.Label, want[i])
		}
	}
}

func TestBank_CategoryRank(t *testing.T) {
	b, err := Load([]byte(validBankJSON))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if got := b.CategoryRank("A"); got != 0 {
		t.Errorf("CategoryRank(A) = %d, want 0", got)
	}
	if got := b.CategoryRank("C"); got != 2 {
		t.Errorf("CategoryRank(C) = %d, want 2", got)
	}
	// Unknown categories rank last
	if got := b.CategoryRank("Z"); got != 3 {
		t.Errorf("CategoryRank(Z) = %d, want 3", got)
	}
}

func TestBank_Get_Absent(t *testing.T) {
	b, err := Load([]byte(validBankJSON))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if q := b.Get("ZZ_9"); q != nil {
		t.Errorf("Get(ZZ_9) = %v, want nil", q)
	}
}

func TestSchemaError_Error(t *testing.T) {
	withLabel := &SchemaError{Label: "AA_1", Reason: "broken"}
	if !strings.Contains(withLabel.Error(), "AA_1") {
		t.Errorf("Error() should contain the label: %v", withLabel.Error())
	}
	withoutLabel := &SchemaError{Reason: "broken"}
	if !strings.Contains(withoutLabel.Error(), "broken") {
		t.Errorf("Error() should contain the reason: %v", withoutLabel.Error())
	}
}
