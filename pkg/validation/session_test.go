package validation

import (
	"strings"
	"testing"
)

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid identifiers
		{"uuid", "3f8a2c1e-9b4d-4f6a-8c2e-1d5b7a9e0f31", false},
		{"short", "s1", false},
		{"single char", "a", false},
		{"underscores", "load_test_42", false},
		{"digit start", "7abc", false},

		// Invalid identifiers
		{"empty", "", true},
		{"leading hyphen", "-abc", true},
		{"path traversal", "../etc/passwd", true},
		{"key separator", "session/other", true},
		{"whitespace", "abc def", true},
		{"newline", "abc\ndef", true},
		{"too long", strings.Repeat("a", 200), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{"simple", "AA_1", false},
		{"two digit", "BC_12", false},
		{"long prefix", "ABCDEFGH_1", false},

		{"empty", "", true},
		{"lowercase", "aa_1", true},
		{"no underscore", "AA1", true},
		{"trailing text", "AA_1x", true},
		{"whitespace", "AA _1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabel(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeSessionID(t *testing.T) {
	got, err := SanitizeSessionID("  s1  ")
	if err != nil {
		t.Fatalf("SanitizeSessionID returned error: %v", err)
	}
	if got != "s1" {
		t.Errorf("SanitizeSessionID = %q, want %q", got, "s1")
	}

	if _, err := SanitizeSessionID("  "); err == nil {
		t.Error("SanitizeSessionID of blank input should fail")
	}
}
