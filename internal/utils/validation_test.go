package utils

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidatePriority(t *testing.T) {
	for _, p := range []string{"", "high", "Medium", "low"} {
		if err := ValidatePriority(p); err != nil {
			t.Errorf("ValidatePriority(%q) unexpected error: %v", p, err)
		}
	}
	for _, p := range []string{"urgent", "5"} {
		if err := ValidatePriority(p); err == nil {
			t.Errorf("ValidatePriority(%q) expected error", p)
		}
	}
}

func TestValidateTitle(t *testing.T) {
	got, err := ValidateTitle("  Buy milk \n")
	if err != nil || got != "Buy milk" {
		t.Errorf("ValidateTitle() = %q, %v", got, err)
	}
	if _, err := ValidateTitle("   "); err == nil {
		t.Error("blank title should be rejected")
	}
}

func TestParseDateFlag(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"today", "2026-10-17"},
		{"tomorrow", "2026-10-18"},
		{"yesterday", "2026-10-16"},
		{"+3d", "2026-10-20"},
		{"-1w", "2026-10-10"},
		{"+1m", "2026-11-17"},
		{"2026-12-24", "2026-12-24"},
	}
	for _, tt := range tests {
		got, err := ParseDateFlag(tt.in, now)
		if err != nil {
			t.Errorf("ParseDateFlag(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDateFlag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDateFlagInvalid(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"next week", "2026-13-01", "17/10/2026"} {
		_, err := ParseDateFlag(in, now)
		if err == nil {
			t.Errorf("ParseDateFlag(%q) expected error", in)
			continue
		}
		var ews *ErrorWithSuggestion
		if !errors.As(err, &ews) || !strings.Contains(ews.Suggestion, "YYYY-MM-DD") {
			t.Errorf("ParseDateFlag(%q) should return a suggestion, got %v", in, err)
		}
	}
}

func TestValidateDateRange(t *testing.T) {
	if err := ValidateDateRange("2026-10-17", "2026-10-17"); err != nil {
		t.Errorf("same day should be valid: %v", err)
	}
	if err := ValidateDateRange("", "2026-01-01"); err != nil {
		t.Errorf("empty start should be valid: %v", err)
	}
	if err := ValidateDateRange("2026-10-17", "2026-10-01"); err == nil {
		t.Error("end before start should be rejected")
	}
}

func TestPromptYesNoWithReader(t *testing.T) {
	var out strings.Builder
	if !PromptYesNoWithReader("Delete?", strings.NewReader("maybe\n yes \n"), &out) {
		t.Error("expected yes after retry")
	}
	if strings.Count(out.String(), "Delete? (y/n): ") != 2 {
		t.Errorf("expected two prompts, got %q", out.String())
	}
	if PromptYesNoWithReader("Delete?", strings.NewReader(""), &out) {
		t.Error("end of input should mean no")
	}
}

func TestReadStringWithReader(t *testing.T) {
	got, err := ReadStringWithReader(strings.NewReader("  secret  \nmore"))
	if err != nil || got != "secret" {
		t.Errorf("ReadStringWithReader() = %q, %v", got, err)
	}
	if _, err := ReadStringWithReader(strings.NewReader("")); err == nil {
		t.Error("expected error on empty input")
	}
}
