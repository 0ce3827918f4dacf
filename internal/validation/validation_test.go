package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLocation_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
		{"newline", "\n "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateLocation(tc.input, 0, 0)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrLocationEmpty) {
				t.Errorf("error = %v, want ErrLocationEmpty", err)
			}
		})
	}
}

func TestValidateLocation_TooShort(t *testing.T) {
	_, err := ValidateLocation("x", 2, 100)
	if !errors.Is(err, ErrLocationTooShort) {
		t.Errorf("error = %v, want ErrLocationTooShort", err)
	}
}

func TestValidateLocation_TooLong(t *testing.T) {
	_, err := ValidateLocation(strings.Repeat("a", 101), 1, 100)
	if !errors.Is(err, ErrLocationTooLong) {
		t.Errorf("error = %v, want ErrLocationTooLong", err)
	}
}

// TestValidateLocation_Valid verifies trimming and that punctuation common in
// place names is accepted as-is.
func TestValidateLocation_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Paris", "Paris"},
		{"  London  ", "London"},
		{"St. John's", "St. John's"},
		{"São Paulo", "São Paulo"},
		{"Zürich,CH", "Zürich,CH"},
	}
	for _, tc := range tests {
		got, err := ValidateLocation(tc.in, 0, 0)
		if err != nil {
			t.Fatalf("ValidateLocation(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ValidateLocation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateID(t *testing.T) {
	if _, err := ValidateID("  "); !errors.Is(err, ErrIDEmpty) {
		t.Errorf("ValidateID(blank) error = %v, want ErrIDEmpty", err)
	}
	got, err := ValidateID(" abc-123 ")
	if err != nil {
		t.Fatalf("ValidateID() error = %v", err)
	}
	if got != "abc-123" {
		t.Errorf("ValidateID() = %q, want %q", got, "abc-123")
	}
}

func TestValidateDays(t *testing.T) {
	tests := []struct {
		days    int
		wantErr bool
	}{
		{-1, true},
		{0, true},
		{1, false},
		{5, false},
		{10, false},
		{11, true},
	}
	for _, tc := range tests {
		err := ValidateDays(tc.days)
		if tc.wantErr && !errors.Is(err, ErrDaysOutOfRange) {
			t.Errorf("ValidateDays(%d) error = %v, want ErrDaysOutOfRange", tc.days, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("ValidateDays(%d) unexpected error: %v", tc.days, err)
		}
	}
}

func TestValidateCount(t *testing.T) {
	tests := []struct {
		count   int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{100, false},
		{101, true},
	}
	for _, tc := range tests {
		err := ValidateCount(tc.count)
		if tc.wantErr && !errors.Is(err, ErrCountOutOfRange) {
			t.Errorf("ValidateCount(%d) error = %v, want ErrCountOutOfRange", tc.count, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("ValidateCount(%d) unexpected error: %v", tc.count, err)
		}
	}
}
