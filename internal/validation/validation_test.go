package validation

import (
	"testing"
)

func TestIsValidDatasetID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"8f14e45f-ceea-467f-a6d3-7c6f1f4e0b2a", true},
		{"00000000-0000-0000-0000-000000000000", true},

		// Invalid cases
		{"8f14e45fceea467fa6d37c6f1f4e0b2a!", false},
		{"not-a-uuid", false},
		{"", false},
		{"8f14e45f-ceea-467f-a6d3", false}, // Too short
	}

	for _, tc := range tests {
		result := IsValidDatasetID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidDatasetID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestIsValidEntityID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"user-001", true},
		{"C4028", true},
		{"card_991x", true},

		// Invalid cases
		{"", false},
		{"has\x00null", false},
		{"has\nnewline", false},
		{string(make([]byte, MaxEntityIDLength+1)), false},
	}

	for _, tc := range tests {
		result := IsValidEntityID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidEntityID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("entity_id", "user-001"),
		MaxLength("entity_id", "user-001", MaxEntityIDLength),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("entity_id", ""),
		MaxLength("note", "hello world", 5),
	)
	if len(errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errors))
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
