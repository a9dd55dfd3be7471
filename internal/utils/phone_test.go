package utils

import (
	"testing"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		region      string
		expected    string
		shouldError bool
	}{
		{
			name:     "US mobile with country code",
			input:    "+14155551234",
			region:   "US",
			expected: "+14155551234",
		},
		{
			name:     "US mobile without country code",
			input:    "4155551234",
			region:   "US",
			expected: "+14155551234",
		},
		{
			name:     "US mobile with spaces and dashes",
			input:    " 415-555-1234 ",
			region:   "US",
			expected: "+14155551234",
		},
		{
			name:     "German mobile with country code, US region",
			input:    "+49 170 1234567",
			region:   "US",
			expected: "+491701234567",
		},
		{
			name:        "German national format against US region",
			input:       "01701234567",
			region:      "US",
			shouldError: true,
		},
		{
			name:     "Romanian mobile without country code, RO region",
			input:    "0721234567",
			region:   "RO",
			expected: "+40721234567",
		},
		{
			name:        "too short",
			input:       "123",
			region:      "US",
			shouldError: true,
		},
		{
			name:        "letters",
			input:       "abcdefghij",
			region:      "US",
			shouldError: true,
		},
		{
			name:        "empty string",
			input:       "",
			region:      "US",
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizePhoneNumber(tt.input, tt.region)

			if tt.shouldError {
				if err == nil {
					t.Errorf("Expected error for input %q, but got none", tt.input)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error for input %q: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("For input %q, expected %q but got %q", tt.input, tt.expected, result)
			}
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "email is lowercased",
			input:    "  Guest@Example.COM ",
			expected: "guest@example.com",
		},
		{
			name:     "phone is normalized to E.164",
			input:    "415-555-1234",
			expected: "+14155551234",
		},
		{
			name:     "unparseable identity passes through trimmed",
			input:    " not-a-contact ",
			expected: "not-a-contact",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIdentity(tt.input, "US"); got != tt.expected {
				t.Errorf("For input %q, expected %q but got %q", tt.input, tt.expected, got)
			}
		})
	}
}
