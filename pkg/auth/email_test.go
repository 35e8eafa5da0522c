package auth

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"plain address", "alice@example.com", false},
		{"plus tag", "alice+events@example.com", false},
		{"mixed case", "Alice@Example.COM", false},
		{"empty", "", true},
		{"missing domain", "alice@", true},
		{"missing local part", "@example.com", true},
		{"no at sign", "alice.example.com", true},
		{"display name form rejected", "Alice <alice@example.com>", true},
		{"over length limit", strings.Repeat("a", 250) + "@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail() = %q, want alice@example.com", got)
	}
}

func TestEmailLocalPart(t *testing.T) {
	if got := EmailLocalPart("jane.doe@example.com"); got != "jane.doe" {
		t.Errorf("EmailLocalPart() = %q, want jane.doe", got)
	}
	if got := EmailLocalPart("no-at-sign"); got != "no-at-sign" {
		t.Errorf("EmailLocalPart() = %q, want the input back", got)
	}
}
