package auth

import (
	"net/mail"
	"strings"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(NormalizeEmail(email))
	if err != nil || addr.Address != NormalizeEmail(email) {
		return domain.ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
// The normalized form is the sign-in principal everywhere in the system.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns the part of the address before the '@'.
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
