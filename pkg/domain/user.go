package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account behind a sign-in identity. Magic-link
// accounts carry no credentials; the email is the principal.
type User struct {
	ID            uuid.UUID
	Email         string
	EmailVerified bool
	Name          *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// DisplayName returns the user's name, falling back to the email local-part.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}
