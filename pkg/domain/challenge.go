package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeKindCode is the kind tag carried by code challenge records.
const ChallengeKindCode = "code-challenge"

// ChallengeResult is the tri-state outcome of a challenge round.
type ChallengeResult string

const (
	ChallengeResultPending   ChallengeResult = "pending"
	ChallengeResultCorrect   ChallengeResult = "correct"
	ChallengeResultIncorrect ChallengeResult = "incorrect"
)

// ChallengeRecord is one entry in an authentication attempt's history.
// PrivateParameter holds the secret code and is visible only to the
// issuing and verifying stages; it is never serialized.
type ChallengeRecord struct {
	Kind             string          `json:"kind"`
	PrivateParameter string          `json:"-"`
	PublicParameter  string          `json:"publicParameter"`
	Result           ChallengeResult `json:"result"`
}

// MagicLinkChallenge is the durable form of an issued challenge. It stores
// only the SHA-256 hash of the secret code, never the code itself.
type MagicLinkChallenge struct {
	ID         uuid.UUID
	Email      string
	CodeHash   string
	Result     ChallengeResult
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// IsOpen returns true if the challenge can still accept an answer.
func (c *MagicLinkChallenge) IsOpen() bool {
	if c.ConsumedAt != nil || c.Result != ChallengeResultPending {
		return false
	}
	return time.Now().Before(c.ExpiresAt)
}
