package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

const (
	// ChallengeNameCustom is the challenge name announced to the identity
	// provider when a new round is issued.
	ChallengeNameCustom = "CUSTOM_CHALLENGE"

	// ChallengeMetadataMagicLink tags issued challenges as magic-link rounds.
	ChallengeMetadataMagicLink = "MAGIC_LINK"
)

// DefineChallengeInput is the session history of the sign-in attempt,
// ordered oldest first. It is empty when the attempt starts.
type DefineChallengeInput struct {
	Session []domain.ChallengeRecord `json:"session"`
}

// DefineChallengeOutput is the state machine's decision. Exactly one of
// the three outcomes is ever expressed: issue a new challenge, issue
// tokens, or fail the authentication.
type DefineChallengeOutput struct {
	ChallengeName      string `json:"challengeName,omitempty"`
	IssueTokens        bool   `json:"issueTokens"`
	FailAuthentication bool   `json:"failAuthentication"`
}

// DefineChallenge decides the next protocol transition from the attempt's
// history. It is a pure function: no storage, no side effects.
//
// The machine permits exactly one guess per issued secret. An empty
// history starts a challenge; a single correct code-challenge record
// accepts; everything else, including malformed history, rejects.
func DefineChallenge(in DefineChallengeInput) DefineChallengeOutput {
	switch {
	case len(in.Session) == 0:
		return DefineChallengeOutput{ChallengeName: ChallengeNameCustom}
	case len(in.Session) == 1 &&
		in.Session[0].Kind == domain.ChallengeKindCode &&
		in.Session[0].Result == domain.ChallengeResultCorrect:
		return DefineChallengeOutput{IssueTokens: true}
	default:
		return DefineChallengeOutput{FailAuthentication: true}
	}
}

// PrivateChallengeParameters carry the secret side of an issued challenge.
// They are handed to the verify step only and never reach the identity.
type PrivateChallengeParameters struct {
	SecretCode string `json:"secretCode"`
}

// PublicChallengeParameters carry the data safe to echo to the identity.
type PublicChallengeParameters struct {
	Email string `json:"email"`
}

// CreateChallengeInput identifies who the challenge is issued for.
type CreateChallengeInput struct {
	UserAttributes UserAttributes `json:"userAttributes"`
}

// UserAttributes are the claimed identity attributes of a sign-in attempt.
type UserAttributes struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CreateChallengeOutput is the issued challenge. SecretCode lives only in
// the private parameters.
type CreateChallengeOutput struct {
	PrivateChallengeParameters PrivateChallengeParameters `json:"privateChallengeParameters"`
	PublicChallengeParameters  PublicChallengeParameters  `json:"publicChallengeParameters"`
	ChallengeMetadata          string                     `json:"challengeMetadata"`
}

// Notifier delivers a magic-link URL to an email address.
type Notifier interface {
	SendMagicLinkEmail(to, linkURL string) error
}

// ChallengeIssuer mints single-use secret codes and magic-link URLs and
// hands them to the notifier.
type ChallengeIssuer struct {
	frontendBaseURL string
	notifier        Notifier
	logger          *slog.Logger
}

// NewChallengeIssuer creates a new challenge issuer. notifier may be nil,
// in which case links are minted but not delivered.
func NewChallengeIssuer(frontendBaseURL string, notifier Notifier, logger *slog.Logger) *ChallengeIssuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChallengeIssuer{
		frontendBaseURL: frontendBaseURL,
		notifier:        notifier,
		logger:          logger,
	}
}

// CreateChallenge generates a secret code, binds it to the challenge, and
// attempts delivery of the magic link. Delivery failure is logged and
// absorbed: the secret is already bound to the session, so the worst case
// for the user is requesting a new link. The returned output always
// carries the secret when err is nil.
func (ci *ChallengeIssuer) CreateChallenge(in CreateChallengeInput) (CreateChallengeOutput, error) {
	code, err := GenerateSecretCode()
	if err != nil {
		return CreateChallengeOutput{}, fmt.Errorf("failed to generate secret code: %w", err)
	}

	linkURL := MagicLinkURL(ci.frontendBaseURL, in.UserAttributes.Email, code)

	if ci.notifier != nil {
		if err := ci.notifier.SendMagicLinkEmail(in.UserAttributes.Email, linkURL); err != nil {
			ci.logger.Error("failed to deliver magic link email",
				"email", in.UserAttributes.Email,
				"error", err,
			)
		}
	}

	return CreateChallengeOutput{
		PrivateChallengeParameters: PrivateChallengeParameters{SecretCode: code},
		PublicChallengeParameters:  PublicChallengeParameters{Email: in.UserAttributes.Email},
		ChallengeMetadata:          ChallengeMetadataMagicLink,
	}, nil
}

// MagicLinkURL composes the sign-in URL embedding the identity and the
// one-time secret.
func MagicLinkURL(frontendBaseURL, email, code string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("code", code)
	return frontendBaseURL + "/auth/verify?" + q.Encode()
}

// VerifyChallengeInput pairs the issued secret with the submitted answer.
type VerifyChallengeInput struct {
	PrivateChallengeParameters PrivateChallengeParameters `json:"privateChallengeParameters"`
	ChallengeAnswer            string                     `json:"challengeAnswer"`
}

// VerifyChallengeOutput reports whether the answer matched.
type VerifyChallengeOutput struct {
	AnswerCorrect bool `json:"answerCorrect"`
}

// VerifyChallenge compares the submitted answer against the issued secret
// in constant time. It only reports the comparison; accept/reject is
// DefineChallenge's decision.
func VerifyChallenge(in VerifyChallengeInput) VerifyChallengeOutput {
	match := subtle.ConstantTimeCompare(
		[]byte(in.PrivateChallengeParameters.SecretCode),
		[]byte(in.ChallengeAnswer),
	) == 1
	return VerifyChallengeOutput{AnswerCorrect: match}
}
