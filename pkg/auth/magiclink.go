package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

// DefaultChallengeTTL is how long a magic link stays valid. Expiry is
// enforced server-side at verification, not just in the email copy.
const DefaultChallengeTTL = 15 * time.Minute

// MagicLinkConfig holds magic-link flow configuration.
type MagicLinkConfig struct {
	ChallengeTTL time.Duration
}

// MagicLinkService orchestrates the passwordless sign-in protocol:
// identity lookup, first-sign-in provisioning, the challenge state
// machine, and token issuance.
type MagicLinkService struct {
	config      MagicLinkConfig
	users       UserStore
	challenges  ChallengeStore
	issuer      *ChallengeIssuer
	sessions    *SessionService
	provisioner *ProvisioningService
	logger      *slog.Logger
}

// NewMagicLinkService creates a new magic-link service.
func NewMagicLinkService(
	config MagicLinkConfig,
	users UserStore,
	challenges ChallengeStore,
	issuer *ChallengeIssuer,
	sessions *SessionService,
	provisioner *ProvisioningService,
	logger *slog.Logger,
) *MagicLinkService {
	if config.ChallengeTTL == 0 {
		config.ChallengeTTL = DefaultChallengeTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MagicLinkService{
		config:      config,
		users:       users,
		challenges:  challenges,
		issuer:      issuer,
		sessions:    sessions,
		provisioner: provisioner,
		logger:      logger,
	}
}

// PreSignUpInput identifies the signing-up identity.
type PreSignUpInput struct {
	UserAttributes UserAttributes `json:"userAttributes"`
	UserPoolID     string         `json:"userPoolId"`
}

// PreSignUpOutput reports whether the identity was auto-confirmed.
type PreSignUpOutput struct {
	AutoConfirmUser bool `json:"autoConfirmUser"`
	AutoVerifyEmail bool `json:"autoVerifyEmail"`
}

// PreSignUp runs the pre-authentication step for a claimed identity.
//
// A known identity passes through untouched. An identity the lookup
// definitively does not know is auto-confirmed: the user row is created
// with a verified email (possession of the inbox is proven by the link),
// and a tenant is provisioned best-effort. Any other lookup error is
// fatal; treating it as not-found would let transient provider errors
// create duplicate tenants.
func (s *MagicLinkService) PreSignUp(ctx context.Context, in PreSignUpInput) (PreSignUpOutput, error) {
	email := NormalizeEmail(in.UserAttributes.Email)

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return PreSignUpOutput{}, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return PreSignUpOutput{}, fmt.Errorf("identity lookup failed: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:            uuid.New(),
		Email:         email,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.UserAttributes.Name != "" {
		name := in.UserAttributes.Name
		user.Name = &name
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent sign-up may create the row between lookup and
		// insert; that is the existing-identity path, not a failure.
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return PreSignUpOutput{}, nil
		}
		return PreSignUpOutput{}, fmt.Errorf("failed to create user: %w", err)
	}

	// Best-effort: a failed provisioning must not fail the sign-up. The
	// tenant can be created later through an administrative path.
	if s.provisioner != nil {
		if _, err := s.provisioner.ProvisionTenant(ctx, user); err != nil {
			s.logger.Error("tenant provisioning failed",
				"email", email,
				"error", err,
			)
		}
	}

	return PreSignUpOutput{AutoConfirmUser: true, AutoVerifyEmail: true}, nil
}

// RequestLink starts a sign-in attempt for the given email: pre-sign-up,
// then a fresh challenge whose secret is delivered as a magic link. The
// stored challenge holds only the hash of the secret.
func (s *MagicLinkService) RequestLink(ctx context.Context, email, name string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	email = NormalizeEmail(email)

	if _, err := s.PreSignUp(ctx, PreSignUpInput{
		UserAttributes: UserAttributes{Email: email, Name: name},
	}); err != nil {
		return err
	}

	// A sign-in attempt starts with an empty history; anything else from
	// the state machine here means a protocol bug.
	decision := DefineChallenge(DefineChallengeInput{})
	if decision.ChallengeName != ChallengeNameCustom {
		return fmt.Errorf("unexpected state machine decision for empty history")
	}

	out, err := s.issuer.CreateChallenge(CreateChallengeInput{
		UserAttributes: UserAttributes{Email: email, Name: name},
	})
	if err != nil {
		return err
	}

	if err := s.challenges.SupersedeOpen(ctx, email); err != nil {
		return fmt.Errorf("failed to supersede open challenges: %w", err)
	}

	now := time.Now()
	challenge := &domain.MagicLinkChallenge{
		ID:        uuid.New(),
		Email:     email,
		CodeHash:  HashToken(out.PrivateChallengeParameters.SecretCode),
		Result:    domain.ChallengeResultPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.ChallengeTTL),
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	s.logger.Info("magic link issued", "email", email, "challenge_id", challenge.ID)
	return nil
}

// VerifyLink answers the open challenge for the email with the submitted
// code and runs the state machine over the resulting history. Exactly one
// answer is accepted per challenge: the record is consumed whether the
// code matched or not, so a second guess finds no open challenge.
func (s *MagicLinkService) VerifyLink(ctx context.Context, email, code string, opts IssueSessionOpts) (*domain.TokenSet, error) {
	email = NormalizeEmail(email)

	challenge, err := s.challenges.GetOpenByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			return nil, domain.ErrChallengeRejected
		}
		return nil, err
	}

	if !challenge.IsOpen() {
		return nil, domain.ErrChallengeExpired
	}

	// Constant-time comparison over hashes; the plaintext secret is never
	// persisted, so the stored side is already a digest.
	verdict := VerifyChallenge(VerifyChallengeInput{
		PrivateChallengeParameters: PrivateChallengeParameters{SecretCode: challenge.CodeHash},
		ChallengeAnswer:            HashToken(code),
	})

	result := domain.ChallengeResultIncorrect
	if verdict.AnswerCorrect {
		result = domain.ChallengeResultCorrect
	}

	// Consuming the record is what enforces the single-guess invariant;
	// losing this race means another answer got there first, which is a
	// rejection, not a retry.
	if err := s.challenges.MarkAnswered(ctx, challenge.ID, result); err != nil {
		if errors.Is(err, domain.ErrChallengeConsumed) {
			return nil, domain.ErrChallengeRejected
		}
		return nil, err
	}

	history := []domain.ChallengeRecord{{
		Kind:            domain.ChallengeKindCode,
		PublicParameter: email,
		Result:          result,
	}}
	decision := DefineChallenge(DefineChallengeInput{Session: history})
	if !decision.IssueTokens {
		s.logger.Info("magic link verification rejected", "email", email, "challenge_id", challenge.ID)
		return nil, domain.ErrChallengeRejected
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	tokens, err := s.sessions.IssueSession(ctx, user.ID, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sign-in accepted", "user_id", user.ID, "challenge_id", challenge.ID)
	return tokens, nil
}
