package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

const (
	refreshTokenLen = 32

	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	JWTSecret       []byte
	Issuer          string
}

// SessionService issues and refreshes the token set produced by a
// successful sign-in: a JWT access token, a JWT ID token, and an opaque
// refresh token stored hashed.
type SessionService struct {
	config      SessionConfig
	sessions    SessionStore
	users       UserStore
	memberships MembershipStore
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, sessions SessionStore, users UserStore, memberships MembershipStore) *SessionService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &SessionService{
		config:      config,
		sessions:    sessions,
		users:       users,
		memberships: memberships,
	}
}

// AccessTokenTTL returns the access token TTL.
func (s *SessionService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// IssueSessionOpts holds options for session issuance.
type IssueSessionOpts struct {
	IP        string
	UserAgent string
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
	TenantSlug    string `json:"tenant_slug,omitempty"`
}

// IDTokenClaims represents the claims in an ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	TokenUse      string `json:"token_use"`
}

// IssueSession creates a new session and returns the token set. This is
// the single exit point of a successful authentication.
func (s *SessionService) IssueSession(ctx context.Context, userID uuid.UUID, opts IssueSessionOpts) (*domain.TokenSet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The tenant claim is best-effort: a user whose provisioning failed
	// signs in without one until the tenant is created administratively.
	var tenant *domain.Tenant
	if s.memberships != nil {
		t, err := s.memberships.PrimaryTenant(ctx, userID)
		if err != nil && !errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, err
		}
		tenant = t
	}

	now := time.Now()

	refreshToken, err := GenerateToken(refreshTokenLen)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	session := &domain.Session{
		ID:        sessionID,
		UserID:    userID,
		TokenHash: HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
	}
	if tenant != nil {
		tenantID := tenant.ID
		session.TenantID = &tenantID
	}
	if opts.IP != "" || opts.UserAgent != "" {
		metadata, _ := json.Marshal(domain.SessionMetadata{IP: opts.IP, UserAgent: opts.UserAgent})
		session.Metadata = metadata
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return s.mintTokens(user, tenant, sessionID, refreshToken, now)
}

// RefreshSession exchanges a valid refresh token for a fresh token set.
// The refresh token itself is retained.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string) (*domain.TokenSet, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		return nil, err
	}

	if !session.IsValid() {
		if session.RevokedAt != nil {
			return nil, domain.ErrSessionRevoked
		}
		return nil, domain.ErrSessionExpired
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID)

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	var tenant *domain.Tenant
	if s.memberships != nil {
		t, err := s.memberships.PrimaryTenant(ctx, session.UserID)
		if err != nil && !errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, err
		}
		tenant = t
	}

	return s.mintTokens(user, tenant, session.ID, refreshToken, time.Now())
}

func (s *SessionService) mintTokens(user *domain.User, tenant *domain.Tenant, sessionID uuid.UUID, refreshToken string, now time.Time) (*domain.TokenSet, error) {
	expiry := now.Add(s.config.AccessTokenTTL)
	name := ""
	if user.Name != nil {
		name = *user.Name
	}

	accessClaims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			Issuer:    s.config.Issuer,
			ID:        sessionID.String(),
		},
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Name:          name,
	}
	if tenant != nil {
		accessClaims.TenantID = tenant.ID.String()
		accessClaims.TenantSlug = tenant.Slug
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	idClaims := IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			Issuer:    s.config.Issuer,
		},
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Name:          name,
		TokenUse:      "id",
	}

	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, idClaims).SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenSet{
		AccessToken:  accessToken,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:    expiry,
	}, nil
}

// RevokeSession revokes a session by refresh token.
func (s *SessionService) RevokeSession(ctx context.Context, refreshToken string) error {
	return s.sessions.RevokeByTokenHash(ctx, HashToken(refreshToken))
}

// RevokeAllSessions revokes all sessions for a user.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUserID(ctx, userID)
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *SessionService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
