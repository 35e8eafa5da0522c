package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

// UserStore is the identity lookup and creation surface needed by the
// sign-in flow.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}

// TenantStore is the tenant surface needed by provisioning. Create must
// return domain.ErrTenantSlugTaken on a slug uniqueness violation.
type TenantStore interface {
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, tenant *domain.Tenant) error
}

// MembershipStore links users to tenants.
type MembershipStore interface {
	Create(ctx context.Context, membership *domain.Membership) error
	PrimaryTenant(ctx context.Context, userID uuid.UUID) (*domain.Tenant, error)
}

// ChallengeStore persists issued magic-link challenges between the
// request and verify steps.
type ChallengeStore interface {
	Create(ctx context.Context, challenge *domain.MagicLinkChallenge) error
	GetOpenByEmail(ctx context.Context, email string) (*domain.MagicLinkChallenge, error)
	MarkAnswered(ctx context.Context, id uuid.UUID, result domain.ChallengeResult) error
	SupersedeOpen(ctx context.Context, email string) error
}

// SessionStore persists refresh-token backed sessions.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error
}
