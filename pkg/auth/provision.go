package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

// maxSlugAttempts bounds the slug disambiguation loop. Past this the
// provisioner gives up loudly instead of spinning.
const maxSlugAttempts = 1000

const maxSlugLength = 50

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]`)

// SlugFromEmail derives the base tenant slug from an email address:
// the lower-cased local-part with every character outside [a-z0-9]
// replaced by '-', truncated to 50 characters.
func SlugFromEmail(email string) string {
	local := EmailLocalPart(NormalizeEmail(email))
	slug := slugInvalidChars.ReplaceAllString(local, "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	if slug == "" {
		slug = "tenant"
	}
	return slug
}

// ProvisioningService creates tenants for first-time identities.
type ProvisioningService struct {
	tenants     TenantStore
	memberships MembershipStore
	logger      *slog.Logger
}

// NewProvisioningService creates a new provisioning service.
func NewProvisioningService(tenants TenantStore, memberships MembershipStore, logger *slog.Logger) *ProvisioningService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProvisioningService{
		tenants:     tenants,
		memberships: memberships,
		logger:      logger,
	}
}

// ProvisionTenant creates exactly one tenant for a new identity, plus an
// active membership linking the user to it.
//
// The slug probe is optimistic: two concurrent sign-ups with colliding
// base slugs can both pass the probe, so the storage layer's unique
// constraint is the final arbiter. A rejected insert moves on to the next
// candidate suffix rather than failing the provisioning.
func (s *ProvisioningService) ProvisionTenant(ctx context.Context, user *domain.User) (*domain.Tenant, error) {
	base := SlugFromEmail(user.Email)

	for i := 0; i < maxSlugAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}

		exists, err := s.tenants.ExistsBySlug(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to probe slug %q: %w", candidate, err)
		}
		if exists {
			continue
		}

		now := time.Now()
		tenant := &domain.Tenant{
			ID:           uuid.New(),
			Name:         tenantName(user),
			Slug:         candidate,
			ContactEmail: user.Email,
			Status:       domain.TenantStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err = s.tenants.Create(ctx, tenant)
		if errors.Is(err, domain.ErrTenantSlugTaken) {
			// Lost the probe-then-insert race. Next candidate.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create tenant: %w", err)
		}

		membership := &domain.Membership{
			ID:        uuid.New(),
			TenantID:  tenant.ID,
			UserID:    user.ID,
			Status:    domain.MembershipStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.memberships.Create(ctx, membership); err != nil {
			return nil, fmt.Errorf("failed to create membership: %w", err)
		}

		return tenant, nil
	}

	return nil, fmt.Errorf("%w: base slug %q after %d attempts", domain.ErrSlugSpaceExhausted, base, maxSlugAttempts)
}

func tenantName(user *domain.User) string {
	if user.Name != nil && *user.Name != "" {
		return *user.Name + "'s Organization"
	}
	return "Personal Organization"
}
