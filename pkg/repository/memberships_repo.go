package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

// MembershipsRepository handles membership data persistence.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

// MembershipWithTenant combines membership and tenant details for sign-in.
type MembershipWithTenant struct {
	Membership domain.Membership
	Tenant     domain.Tenant
}

// Create creates a new membership.
func (r *MembershipsRepository) Create(ctx context.Context, membership *domain.Membership) error {
	return r.CreateTx(ctx, r.db, membership)
}

// CreateTx creates a new membership within a transaction.
func (r *MembershipsRepository) CreateTx(ctx context.Context, q Querier, membership *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, tenant_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.ExecContext(ctx, query,
		membership.ID,
		membership.TenantID,
		membership.UserID,
		membership.Status,
		membership.CreatedAt,
		membership.UpdatedAt,
	)
	return err
}

// GetActiveMembershipsWithTenants retrieves active memberships joined with
// their tenants, oldest first.
func (r *MembershipsRepository) GetActiveMembershipsWithTenants(ctx context.Context, userID uuid.UUID) ([]*MembershipWithTenant, error) {
	query := `
		SELECT m.id, m.tenant_id, m.user_id, m.status, m.created_at, m.updated_at, m.deleted_at,
		       t.id, t.name, t.slug, t.contact_email, t.status, t.created_at, t.updated_at, t.deleted_at
		FROM memberships m
		JOIN tenants t ON t.id = m.tenant_id
		WHERE m.user_id = $1 AND m.status = $2
		  AND m.deleted_at IS NULL AND t.deleted_at IS NULL
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, domain.MembershipStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*MembershipWithTenant
	for rows.Next() {
		var mt MembershipWithTenant
		err := rows.Scan(
			&mt.Membership.ID,
			&mt.Membership.TenantID,
			&mt.Membership.UserID,
			&mt.Membership.Status,
			&mt.Membership.CreatedAt,
			&mt.Membership.UpdatedAt,
			&mt.Membership.DeletedAt,
			&mt.Tenant.ID,
			&mt.Tenant.Name,
			&mt.Tenant.Slug,
			&mt.Tenant.ContactEmail,
			&mt.Tenant.Status,
			&mt.Tenant.CreatedAt,
			&mt.Tenant.UpdatedAt,
			&mt.Tenant.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, &mt)
	}
	return results, rows.Err()
}

// PrimaryTenant returns the tenant of the user's oldest active membership.
func (r *MembershipsRepository) PrimaryTenant(ctx context.Context, userID uuid.UUID) (*domain.Tenant, error) {
	memberships, err := r.GetActiveMembershipsWithTenants(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, domain.ErrMembershipNotFound
	}
	tenant := memberships[0].Tenant
	return &tenant, nil
}
