package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly-auth/pkg/domain"
)

// ChallengesRepository handles magic-link challenge persistence.
type ChallengesRepository struct {
	db *sql.DB
}

// NewChallengesRepository creates a new challenges repository.
func NewChallengesRepository(db *sql.DB) *ChallengesRepository {
	return &ChallengesRepository{db: db}
}

// Create creates a new challenge.
func (r *ChallengesRepository) Create(ctx context.Context, challenge *domain.MagicLinkChallenge) error {
	return r.CreateTx(ctx, r.db, challenge)
}

// CreateTx creates a new challenge within a transaction.
func (r *ChallengesRepository) CreateTx(ctx context.Context, q Querier, challenge *domain.MagicLinkChallenge) error {
	query := `
		INSERT INTO magic_link_challenges (id, email, code_hash, result, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.ExecContext(ctx, query,
		challenge.ID, challenge.Email, challenge.CodeHash, challenge.Result,
		challenge.CreatedAt, challenge.ExpiresAt,
	)
	return err
}

// GetOpenByEmail retrieves the most recent open challenge for an email.
func (r *ChallengesRepository) GetOpenByEmail(ctx context.Context, email string) (*domain.MagicLinkChallenge, error) {
	query := `
		SELECT id, email, code_hash, result, created_at, expires_at, consumed_at
		FROM magic_link_challenges
		WHERE email = $1 AND consumed_at IS NULL AND result = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	challenge := &domain.MagicLinkChallenge{}
	err := r.db.QueryRowContext(ctx, query, email, domain.ChallengeResultPending).Scan(
		&challenge.ID, &challenge.Email, &challenge.CodeHash, &challenge.Result,
		&challenge.CreatedAt, &challenge.ExpiresAt, &challenge.ConsumedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

// MarkAnswered records the verification outcome and consumes the challenge.
// A challenge accepts exactly one answer; subsequent answers find no open
// challenge.
func (r *ChallengesRepository) MarkAnswered(ctx context.Context, id uuid.UUID, result domain.ChallengeResult) error {
	query := `
		UPDATE magic_link_challenges
		SET result = $1, consumed_at = NOW()
		WHERE id = $2 AND consumed_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, result, id)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrChallengeConsumed
	}
	return nil
}

// SupersedeOpenTx marks all open challenges for an email as consumed,
// within a transaction. Called before issuing a fresh challenge so only
// one link is live per identity.
func (r *ChallengesRepository) SupersedeOpenTx(ctx context.Context, q Querier, email string) error {
	query := `
		UPDATE magic_link_challenges
		SET consumed_at = NOW()
		WHERE email = $1 AND consumed_at IS NULL
	`
	_, err := q.ExecContext(ctx, query, email)
	return err
}

// DeleteExpired removes challenges whose expiry has passed.
func (r *ChallengesRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM magic_link_challenges WHERE expires_at < NOW()`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// SupersedeOpen marks all open challenges for an email as consumed.
func (r *ChallengesRepository) SupersedeOpen(ctx context.Context, email string) error {
	return r.SupersedeOpenTx(ctx, r.db, email)
}
