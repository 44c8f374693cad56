package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"monay-auth/internal/domain"
)

// ReferralRepository guarda los vinculos hijo/padre creados en el signup.
type ReferralRepository interface {
	CreateLink(ctx context.Context, link domain.ChildParent) error
	ListByChild(ctx context.Context, childID string) ([]domain.ChildParent, error)
}

type PgReferralRepository struct {
	pool *pgxpool.Pool
}

func NewPgReferralRepository(pool *pgxpool.Pool) *PgReferralRepository {
	return &PgReferralRepository{pool: pool}
}

func (r *PgReferralRepository) CreateLink(ctx context.Context, link domain.ChildParent) error {
	const query = `
		INSERT INTO child_parents (id, child_id, parent_id, is_parent_verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.ChildID,
		link.ParentID,
		link.IsParentVerified,
		link.CreatedAt,
	)
	return err
}

func (r *PgReferralRepository) ListByChild(ctx context.Context, childID string) ([]domain.ChildParent, error) {
	const query = `
		SELECT id, child_id, parent_id, is_parent_verified, created_at
		FROM child_parents
		WHERE child_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChildParent
	for rows.Next() {
		var l domain.ChildParent
		if err := rows.Scan(&l.ID, &l.ChildID, &l.ParentID, &l.IsParentVerified, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
