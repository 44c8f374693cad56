package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monay-auth/internal/domain"
)

// ChannelChangeRepository guarda el historial de cambios de email/movil.
type ChannelChangeRepository interface {
	UpsertPending(ctx context.Context, change domain.ChannelChange) (domain.ChannelChange, error)
	GetPending(ctx context.Context, accountID string, ch domain.Channel, newValue string) (domain.ChannelChange, error)
	Activate(ctx context.Context, change domain.ChannelChange) error
	ListByAccount(ctx context.Context, accountID string) ([]domain.ChannelChange, error)
}

type PgChannelChangeRepository struct {
	pool *pgxpool.Pool
}

func NewPgChannelChangeRepository(pool *pgxpool.Pool) *PgChannelChangeRepository {
	return &PgChannelChangeRepository{pool: pool}
}

// UpsertPending crea la fila pending o refresca su codigo si ya existe para el mismo valor.
func (r *PgChannelChangeRepository) UpsertPending(ctx context.Context, c domain.ChannelChange) (domain.ChannelChange, error) {
	const query = `
		INSERT INTO channel_changes (id, account_id, channel, new_value, code_digest, code_issued_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $7)
		ON CONFLICT (account_id, new_value) WHERE status = 'pending' DO UPDATE SET
			code_digest = EXCLUDED.code_digest,
			code_issued_at = EXCLUDED.code_issued_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, account_id, channel, new_value, code_digest, code_issued_at, status, created_at, updated_at
	`
	return scanChange(r.pool.QueryRow(ctx, query,
		c.ID,
		c.AccountID,
		string(c.Channel),
		c.NewValue,
		c.CodeDigest,
		c.CodeIssuedAt,
		c.UpdatedAt,
	))
}

func (r *PgChannelChangeRepository) GetPending(ctx context.Context, accountID string, ch domain.Channel, newValue string) (domain.ChannelChange, error) {
	const query = `
		SELECT id, account_id, channel, new_value, code_digest, code_issued_at, status, created_at, updated_at
		FROM channel_changes
		WHERE account_id = $1 AND channel = $2 AND new_value = $3 AND status = 'pending'
	`
	return scanChange(r.pool.QueryRow(ctx, query, accountID, string(ch), newValue))
}

// Activate pasa la fila activa previa del canal a old y la pending indicada a active.
func (r *PgChannelChangeRepository) Activate(ctx context.Context, c domain.ChannelChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const retire = `
		UPDATE channel_changes SET status = 'old', updated_at = $3
		WHERE account_id = $1 AND channel = $2 AND status = 'active'
	`
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, retire, c.AccountID, string(c.Channel), now); err != nil {
		return err
	}

	const activate = `
		UPDATE channel_changes SET status = 'active', code_digest = '', code_issued_at = NULL, updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := tx.Exec(ctx, activate, c.ID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func (r *PgChannelChangeRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.ChannelChange, error) {
	const query = `
		SELECT id, account_id, channel, new_value, code_digest, code_issued_at, status, created_at, updated_at
		FROM channel_changes
		WHERE account_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChannelChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChange(row pgx.Row) (domain.ChannelChange, error) {
	var (
		c       domain.ChannelChange
		channel string
		status  string
	)
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&channel,
		&c.NewValue,
		&c.CodeDigest,
		&c.CodeIssuedAt,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChannelChange{}, err
	}
	c.Channel = domain.Channel(channel)
	c.Status = domain.ChangeStatus(status)
	return c, err
}
