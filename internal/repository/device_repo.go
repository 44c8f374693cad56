package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monay-auth/internal/domain"
)

// DeviceRepository persiste el binding sesion/dispositivo (uno por cuenta) y su historial.
type DeviceRepository interface {
	Upsert(ctx context.Context, binding domain.DeviceBinding) (domain.DeviceBinding, error)
	GetByAccount(ctx context.Context, accountID string) (domain.DeviceBinding, error)
	UpdateAccessToken(ctx context.Context, accountID, token string, expiresAt time.Time) error
	UpdateFirebaseToken(ctx context.Context, accountID, token string) error
	ClearTokens(ctx context.Context, accountID string) error
	AddHistory(ctx context.Context, entry domain.DeviceHistory) error
}

type PgDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewPgDeviceRepository(pool *pgxpool.Pool) *PgDeviceRepository {
	return &PgDeviceRepository{pool: pool}
}

// Upsert es atomico: el indice unico sobre account_id serializa logins concurrentes.
func (r *PgDeviceRepository) Upsert(ctx context.Context, b domain.DeviceBinding) (domain.DeviceBinding, error) {
	const query = `
		INSERT INTO device_bindings (id, account_id, access_token, firebase_token, device_type, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			firebase_token = EXCLUDED.firebase_token,
			device_type = EXCLUDED.device_type,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, account_id, access_token, firebase_token, device_type, expires_at, created_at, updated_at
	`
	var out domain.DeviceBinding
	err := r.pool.QueryRow(ctx, query,
		b.ID,
		b.AccountID,
		b.AccessToken,
		b.FirebaseToken,
		b.DeviceType,
		b.ExpiresAt,
		b.UpdatedAt,
	).Scan(
		&out.ID,
		&out.AccountID,
		&out.AccessToken,
		&out.FirebaseToken,
		&out.DeviceType,
		&out.ExpiresAt,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	return out, err
}

func (r *PgDeviceRepository) GetByAccount(ctx context.Context, accountID string) (domain.DeviceBinding, error) {
	const query = `
		SELECT id, account_id, access_token, firebase_token, device_type, expires_at, created_at, updated_at
		FROM device_bindings
		WHERE account_id = $1
	`
	var b domain.DeviceBinding
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&b.ID,
		&b.AccountID,
		&b.AccessToken,
		&b.FirebaseToken,
		&b.DeviceType,
		&b.ExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DeviceBinding{}, err
	}
	return b, err
}

func (r *PgDeviceRepository) UpdateAccessToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	const query = `
		UPDATE device_bindings SET access_token = $2, expires_at = $3, updated_at = NOW()
		WHERE account_id = $1
	`
	return r.execOne(ctx, query, accountID, token, expiresAt)
}

func (r *PgDeviceRepository) UpdateFirebaseToken(ctx context.Context, accountID, token string) error {
	const query = `
		UPDATE device_bindings SET firebase_token = $2, updated_at = NOW()
		WHERE account_id = $1
	`
	return r.execOne(ctx, query, accountID, token)
}

func (r *PgDeviceRepository) ClearTokens(ctx context.Context, accountID string) error {
	const query = `
		UPDATE device_bindings SET access_token = '', firebase_token = '', updated_at = NOW()
		WHERE account_id = $1
	`
	return r.execOne(ctx, query, accountID)
}

func (r *PgDeviceRepository) AddHistory(ctx context.Context, h domain.DeviceHistory) error {
	const query = `
		INSERT INTO device_history (id, account_id, device_type, device_id, device_model, os_version, app_version, timezone, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		h.ID,
		h.AccountID,
		h.DeviceType,
		h.DeviceID,
		h.DeviceModel,
		h.OSVersion,
		h.AppVersion,
		h.Timezone,
		h.IP,
		h.CreatedAt,
	)
	return err
}

func (r *PgDeviceRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
