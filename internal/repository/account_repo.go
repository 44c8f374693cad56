package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monay-auth/internal/domain"
)

// AccountRepository define el contrato de persistencia para cuentas.
// Los misses devuelven pgx.ErrNoRows.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	UpsertByMobile(ctx context.Context, account domain.Account) (domain.Account, error)
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByMobile(ctx context.Context, mobile string) (domain.Account, error)
	GetByReferralCode(ctx context.Context, code string) (domain.Account, error)
	GetByResetToken(ctx context.Context, token string) (domain.Account, error)
	SetCode(ctx context.Context, id string, ch domain.Channel, digest string, issuedAt time.Time) error
	ConsumeCode(ctx context.Context, id string, ch domain.Channel, digest string) (bool, error)
	ClearCode(ctx context.Context, id string, ch domain.Channel) error
	SetPassword(ctx context.Context, id, hash string) error
	SetPIN(ctx context.Context, id, digest string) error
	SetResetToken(ctx context.Context, id, token string) error
	SetAccountNumber(ctx context.Context, id, number string) error
	SetQRCode(ctx context.Context, id, ref string) error
	SetChannelValue(ctx context.Context, id string, ch domain.Channel, value string) error
}

const accountColumns = `
	id, seq, first_name, last_name, email, mobile, password_hash, pin_digest,
	role, user_type, account_type, is_email_verified, is_mobile_verified,
	is_active, is_blocked, is_deleted, email_code_digest, email_code_issued_at,
	mobile_code_digest, mobile_code_issued_at, password_reset_token,
	account_number, qr_code, referral_code, referred_by, created_at, updated_at`

// PgAccountRepository implementa AccountRepository usando pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

func (r *PgAccountRepository) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	query := `
		INSERT INTO accounts (
			id, first_name, last_name, email, mobile, password_hash, pin_digest,
			role, user_type, account_type, is_email_verified, is_mobile_verified,
			is_active, is_blocked, is_deleted, email_code_digest, email_code_issued_at,
			mobile_code_digest, mobile_code_issued_at, referral_code, referred_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $22)
		RETURNING ` + accountColumns
	out, err := scanAccount(r.pool.QueryRow(ctx, query,
		a.ID,
		a.FirstName,
		a.LastName,
		a.Email,
		a.Mobile,
		a.PasswordHash,
		a.PINDigest,
		a.Role,
		a.UserType,
		a.AccountType,
		a.IsEmailVerified,
		a.IsMobileVerified,
		a.IsActive,
		a.IsBlocked,
		a.IsDeleted,
		a.EmailCodeDigest,
		a.EmailCodeIssuedAt,
		a.MobileCodeDigest,
		a.MobileCodeIssuedAt,
		a.ReferralCode,
		a.ReferredBy,
		a.CreatedAt,
	))
	return out, translateUnique(err)
}

// upsertByMobileQuery fusiona un signup repetido sobre la fila del movil; un signup sin
// referido no borra el referente ya guardado.
const upsertByMobileQuery = `
	INSERT INTO accounts (
		id, first_name, last_name, email, mobile, password_hash, role, user_type,
		account_type, is_email_verified, is_mobile_verified, is_active,
		email_code_digest, email_code_issued_at, mobile_code_digest,
		mobile_code_issued_at, referral_code, referred_by, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, FALSE, TRUE, $10, $11, $12, $13, $14, $15, $16, $16)
	ON CONFLICT (mobile) WHERE mobile <> '' DO UPDATE SET
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		email = EXCLUDED.email,
		password_hash = EXCLUDED.password_hash,
		role = EXCLUDED.role,
		user_type = EXCLUDED.user_type,
		account_type = EXCLUDED.account_type,
		is_email_verified = FALSE,
		is_mobile_verified = FALSE,
		email_code_digest = EXCLUDED.email_code_digest,
		email_code_issued_at = EXCLUDED.email_code_issued_at,
		mobile_code_digest = EXCLUDED.mobile_code_digest,
		mobile_code_issued_at = EXCLUDED.mobile_code_issued_at,
		referral_code = COALESCE(NULLIF(accounts.referral_code, ''), EXCLUDED.referral_code),
		referred_by = COALESCE(NULLIF(EXCLUDED.referred_by, ''), accounts.referred_by),
		updated_at = EXCLUDED.updated_at
	RETURNING ` + accountColumns

// UpsertByMobile inserta la cuenta o, si el movil ya existe, fusiona el registro de signup
// sobre la fila existente conservando su id, su codigo de referido, su referente y su secuencia.
func (r *PgAccountRepository) UpsertByMobile(ctx context.Context, a domain.Account) (domain.Account, error) {
	out, err := scanAccount(r.pool.QueryRow(ctx, upsertByMobileQuery,
		a.ID,
		a.FirstName,
		a.LastName,
		a.Email,
		a.Mobile,
		a.PasswordHash,
		a.Role,
		a.UserType,
		a.AccountType,
		a.EmailCodeDigest,
		a.EmailCodeIssuedAt,
		a.MobileCodeDigest,
		a.MobileCodeIssuedAt,
		a.ReferralCode,
		a.ReferredBy,
		a.UpdatedAt,
	))
	return out, translateUnique(err)
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getOne(ctx, `lower(email) = lower($1) AND email <> ''`, email)
}

func (r *PgAccountRepository) GetByMobile(ctx context.Context, mobile string) (domain.Account, error) {
	return r.getOne(ctx, `mobile = $1 AND mobile <> ''`, mobile)
}

func (r *PgAccountRepository) GetByReferralCode(ctx context.Context, code string) (domain.Account, error) {
	return r.getOne(ctx, `referral_code = $1 AND referral_code <> ''`, code)
}

func (r *PgAccountRepository) GetByResetToken(ctx context.Context, token string) (domain.Account, error) {
	return r.getOne(ctx, `password_reset_token = $1 AND password_reset_token <> ''`, token)
}

func (r *PgAccountRepository) getOne(ctx context.Context, where string, arg any) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where + ` LIMIT 1`
	return scanAccount(r.pool.QueryRow(ctx, query, arg))
}

func (r *PgAccountRepository) SetCode(ctx context.Context, id string, ch domain.Channel, digest string, issuedAt time.Time) error {
	cols := codeColumnsFor(ch)
	query := fmt.Sprintf(`
		UPDATE accounts SET %s = $2, %s = $3, updated_at = NOW()
		WHERE id = $1
	`, cols.digest, cols.issuedAt)
	return r.execOne(ctx, query, id, digest, issuedAt)
}

// ConsumeCode limpia el codigo y marca el canal verificado solo si el digest sigue vigente.
// Dos verificaciones concurrentes del mismo codigo: solo una observa true.
func (r *PgAccountRepository) ConsumeCode(ctx context.Context, id string, ch domain.Channel, digest string) (bool, error) {
	cols := codeColumnsFor(ch)
	query := fmt.Sprintf(`
		UPDATE accounts SET %s = '', %s = NULL, %s = TRUE, updated_at = NOW()
		WHERE id = $1 AND %s = $2 AND %s <> ''
	`, cols.digest, cols.issuedAt, cols.verified, cols.digest, cols.digest)
	tag, err := r.pool.Exec(ctx, query, id, digest)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgAccountRepository) ClearCode(ctx context.Context, id string, ch domain.Channel) error {
	cols := codeColumnsFor(ch)
	query := fmt.Sprintf(`
		UPDATE accounts SET %s = '', %s = NULL, updated_at = NOW()
		WHERE id = $1
	`, cols.digest, cols.issuedAt)
	return r.execOne(ctx, query, id)
}

func (r *PgAccountRepository) SetPassword(ctx context.Context, id, hash string) error {
	const query = `
		UPDATE accounts SET password_hash = $2, password_reset_token = '', updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, hash)
}

func (r *PgAccountRepository) SetPIN(ctx context.Context, id, digest string) error {
	const query = `
		UPDATE accounts SET pin_digest = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, digest)
}

func (r *PgAccountRepository) SetResetToken(ctx context.Context, id, token string) error {
	const query = `
		UPDATE accounts SET password_reset_token = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, token)
}

// SetAccountNumber solo escribe si la cuenta aun no tiene numero asignado.
func (r *PgAccountRepository) SetAccountNumber(ctx context.Context, id, number string) error {
	const query = `
		UPDATE accounts SET account_number = $2, updated_at = NOW()
		WHERE id = $1 AND account_number = ''
	`
	_, err := r.pool.Exec(ctx, query, id, number)
	return err
}

// SetQRCode solo escribe si la cuenta aun no tiene QR.
func (r *PgAccountRepository) SetQRCode(ctx context.Context, id, ref string) error {
	const query = `
		UPDATE accounts SET qr_code = $2, updated_at = NOW()
		WHERE id = $1 AND qr_code = ''
	`
	_, err := r.pool.Exec(ctx, query, id, ref)
	return err
}

func (r *PgAccountRepository) SetChannelValue(ctx context.Context, id string, ch domain.Channel, value string) error {
	cols := codeColumnsFor(ch)
	query := fmt.Sprintf(`
		UPDATE accounts SET %s = $2, %s = TRUE, updated_at = NOW()
		WHERE id = $1
	`, cols.value, cols.verified)
	return translateUnique(r.execOne(ctx, query, id, value))
}

func (r *PgAccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type codeColumns struct {
	value    string
	digest   string
	issuedAt string
	verified string
}

func codeColumnsFor(ch domain.Channel) codeColumns {
	if ch == domain.ChannelEmail {
		return codeColumns{value: "email", digest: "email_code_digest", issuedAt: "email_code_issued_at", verified: "is_email_verified"}
	}
	return codeColumns{value: "mobile", digest: "mobile_code_digest", issuedAt: "mobile_code_issued_at", verified: "is_mobile_verified"}
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.Seq,
		&a.FirstName,
		&a.LastName,
		&a.Email,
		&a.Mobile,
		&a.PasswordHash,
		&a.PINDigest,
		&a.Role,
		&a.UserType,
		&a.AccountType,
		&a.IsEmailVerified,
		&a.IsMobileVerified,
		&a.IsActive,
		&a.IsBlocked,
		&a.IsDeleted,
		&a.EmailCodeDigest,
		&a.EmailCodeIssuedAt,
		&a.MobileCodeDigest,
		&a.MobileCodeIssuedAt,
		&a.PasswordResetToken,
		&a.AccountNumber,
		&a.QRCode,
		&a.ReferralCode,
		&a.ReferredBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, err
	}
	return a, err
}
