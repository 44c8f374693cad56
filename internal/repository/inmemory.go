package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"monay-auth/internal/domain"
)

// Implementaciones en memoria con la misma semantica que las Pg*: misses con pgx.ErrNoRows,
// indices unicos con ErrDuplicate. Solo las usan los tests.

type MemoryAccountRepository struct {
	mu       sync.Mutex
	seq      int64
	accounts map[string]domain.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]domain.Account)}
}

func (r *MemoryAccountRepository) Create(_ context.Context, a domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.ID]; ok {
		return domain.Account{}, ErrDuplicate
	}
	if r.conflictLocked(a.ID, a.Email, a.Mobile, a.ReferralCode) {
		return domain.Account{}, ErrDuplicate
	}
	r.seq++
	a.Seq = r.seq
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	r.accounts[a.ID] = a
	return a, nil
}

func (r *MemoryAccountRepository) UpsertByMobile(ctx context.Context, a domain.Account) (domain.Account, error) {
	r.mu.Lock()
	existing, found := r.findLocked(func(x domain.Account) bool { return a.Mobile != "" && x.Mobile == a.Mobile })
	if !found {
		r.mu.Unlock()
		a.IsEmailVerified = false
		a.IsMobileVerified = false
		a.IsActive = true
		if a.CreatedAt.IsZero() {
			a.CreatedAt = a.UpdatedAt
		}
		return r.Create(ctx, a)
	}
	defer r.mu.Unlock()
	if r.conflictLocked(existing.ID, a.Email, "", "") {
		return domain.Account{}, ErrDuplicate
	}
	existing.FirstName = a.FirstName
	existing.LastName = a.LastName
	existing.Email = a.Email
	existing.PasswordHash = a.PasswordHash
	existing.Role = a.Role
	existing.UserType = a.UserType
	existing.AccountType = a.AccountType
	existing.IsEmailVerified = false
	existing.IsMobileVerified = false
	existing.EmailCodeDigest = a.EmailCodeDigest
	existing.EmailCodeIssuedAt = a.EmailCodeIssuedAt
	existing.MobileCodeDigest = a.MobileCodeDigest
	existing.MobileCodeIssuedAt = a.MobileCodeIssuedAt
	if existing.ReferralCode == "" {
		existing.ReferralCode = a.ReferralCode
	}
	if a.ReferredBy != "" {
		existing.ReferredBy = a.ReferredBy
	}
	existing.UpdatedAt = a.UpdatedAt
	r.accounts[existing.ID] = existing
	return existing, nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	return a, nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	return r.getOne(func(a domain.Account) bool { return email != "" && strings.EqualFold(a.Email, email) })
}

func (r *MemoryAccountRepository) GetByMobile(_ context.Context, mobile string) (domain.Account, error) {
	return r.getOne(func(a domain.Account) bool { return mobile != "" && a.Mobile == mobile })
}

func (r *MemoryAccountRepository) GetByReferralCode(_ context.Context, code string) (domain.Account, error) {
	return r.getOne(func(a domain.Account) bool { return code != "" && a.ReferralCode == code })
}

func (r *MemoryAccountRepository) GetByResetToken(_ context.Context, token string) (domain.Account, error) {
	return r.getOne(func(a domain.Account) bool { return token != "" && a.PasswordResetToken == token })
}

func (r *MemoryAccountRepository) SetCode(_ context.Context, id string, ch domain.Channel, digest string, issuedAt time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		t := issuedAt
		if ch == domain.ChannelEmail {
			a.EmailCodeDigest, a.EmailCodeIssuedAt = digest, &t
			return
		}
		a.MobileCodeDigest, a.MobileCodeIssuedAt = digest, &t
	})
}

func (r *MemoryAccountRepository) ConsumeCode(_ context.Context, id string, ch domain.Channel, digest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return false, nil
	}
	current, _ := a.CodeState(ch)
	if current == "" || current != digest {
		return false, nil
	}
	if ch == domain.ChannelEmail {
		a.EmailCodeDigest, a.EmailCodeIssuedAt, a.IsEmailVerified = "", nil, true
	} else {
		a.MobileCodeDigest, a.MobileCodeIssuedAt, a.IsMobileVerified = "", nil, true
	}
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return true, nil
}

func (r *MemoryAccountRepository) ClearCode(_ context.Context, id string, ch domain.Channel) error {
	return r.mutate(id, func(a *domain.Account) {
		if ch == domain.ChannelEmail {
			a.EmailCodeDigest, a.EmailCodeIssuedAt = "", nil
			return
		}
		a.MobileCodeDigest, a.MobileCodeIssuedAt = "", nil
	})
}

func (r *MemoryAccountRepository) SetPassword(_ context.Context, id, hash string) error {
	return r.mutate(id, func(a *domain.Account) {
		a.PasswordHash = hash
		a.PasswordResetToken = ""
	})
}

func (r *MemoryAccountRepository) SetPIN(_ context.Context, id, digest string) error {
	return r.mutate(id, func(a *domain.Account) { a.PINDigest = digest })
}

func (r *MemoryAccountRepository) SetResetToken(_ context.Context, id, token string) error {
	return r.mutate(id, func(a *domain.Account) { a.PasswordResetToken = token })
}

func (r *MemoryAccountRepository) SetAccountNumber(_ context.Context, id, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok && a.AccountNumber == "" {
		a.AccountNumber = number
		r.accounts[id] = a
	}
	return nil
}

func (r *MemoryAccountRepository) SetQRCode(_ context.Context, id, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok && a.QRCode == "" {
		a.QRCode = ref
		r.accounts[id] = a
	}
	return nil
}

func (r *MemoryAccountRepository) SetChannelValue(_ context.Context, id string, ch domain.Channel, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if ch == domain.ChannelEmail {
		if r.conflictLocked(id, value, "", "") {
			return ErrDuplicate
		}
		a.Email, a.IsEmailVerified = value, true
	} else {
		if r.conflictLocked(id, "", value, "") {
			return ErrDuplicate
		}
		a.Mobile, a.IsMobileVerified = value, true
	}
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return nil
}

// Put reemplaza la fila tal cual; solo para preparar escenarios en tests.
func (r *MemoryAccountRepository) Put(a domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Seq == 0 {
		r.seq++
		a.Seq = r.seq
	}
	r.accounts[a.ID] = a
}

// Count devuelve el numero de filas.
func (r *MemoryAccountRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func (r *MemoryAccountRepository) getOne(match func(domain.Account) bool) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.findLocked(match)
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	return a, nil
}

func (r *MemoryAccountRepository) findLocked(match func(domain.Account) bool) (domain.Account, bool) {
	for _, a := range r.accounts {
		if match(a) {
			return a, true
		}
	}
	return domain.Account{}, false
}

func (r *MemoryAccountRepository) conflictLocked(selfID, email, mobile, referral string) bool {
	for id, a := range r.accounts {
		if id == selfID {
			continue
		}
		if email != "" && strings.EqualFold(a.Email, email) {
			return true
		}
		if mobile != "" && a.Mobile == mobile {
			return true
		}
		if referral != "" && a.ReferralCode == referral {
			return true
		}
	}
	return false
}

func (r *MemoryAccountRepository) mutate(id string, fn func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&a)
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return nil
}

type MemoryDeviceRepository struct {
	mu       sync.Mutex
	bindings map[string]domain.DeviceBinding
	history  []domain.DeviceHistory
}

func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{bindings: make(map[string]domain.DeviceBinding)}
}

func (r *MemoryDeviceRepository) Upsert(_ context.Context, b domain.DeviceBinding) (domain.DeviceBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.bindings[b.AccountID]; ok {
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
	} else if b.CreatedAt.IsZero() {
		b.CreatedAt = b.UpdatedAt
	}
	r.bindings[b.AccountID] = b
	return b, nil
}

func (r *MemoryDeviceRepository) GetByAccount(_ context.Context, accountID string) (domain.DeviceBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[accountID]
	if !ok {
		return domain.DeviceBinding{}, pgx.ErrNoRows
	}
	return b, nil
}

func (r *MemoryDeviceRepository) UpdateAccessToken(_ context.Context, accountID, token string, expiresAt time.Time) error {
	return r.mutate(accountID, func(b *domain.DeviceBinding) {
		b.AccessToken = token
		b.ExpiresAt = expiresAt
	})
}

func (r *MemoryDeviceRepository) UpdateFirebaseToken(_ context.Context, accountID, token string) error {
	return r.mutate(accountID, func(b *domain.DeviceBinding) { b.FirebaseToken = token })
}

func (r *MemoryDeviceRepository) ClearTokens(_ context.Context, accountID string) error {
	return r.mutate(accountID, func(b *domain.DeviceBinding) {
		b.AccessToken = ""
		b.FirebaseToken = ""
	})
}

func (r *MemoryDeviceRepository) AddHistory(_ context.Context, h domain.DeviceHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, h)
	return nil
}

// History devuelve una copia del historial de una cuenta.
func (r *MemoryDeviceRepository) History(accountID string) []domain.DeviceHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DeviceHistory
	for _, h := range r.history {
		if h.AccountID == accountID {
			out = append(out, h)
		}
	}
	return out
}

func (r *MemoryDeviceRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

func (r *MemoryDeviceRepository) mutate(accountID string, fn func(*domain.DeviceBinding)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[accountID]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&b)
	b.UpdatedAt = time.Now().UTC()
	r.bindings[accountID] = b
	return nil
}

type MemoryChannelChangeRepository struct {
	mu      sync.Mutex
	changes map[string]domain.ChannelChange
}

func NewMemoryChannelChangeRepository() *MemoryChannelChangeRepository {
	return &MemoryChannelChangeRepository{changes: make(map[string]domain.ChannelChange)}
}

func (r *MemoryChannelChangeRepository) UpsertPending(_ context.Context, c domain.ChannelChange) (domain.ChannelChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.changes {
		if existing.AccountID == c.AccountID && existing.NewValue == c.NewValue && existing.Status == domain.ChangePending {
			existing.CodeDigest = c.CodeDigest
			existing.CodeIssuedAt = c.CodeIssuedAt
			existing.UpdatedAt = c.UpdatedAt
			r.changes[id] = existing
			return existing, nil
		}
	}
	c.Status = domain.ChangePending
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	r.changes[c.ID] = c
	return c, nil
}

func (r *MemoryChannelChangeRepository) GetPending(_ context.Context, accountID string, ch domain.Channel, newValue string) (domain.ChannelChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.changes {
		if c.AccountID == accountID && c.Channel == ch && c.NewValue == newValue && c.Status == domain.ChangePending {
			return c, nil
		}
	}
	return domain.ChannelChange{}, pgx.ErrNoRows
}

func (r *MemoryChannelChangeRepository) Activate(_ context.Context, target domain.ChannelChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, ok := r.changes[target.ID]
	if !ok || pending.Status != domain.ChangePending {
		return pgx.ErrNoRows
	}
	now := time.Now().UTC()
	for id, c := range r.changes {
		if c.AccountID == target.AccountID && c.Channel == target.Channel && c.Status == domain.ChangeActive {
			c.Status = domain.ChangeOld
			c.UpdatedAt = now
			r.changes[id] = c
		}
	}
	pending.Status = domain.ChangeActive
	pending.CodeDigest = ""
	pending.CodeIssuedAt = nil
	pending.UpdatedAt = now
	r.changes[pending.ID] = pending
	return nil
}

func (r *MemoryChannelChangeRepository) ListByAccount(_ context.Context, accountID string) ([]domain.ChannelChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ChannelChange
	for _, c := range r.changes {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type MemoryReferralRepository struct {
	mu    sync.Mutex
	links []domain.ChildParent
}

func NewMemoryReferralRepository() *MemoryReferralRepository {
	return &MemoryReferralRepository{}
}

func (r *MemoryReferralRepository) CreateLink(_ context.Context, link domain.ChildParent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, link)
	return nil
}

func (r *MemoryReferralRepository) ListByChild(_ context.Context, childID string) ([]domain.ChildParent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ChildParent
	for _, l := range r.links {
		if l.ChildID == childID {
			out = append(out, l)
		}
	}
	return out, nil
}

var (
	_ AccountRepository       = (*PgAccountRepository)(nil)
	_ AccountRepository       = (*MemoryAccountRepository)(nil)
	_ DeviceRepository        = (*PgDeviceRepository)(nil)
	_ DeviceRepository        = (*MemoryDeviceRepository)(nil)
	_ ChannelChangeRepository = (*PgChannelChangeRepository)(nil)
	_ ChannelChangeRepository = (*MemoryChannelChangeRepository)(nil)
	_ ReferralRepository      = (*PgReferralRepository)(nil)
	_ ReferralRepository      = (*MemoryReferralRepository)(nil)
)
