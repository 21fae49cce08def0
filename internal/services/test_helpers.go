package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fleurease/fleurease-api/internal/cache"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/storage"
	"github.com/fleurease/fleurease-api/pkg/auth"
	pkglogger "github.com/fleurease/fleurease-api/pkg/logger"
	"github.com/google/uuid"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(newTestLogger())
}

// fakeClock is a settable Clock
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// MockAccountRepository keeps accounts in memory. Any XxxFunc that is set
// replaces the in-memory behaviour for that method.
type MockAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account

	CreateFunc                 func(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByEmailFunc             func(ctx context.Context, email string) (*models.Account, error)
	ListFunc                   func(ctx context.Context) ([]*models.Account, error)
	UpdateFunc                 func(ctx context.Context, a *models.Account) (*models.Account, error)
	DeleteFunc                 func(ctx context.Context, id string) error
	SetVerificationTokenFunc   func(ctx context.Context, id, hash string, expiresAt time.Time) error
	ClearVerificationTokenFunc func(ctx context.Context, id string) error
	ClearResetTokenFunc        func(ctx context.Context, id string) error
	ConsumeVerificationTokenFn func(ctx context.Context, hash string, now time.Time) (*models.Account, error)

	DeleteCalls int
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{accounts: make(map[string]*models.Account)}
}

// Seed stores a copy of a and returns it with ID and token key filled in.
func (m *MockAccountRepository) Seed(a models.Account) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.TokenKey == "" {
		a.TokenKey = "key-" + a.ID
	}
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	m.accounts[a.ID] = &a
	return m.copyOf(&a)
}

// Get returns a snapshot of the stored account, or nil.
func (m *MockAccountRepository) Get(id string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	return m.copyOf(a)
}

func (m *MockAccountRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *MockAccountRepository) copyOf(a *models.Account) *models.Account {
	c := *a
	return &c
}

func (m *MockAccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, a)
	}
	m.mu.Lock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			m.mu.Unlock()
			return nil, models.ErrConflict
		}
	}
	m.mu.Unlock()

	a.CreatedAt = time.Now()
	return m.Seed(*a), nil
}

func (m *MockAccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	if a := m.Get(id); a != nil {
		return a, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return m.copyOf(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, m.copyOf(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MockAccountRepository) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, a)
	}
	return m.mutate(a.ID, func(s *models.Account) {
		s.Email, s.Name, s.Role, s.Avatar = a.Email, a.Name, a.Role, a.Avatar
		s.IsSuspended, s.SuspensionReason = a.IsSuspended, a.SuspensionReason
	})
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	m.DeleteCalls++
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *MockAccountRepository) UpdatePassword(_ context.Context, id, passwordHash, tokenKey string, changedAt time.Time) error {
	_, err := m.mutate(id, func(s *models.Account) {
		s.PasswordHash, s.TokenKey, s.PasswordChangedAt = passwordHash, tokenKey, &changedAt
	})
	return err
}

func (m *MockAccountRepository) SetVerificationToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	if m.SetVerificationTokenFunc != nil {
		return m.SetVerificationTokenFunc(ctx, id, hash, expiresAt)
	}
	_, err := m.mutate(id, func(s *models.Account) {
		s.VerificationTokenHash, s.VerificationTokenExpiresAt = &hash, &expiresAt
	})
	return err
}

func (m *MockAccountRepository) ClearVerificationToken(ctx context.Context, id string) error {
	if m.ClearVerificationTokenFunc != nil {
		return m.ClearVerificationTokenFunc(ctx, id)
	}
	_, err := m.mutate(id, func(s *models.Account) {
		s.VerificationTokenHash, s.VerificationTokenExpiresAt = nil, nil
	})
	return err
}

func (m *MockAccountRepository) ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (*models.Account, error) {
	if m.ConsumeVerificationTokenFn != nil {
		return m.ConsumeVerificationTokenFn(ctx, hash, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.VerificationTokenHash != nil && *a.VerificationTokenHash == hash && a.VerificationTokenExpiresAt.After(now) {
			a.IsVerified = true
			a.VerificationTokenHash, a.VerificationTokenExpiresAt = nil, nil
			return m.copyOf(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) SetResetToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	_, err := m.mutate(id, func(s *models.Account) {
		s.ResetTokenHash, s.ResetTokenExpiresAt = &hash, &expiresAt
	})
	return err
}

func (m *MockAccountRepository) ClearResetToken(ctx context.Context, id string) error {
	if m.ClearResetTokenFunc != nil {
		return m.ClearResetTokenFunc(ctx, id)
	}
	_, err := m.mutate(id, func(s *models.Account) {
		s.ResetTokenHash, s.ResetTokenExpiresAt = nil, nil
	})
	return err
}

func (m *MockAccountRepository) ConsumeResetToken(_ context.Context, hash string, now time.Time, passwordHash, tokenKey string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ResetTokenHash != nil && *a.ResetTokenHash == hash && a.ResetTokenExpiresAt.After(now) {
			a.PasswordHash, a.TokenKey, a.PasswordChangedAt = passwordHash, tokenKey, &now
			a.ResetTokenHash, a.ResetTokenExpiresAt = nil, nil
			return m.copyOf(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) mutate(id string, fn func(*models.Account)) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	fn(a)
	return m.copyOf(a), nil
}

// MockAvatarStore records uploads and deletes
type MockAvatarStore struct {
	mu       sync.Mutex
	Uploaded []models.Avatar
	Deleted  []string

	UploadFunc func(ctx context.Context, dataURL string, opts storage.UploadOptions) (models.Avatar, error)
	DeleteFunc func(ctx context.Context, publicID string) error
}

func (m *MockAvatarStore) Upload(ctx context.Context, dataURL string, opts storage.UploadOptions) (models.Avatar, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, dataURL, opts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d.png", opts.Folder, len(m.Uploaded)+1)
	a := models.Avatar{PublicID: key, URL: "https://cdn.test/" + key}
	m.Uploaded = append(m.Uploaded, a)
	return a, nil
}

func (m *MockAvatarStore) Delete(ctx context.Context, publicID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, publicID)
	}
	if !(models.Avatar{PublicID: publicID}).IsHosted() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, publicID)
	return nil
}

// Remaining lists uploaded avatars that were not deleted.
func (m *MockAvatarStore) Remaining() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := make(map[string]bool, len(m.Deleted))
	for _, id := range m.Deleted {
		deleted[id] = true
	}
	var out []string
	for _, a := range m.Uploaded {
		if !deleted[a.PublicID] {
			out = append(out, a.PublicID)
		}
	}
	return out
}

// sentMail is one message handed to MockMailer
type sentMail struct {
	Kind  string
	To    string
	Token string
}

// MockMailer records what it was asked to send. Err, when set, fails every send.
type MockMailer struct {
	mu   sync.Mutex
	Sent []sentMail
	Err  error
}

func (m *MockMailer) record(kind, to, token string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMail{Kind: kind, To: to, Token: token})
	return nil
}

func (m *MockMailer) SendVerification(_ context.Context, to, _, token string, _ time.Time) error {
	return m.record("verification", to, token)
}

func (m *MockMailer) SendPasswordReset(_ context.Context, to, _, token string, _ time.Time) error {
	return m.record("reset", to, token)
}

func (m *MockMailer) SendSuspended(_ context.Context, to, _, _ string) error {
	return m.record("suspended", to, "")
}

func (m *MockMailer) SendUnsuspended(_ context.Context, to, _ string) error {
	return m.record("unsuspended", to, "")
}

func (m *MockMailer) Last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return sentMail{}
	}
	return m.Sent[len(m.Sent)-1]
}

// MockSessionIssuer signs nothing; the token names the account and its key.
type MockSessionIssuer struct{}

func (MockSessionIssuer) GenerateAccessToken(a *models.Account) (string, time.Time, error) {
	return "session:" + a.ID + ":" + a.TokenKey, time.Now().Add(time.Hour), nil
}

// failingQueue rejects every push
type failingQueue struct{ *cache.MemoryOrphanQueue }

func newFailingQueue() failingQueue { return failingQueue{cache.NewMemoryOrphanQueue()} }

func (failingQueue) Push(context.Context, cache.Orphan) error { return fmt.Errorf("queue down") }

// MockWishlistRepository implements WishlistRepository for testing
type MockWishlistRepository struct {
	AddFunc    func(ctx context.Context, accountID, productID string) error
	RemoveFunc func(ctx context.Context, accountID, productID string) error
	ListFunc   func(ctx context.Context, accountID string) ([]models.Product, error)
}

func (m *MockWishlistRepository) Add(ctx context.Context, accountID, productID string) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, accountID, productID)
	}
	return nil
}

func (m *MockWishlistRepository) Remove(ctx context.Context, accountID, productID string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, accountID, productID)
	}
	return nil
}

func (m *MockWishlistRepository) List(ctx context.Context, accountID string) ([]models.Product, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, accountID)
	}
	return []models.Product{}, nil
}

// MockProductRepository implements ProductReader and ProductLookup for testing
type MockProductRepository struct {
	ListFunc        func(ctx context.Context) ([]models.Product, error)
	GetByIDFunc     func(ctx context.Context, id string) (models.Product, error)
	SalesSharesFunc func(ctx context.Context) ([]models.ProductSalesShare, error)
}

func (m *MockProductRepository) List(ctx context.Context) ([]models.Product, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []models.Product{}, nil
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (models.Product, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return models.Product{ID: id}, nil
}

func (m *MockProductRepository) SalesShares(ctx context.Context) ([]models.ProductSalesShare, error) {
	if m.SalesSharesFunc != nil {
		return m.SalesSharesFunc(ctx)
	}
	return []models.ProductSalesShare{}, nil
}

// MockOrderRepository implements OrderReader for testing
type MockOrderRepository struct {
	ListFunc         func(ctx context.Context) ([]models.Order, error)
	MonthlySalesFunc func(ctx context.Context) ([]models.MonthlySales, error)
}

func (m *MockOrderRepository) List(ctx context.Context) ([]models.Order, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []models.Order{}, nil
}

func (m *MockOrderRepository) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	if m.MonthlySalesFunc != nil {
		return m.MonthlySalesFunc(ctx)
	}
	return []models.MonthlySales{}, nil
}

// hashedPassword returns a bcrypt hash of pw or panics.
func hashedPassword(pw string) string {
	h, err := auth.HashPassword(pw)
	if err != nil {
		panic(err)
	}
	return h
}
