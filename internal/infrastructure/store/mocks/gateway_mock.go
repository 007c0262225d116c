package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/domain/profile"
	"github.com/example/stockroom/internal/gateway"
	"github.com/google/uuid"
)

// MockGateway is an in-memory gateway.Gateway for testing. Each *Err field
// makes the matching call fail; calls are recorded either way.
type MockGateway struct {
	mu       sync.RWMutex
	sessions map[string]gateway.Session
	profiles map[string]profile.Profile
	products map[string]product.Product
	audit    []audit.Entry

	GetSessionErr    error
	CreateSessionErr error
	SignOutErr       error
	GetProfileErr    error
	CreateProfileErr error
	ListProfilesErr  error
	SetApprovalErr   error
	ListProductsErr  error
	GetProductErr    error
	CreateProductErr error
	UpdateProductErr error
	UpdateByCatErr   error
	DeleteProductErr error
	CountProductsErr error
	InsertAuditErr   error
	ListAuditErr     error

	// For tracking calls in tests
	ListProductsCalls  int
	GetProductCalls    []string
	CreateProductCalls []product.Draft
	UpdateProductCalls []UpdateProductCall
	UpdateByCatCalls   []UpdateByCategoryCall
	DeleteProductCalls []string
	CountProductsCalls []product.Query
	InsertAuditCalls   []audit.Entry
	SignOutCalls       []string
	ApprovalCalls      []ApprovalCall

	// ListProductsHook runs before ListProducts returns, outside the lock.
	ListProductsHook func(ctx context.Context)
}

// UpdateProductCall records parameters passed to UpdateProduct
type UpdateProductCall struct {
	ID    string
	Patch product.Patch
}

// UpdateByCategoryCall records parameters passed to UpdateProductsByCategory
type UpdateByCategoryCall struct {
	Category string
	Patch    product.Patch
}

// ApprovalCall records parameters passed to SetProfileApproval
type ApprovalCall struct {
	UserID   string
	Approval profile.Approval
}

// NewMockGateway creates an empty MockGateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		sessions: make(map[string]gateway.Session),
		profiles: make(map[string]profile.Profile),
		products: make(map[string]product.Product),
	}
}

// ============================================
// Seeding helpers
// ============================================

// SeedProducts stores products as-is, assigning IDs where missing.
func (m *MockGateway) SeedProducts(products ...product.Product) []product.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		m.products[p.ID] = p
		out = append(out, p)
	}
	return out
}

func (m *MockGateway) SeedProfile(p profile.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *MockGateway) SeedSession(s gateway.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *MockGateway) SeedAudit(entries ...audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entries...)
}

// Snapshot returns the stored products sorted by name.
func (m *MockGateway) Snapshot() []product.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedProducts()
}

// AuditEntries returns every stored audit entry in insertion order.
func (m *MockGateway) AuditEntries() []audit.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]audit.Entry, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *MockGateway) sortedProducts() []product.Product {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// ============================================
// gateway.SessionStore
// ============================================

func (m *MockGateway) CreateSession(ctx context.Context, s gateway.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateSessionErr != nil {
		return m.CreateSessionErr
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MockGateway) GetSession(ctx context.Context, id string) (*gateway.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetSessionErr != nil {
		return nil, m.GetSessionErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockGateway) SignOut(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignOutCalls = append(m.SignOutCalls, sessionID)
	if m.SignOutErr != nil {
		return m.SignOutErr
	}
	delete(m.sessions, sessionID)
	return nil
}

// ============================================
// gateway.Profiles
// ============================================

func (m *MockGateway) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetProfileErr != nil {
		return nil, m.GetProfileErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return &p, nil
}

func (m *MockGateway) GetProfileByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetProfileErr != nil {
		return nil, m.GetProfileErr
	}
	for _, p := range m.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, profile.ErrProfileNotFound
}

func (m *MockGateway) CreateProfile(ctx context.Context, p profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateProfileErr != nil {
		return m.CreateProfileErr
	}
	for _, existing := range m.profiles {
		if existing.Email == p.Email {
			return profile.ErrEmailTaken
		}
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *MockGateway) ListProfilesByStatus(ctx context.Context, status profile.Status) ([]profile.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListProfilesErr != nil {
		return nil, m.ListProfilesErr
	}
	out := make([]profile.Profile, 0)
	for _, p := range m.profiles {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockGateway) SetProfileApproval(ctx context.Context, userID string, a profile.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ApprovalCalls = append(m.ApprovalCalls, ApprovalCall{UserID: userID, Approval: a})
	if m.SetApprovalErr != nil {
		return m.SetApprovalErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return gateway.ErrNotFound
	}
	p.Status = a.Status
	p.IsActive = a.IsActive
	m.profiles[userID] = p
	return nil
}

// ============================================
// gateway.Products
// ============================================

func (m *MockGateway) ListProducts(ctx context.Context) ([]product.Product, error) {
	m.mu.Lock()
	m.ListProductsCalls++
	err := m.ListProductsErr
	var out []product.Product
	if err == nil {
		out = m.sortedProducts()
	}
	hook := m.ListProductsHook
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MockGateway) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetProductCalls = append(m.GetProductCalls, id)
	if m.GetProductErr != nil {
		return nil, m.GetProductErr
	}
	p, ok := m.products[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &p, nil
}

func (m *MockGateway) CreateProduct(ctx context.Context, d product.Draft) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateProductCalls = append(m.CreateProductCalls, d)
	if m.CreateProductErr != nil {
		return nil, m.CreateProductErr
	}
	now := time.Now()
	p := product.Product{
		ID:        uuid.New().String(),
		Name:      d.Name,
		Category:  d.Category,
		Stock:     d.Stock,
		Price:     d.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.products[p.ID] = p
	return &p, nil
}

func (m *MockGateway) UpdateProduct(ctx context.Context, id string, patch product.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateProductCalls = append(m.UpdateProductCalls, UpdateProductCall{ID: id, Patch: patch})
	if m.UpdateProductErr != nil {
		return m.UpdateProductErr
	}
	p, ok := m.products[id]
	if !ok {
		return gateway.ErrNotFound
	}
	p = patch.Apply(p)
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return nil
}

func (m *MockGateway) UpdateProductsByCategory(ctx context.Context, category string, patch product.Patch) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateByCatCalls = append(m.UpdateByCatCalls, UpdateByCategoryCall{Category: category, Patch: patch})
	if m.UpdateByCatErr != nil {
		return 0, m.UpdateByCatErr
	}
	n := 0
	for id, p := range m.products {
		if p.Category == category {
			m.products[id] = patch.Apply(p)
			n++
		}
	}
	return n, nil
}

func (m *MockGateway) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteProductCalls = append(m.DeleteProductCalls, id)
	if m.DeleteProductErr != nil {
		return m.DeleteProductErr
	}
	if _, ok := m.products[id]; !ok {
		return gateway.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MockGateway) CountProducts(ctx context.Context, q product.Query) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CountProductsCalls = append(m.CountProductsCalls, q)
	if m.CountProductsErr != nil {
		return 0, m.CountProductsErr
	}
	n := 0
	for _, p := range m.products {
		if q.Matches(p) {
			n++
		}
	}
	return n, nil
}

// ============================================
// gateway.AuditLog
// ============================================

func (m *MockGateway) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertAuditCalls = append(m.InsertAuditCalls, e)
	if m.InsertAuditErr != nil {
		return m.InsertAuditErr
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *MockGateway) ListAuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListAuditErr != nil {
		return nil, m.ListAuditErr
	}
	out := make([]audit.Entry, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.audit[i])
	}
	return out, nil
}
