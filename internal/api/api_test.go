package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/stockroom/internal/api/middleware"
	"github.com/example/stockroom/internal/auth"
	"github.com/example/stockroom/internal/console"
	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/domain/profile"
	"github.com/example/stockroom/internal/gate"
	"github.com/example/stockroom/internal/gateway"
	"github.com/example/stockroom/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-that-is-32-chars!"

type testServer struct {
	gw       *mocks.MockGateway
	tokens   *auth.TokenService
	registry *console.Registry
	router   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := mocks.NewMockGateway()
	tokens := auth.NewTokenService(testSecret, time.Hour)
	registry := console.NewRegistry(gw, gate.New(gw, gw), nil)
	t.Cleanup(registry.CloseAll)

	router := NewRouter(RouterConfig{
		Handlers:     NewHandlers(registry),
		AuthHandlers: NewAuthHandlers(gw, tokens, registry),
		Tokens:       tokens,
		Sessions:     gw,
	})
	return &testServer{gw: gw, tokens: tokens, registry: registry, router: router}
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// signIn seeds a profile and a live session for it and returns the cookie.
func (s *testServer) signIn(t *testing.T, p profile.Profile) *http.Cookie {
	t.Helper()
	s.gw.SeedProfile(p)
	sessionID := "sess-" + p.ID
	token, expiresAt, err := s.tokens.Issue(sessionID, p.ID, p.Email)
	require.NoError(t, err)
	s.gw.SeedSession(gateway.Session{ID: sessionID, UserID: p.ID, Email: p.Email, ExpiresAt: expiresAt})
	return &http.Cookie{Name: middleware.AccessTokenCookie, Value: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func vendor() profile.Profile {
	return profile.Profile{ID: "u-vendor", Email: "vendor@example.com", Role: profile.RoleVendor, IsActive: true, Status: profile.StatusActive}
}

func admin() profile.Profile {
	return profile.Profile{ID: "u-admin", Email: "admin@example.com", Role: profile.RoleAdmin, IsActive: true, Status: profile.StatusActive}
}

func item(name, category string, stock int, price string) product.Product {
	return product.Product{Name: name, Category: category, Stock: stock, Price: decimal.RequireFromString(price)}
}

// ============================================
// Auth Handler Tests
// ============================================

func TestSignup_CreatesPendingVendor(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/signup", SignupRequest{
		Email: "New@Example.com", Password: "secret123", ConfirmPassword: "secret123",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[AuthResponse](t, rec)
	assert.Equal(t, gate.Pending, resp.State)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, profile.RoleVendor, resp.User.Role)
	assert.False(t, resp.User.IsActive)

	cookie := responseCookie(rec, middleware.AccessTokenCookie)
	require.NotNil(t, cookie)

	page := s.do(t, http.MethodGet, "/api/console", nil, cookie)
	require.Equal(t, http.StatusOK, page.Code)
	body := decode[ConsoleResponse](t, page)
	assert.Equal(t, gate.Pending, body.State)
	assert.Nil(t, body.View)
	assert.Equal(t, 0, s.gw.ListProductsCalls)
}

func TestSignup_Errors(t *testing.T) {
	s := newTestServer(t)
	s.gw.SeedProfile(profile.Profile{ID: "u-1", Email: "taken@example.com"})

	rec := s.do(t, http.MethodPost, "/api/auth/signup", SignupRequest{
		Email: "a@example.com", Password: "secret123", ConfirmPassword: "secret124",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", SignupRequest{
		Email: "a@example.com", Password: "123", ConfirmPassword: "123",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", SignupRequest{
		Email: "taken@example.com", Password: "secret123", ConfirmPassword: "secret123",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_ActiveVendor(t *testing.T) {
	s := newTestServer(t)
	p := vendor()
	p.PasswordHash = hashFor(t, "secret123")
	s.gw.SeedProfile(p)
	s.gw.SeedProducts(item("Tea", "Drinks", 8, "2"))

	rec := s.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: " Vendor@Example.com ", Password: "secret123"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gate.Active, decode[AuthResponse](t, rec).State)
	cookie := responseCookie(rec, middleware.AccessTokenCookie)
	require.NotNil(t, cookie)

	view := s.do(t, http.MethodGet, "/api/console/products", nil, cookie)
	require.Equal(t, http.StatusOK, view.Code)
	body := decode[ConsoleResponse](t, view)
	require.NotNil(t, body.View)
	require.Len(t, body.View.Products, 1)
	assert.Equal(t, "Tea", body.View.Products[0].Name)
	assert.Equal(t, "vendor@example.com", body.Email)
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newTestServer(t)
	p := vendor()
	p.PasswordHash = hashFor(t, "secret123")
	s.gw.SeedProfile(p)

	rec := s.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: p.Email, Password: "wrong-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: "nobody@example.com", Password: "secret123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_RejectedIsSignedOut(t *testing.T) {
	s := newTestServer(t)
	p := vendor()
	p.IsActive = false
	p.Status = profile.StatusRejected
	p.PasswordHash = hashFor(t, "secret123")
	s.gw.SeedProfile(p)

	rec := s.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: p.Email, Password: "secret123"}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, gate.Rejected, decode[AuthResponse](t, rec).State)
	require.Len(t, s.gw.SignOutCalls, 1)
	assert.Equal(t, 0, s.registry.Len())
}

func TestLogout_EndsSession(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sess-u-vendor"}, s.gw.SignOutCalls)
	cleared := responseCookie(rec, middleware.AccessTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	after := s.do(t, http.MethodGet, "/api/console/products", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, admin())

	rec := s.do(t, http.MethodGet, "/api/auth/me", nil, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[UserResponse](t, rec)
	assert.Equal(t, "admin@example.com", user.Email)
	assert.Equal(t, profile.RoleAdmin, user.Role)
}

// ============================================
// Page Load Tests
// ============================================

func TestPageLoad_Unauthenticated(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/console", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gate.Unauthenticated, decode[ConsoleResponse](t, rec).State)

	protected := s.do(t, http.MethodGet, "/api/console/products", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, protected.Code)
}

func TestPageLoad_ProfileFailure(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())
	s.gw.GetProfileErr = errors.New("connection reset")

	rec := s.do(t, http.MethodGet, "/api/console", nil, cookie)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), string(gate.Failed))
}

func TestPageLoad_PendingForbidsOperations(t *testing.T) {
	s := newTestServer(t)
	p := vendor()
	p.IsActive = false
	p.Status = profile.StatusPending
	cookie := s.signIn(t, p)

	rec := s.do(t, http.MethodGet, "/api/console/products", nil, cookie)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), string(gate.Pending))
}

// ============================================
// Console Handler Tests
// ============================================

func TestCreateProduct(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodPost, "/api/console/products", product.Form{
		Name: "Chips", UseNewCategory: true, NewCategory: " Snacks ", Stock: "3", Price: "1.50",
	}, cookie)

	require.Equal(t, http.StatusCreated, rec.Code)
	snapshot := s.gw.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Snacks", snapshot[0].Category)

	entries := s.gw.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
	assert.Equal(t, "vendor@example.com", entries[0].ActorEmail)
}

func TestCreateProduct_InvalidForm(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodPost, "/api/console/products", product.Form{Name: "Chips", Stock: "-1", Price: "1"}, cookie)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.gw.CreateProductCalls)
}

func TestCreateProduct_BackendFailure(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())
	s.gw.CreateProductErr = errors.New("insert failed")

	rec := s.do(t, http.MethodPost, "/api/console/products", product.Form{Name: "Chips", Stock: "1", Price: "1"}, cookie)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDeleteProduct_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	seeded := s.gw.SeedProducts(item("Tea", "Drinks", 8, "2"))
	path := "/api/console/products/" + seeded[0].ID

	rec := s.do(t, http.MethodDelete, path, nil, s.signIn(t, vendor()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, s.gw.DeleteProductCalls)

	rec = s.do(t, http.MethodDelete, path, nil, s.signIn(t, admin()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.gw.Snapshot())
	assert.Empty(t, decode[ConsoleResponse](t, rec).View.Products)
}

func TestAdjustStock(t *testing.T) {
	s := newTestServer(t)
	seeded := s.gw.SeedProducts(item("Tea", "Drinks", 2, "2"))
	cookie := s.signIn(t, vendor())
	path := "/api/console/products/" + seeded[0].ID + "/stock"

	rec := s.do(t, http.MethodPost, path, map[string]any{"delta": -3, "name": "Tea"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path, map[string]any{"delta": 5, "name": "Tea"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, s.gw.Snapshot()[0].Stock)
}

func TestAdjustStock_UnknownProduct(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodPost, "/api/console/products/missing/stock", map[string]any{"delta": 1}, cookie)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilterAndSearch(t *testing.T) {
	s := newTestServer(t)
	s.gw.SeedProducts(
		item("Tea", "Drinks", 8, "2"),
		item("Café", "Drinks", 2, "3"),
		item("Chips", "Snacks", 1, "1"),
	)
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodPost, "/api/console/filter", map[string]string{"stock_mode": "low"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ConsoleResponse](t, rec).View.Products, 2)

	rec = s.do(t, http.MethodGet, "/api/console/search?q=cafe", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[ConsoleResponse](t, rec).View
	require.Len(t, view.Products, 1)
	assert.Equal(t, "Café", view.Products[0].Name)
	assert.True(t, view.Searching)

	rec = s.do(t, http.MethodDelete, "/api/console/filter", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ConsoleResponse](t, rec).View.Products, 3)
}

func TestValidateFields(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodPost, "/api/console/validate", map[string]string{"stock": "-1", "price": "2"}, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	check := decode[product.FieldCheck](t, rec)
	assert.True(t, check.StockInvalid)
	assert.False(t, check.PriceInvalid)
	assert.False(t, check.SubmitEnabled)
}

func TestLowStockReport(t *testing.T) {
	s := newTestServer(t)
	s.gw.SeedProducts(item("Tea", "Drinks", 8, "2"), item("Chips", "Snacks", 5, "1"))
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodGet, "/api/console/reports/low-stock", nil, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[[]product.Product](t, rec)
	require.Len(t, low, 1)
	assert.Equal(t, "Chips", low[0].Name)
}

// ============================================
// Category and Admin Handler Tests
// ============================================

func TestMergeCategory(t *testing.T) {
	s := newTestServer(t)
	s.gw.SeedProducts(
		item("Chips", "Snacks", 1, "1"),
		item("Nuts", "Snacks", 9, "4"),
		item("Bread", "Food", 3, "2"),
	)
	cookie := s.signIn(t, admin())

	count := s.do(t, http.MethodGet, "/api/console/categories/count?name=Snacks", nil, cookie)
	require.Equal(t, http.StatusOK, count.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, count)["count"])

	targets := s.do(t, http.MethodGet, "/api/console/categories/targets?name=Snacks", nil, cookie)
	require.Equal(t, http.StatusOK, targets.Code)
	assert.Equal(t, []string{"Food"}, decode[[]string](t, targets))

	rec := s.do(t, http.MethodPost, "/api/console/categories/merge", MergeRequest{From: "Snacks", To: "Food"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["moved"])

	for _, p := range s.gw.Snapshot() {
		assert.Equal(t, "Food", p.Category)
	}

	history := s.do(t, http.MethodGet, "/api/console/history?action=CATEGORY_MERGE", nil, cookie)
	require.Equal(t, http.StatusOK, history.Code)
	entries := decode[[]audit.Entry](t, history)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].AffectedRows)
	assert.Equal(t, 2, *entries[0].AffectedRows)
}

func TestMergeCategory_SameName(t *testing.T) {
	s := newTestServer(t)
	s.gw.SeedProducts(item("Chips", "Snacks", 1, "1"))
	cookie := s.signIn(t, admin())

	rec := s.do(t, http.MethodPost, "/api/console/categories/merge", MergeRequest{From: "Snacks", To: "Snacks"}, cookie)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.gw.UpdateByCatCalls)
}

func TestCategoryStats_VendorForbidden(t *testing.T) {
	s := newTestServer(t)
	cookie := s.signIn(t, vendor())

	rec := s.do(t, http.MethodGet, "/api/console/categories", nil, cookie)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApproveUsers(t *testing.T) {
	s := newTestServer(t)
	s.gw.SeedProfile(profile.Profile{ID: "u-new", Email: "new@example.com", Role: profile.RoleVendor, Status: profile.StatusPending})
	cookie := s.signIn(t, admin())

	rec := s.do(t, http.MethodGet, "/api/admin/users/pending", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]UserResponse](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, "u-new", pending[0].ID)

	rec = s.do(t, http.MethodPost, "/api/admin/users/u-new/activate", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.gw.ApprovalCalls, 1)
	assert.Equal(t, profile.Activate, s.gw.ApprovalCalls[0].Approval)

	rec = s.do(t, http.MethodPost, "/api/admin/users/u-new/reject", nil, s.signIn(t, vendor()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
