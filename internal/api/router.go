package api

import (
	"log"
	"net/http"

	"github.com/example/stockroom/internal/api/middleware"
	"github.com/example/stockroom/internal/auth"
	"github.com/example/stockroom/internal/gateway"
)

type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	Tokens       *auth.TokenService
	Sessions     gateway.SessionStore
	WebDir       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.AuthMiddleware(cfg.Tokens, cfg.Sessions)
	optionalAuth := middleware.OptionalAuthMiddleware(cfg.Tokens, cfg.Sessions)
	h := cfg.Handlers

	// Static files (web UI)
	if cfg.WebDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.WebDir)))
	}

	// Auth
	mux.HandleFunc("POST /api/auth/signup", cfg.AuthHandlers.Signup)
	mux.HandleFunc("POST /api/auth/login", cfg.AuthHandlers.Login)
	mux.Handle("POST /api/auth/logout", optionalAuth(http.HandlerFunc(cfg.AuthHandlers.Logout)))
	mux.Handle("GET /api/auth/me", requireAuth(http.HandlerFunc(cfg.AuthHandlers.Me)))

	// Page load answers unauthenticated requests with the gate state.
	mux.Handle("GET /api/console", optionalAuth(http.HandlerFunc(h.PageLoad)))

	protected := map[string]http.HandlerFunc{
		// Products
		"GET /api/console/products":             h.GetView,
		"POST /api/console/products":            h.CreateProduct,
		"PUT /api/console/products/{id}":        h.UpdateProduct,
		"DELETE /api/console/products/{id}":     h.DeleteProduct,
		"POST /api/console/products/{id}/stock": h.AdjustStock,
		"POST /api/console/validate":            h.ValidateFields,
		"POST /api/console/filter":              h.SetFilter,
		"DELETE /api/console/filter":            h.ClearFilters,
		"GET /api/console/search":               h.Search,
		"GET /api/console/activity":             h.RecentActivity,
		"GET /api/console/reports/low-stock":    h.LowStockReport,
		"GET /api/console/history":              h.History,

		// Categories
		"GET /api/console/categories":         h.CategoryStats,
		"GET /api/console/categories/count":   h.CountCategory,
		"GET /api/console/categories/targets": h.MergeTargets,
		"POST /api/console/categories/merge":  h.MergeCategory,

		// Admin
		"GET /api/admin/users/pending":        h.PendingUsers,
		"POST /api/admin/users/{id}/activate": h.ActivateUser,
		"POST /api/admin/users/{id}/reject":   h.RejectUser,
	}
	for pattern, handler := range protected {
		mux.Handle(pattern, requireAuth(handler))
	}

	return withLogging(mux)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
