// Package gateway defines the backend contract the console is built on:
// sessions, profiles, products, the audit log and the product change feed.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/domain/profile"
)

var ErrNotFound = errors.New("not found")

// Session is an authenticated sign-in.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

// SessionStore persists sign-ins. GetSession returns (nil, nil) when the
// session does not exist or has been signed out.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*profile.Profile, error)
	CreateProfile(ctx context.Context, p profile.Profile) error
	ListProfilesByStatus(ctx context.Context, status profile.Status) ([]profile.Profile, error)
	SetProfileApproval(ctx context.Context, userID string, a profile.Approval) error
}

type Products interface {
	// ListProducts returns every product ordered by name.
	ListProducts(ctx context.Context) ([]product.Product, error)
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	CreateProduct(ctx context.Context, d product.Draft) (*product.Product, error)
	UpdateProduct(ctx context.Context, id string, patch product.Patch) error
	// UpdateProductsByCategory applies patch to every product in category and
	// reports how many rows changed.
	UpdateProductsByCategory(ctx context.Context, category string, patch product.Patch) (int, error)
	DeleteProduct(ctx context.Context, id string) error
	CountProducts(ctx context.Context, q product.Query) (int, error)
}

type AuditLog interface {
	InsertAuditEntry(ctx context.Context, e audit.Entry) error
	// ListAuditLog returns at most limit entries, newest first.
	ListAuditLog(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Gateway is the full backend surface.
type Gateway interface {
	SessionStore
	Profiles
	Products
	AuditLog
}
