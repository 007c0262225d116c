package profile

import (
	"errors"
	"strings"
	"time"

	"github.com/example/stockroom/internal/auth"
	"github.com/google/uuid"
)

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidEmail       = errors.New("email is required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

type Role string

const (
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

// Profile is the account record the access gate reads.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// EffectiveRole treats a missing role as vendor.
func (p Profile) EffectiveRole() Role {
	if p.Role == "" {
		return RoleVendor
	}
	return p.Role
}

// NewPending builds the profile created on signup: a vendor waiting for an
// admin to approve it.
func NewPending(email, password, confirm string) (*Profile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleVendor,
		IsActive:     false,
		Status:       StatusPending,
		CreatedAt:    time.Now(),
	}, nil
}

// Approval is the status change an admin applies to a pending profile.
type Approval struct {
	Status   Status
	IsActive bool
}

var (
	Activate = Approval{Status: StatusActive, IsActive: true}
	Reject   = Approval{Status: StatusRejected, IsActive: false}
)
