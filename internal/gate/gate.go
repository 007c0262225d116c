// Package gate resolves a session into the access tier that decides what a
// console may do.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/stockroom/internal/domain/profile"
	"github.com/example/stockroom/internal/gateway"
)

var ErrProfileUnavailable = errors.New("profile unavailable")

type State string

const (
	Unauthenticated State = "unauthenticated"
	Failed          State = "failed"
	Pending         State = "pending"
	Rejected        State = "rejected"
	Active          State = "active"
	AdminActive     State = "admin_active"
)

// Op is a console operation subject to the gate.
type Op string

const (
	OpRead          Op = "read"
	OpCreate        Op = "create"
	OpUpdate        Op = "update"
	OpAdjustStock   Op = "adjust_stock"
	OpFilter        Op = "filter"
	OpSearch        Op = "search"
	OpValidate      Op = "validate"
	OpActivity      Op = "activity"
	OpCountCategory Op = "count_category"
	OpReport        Op = "report"

	OpDelete        Op = "delete"
	OpMerge         Op = "merge"
	OpHistory       Op = "history"
	OpCategoryStats Op = "category_stats"
	OpApproveUsers  Op = "approve_users"
)

var adminOnly = map[Op]bool{
	OpDelete:        true,
	OpMerge:         true,
	OpHistory:       true,
	OpCategoryStats: true,
	OpApproveUsers:  true,
}

// Permits reports whether a console in state s may run op.
func (s State) Permits(op Op) bool {
	switch s {
	case AdminActive:
		return true
	case Active:
		return !adminOnly[op]
	default:
		return false
	}
}

// LoadsInventory reports whether the page load goes on to fetch products.
func (s State) LoadsInventory() bool {
	return s == Active || s == AdminActive
}

// Resolution is the outcome of one page load.
type Resolution struct {
	State   State
	Session *gateway.Session
	Profile *profile.Profile
}

// Actor is the email recorded on audit entries.
func (r Resolution) Actor() string {
	if r.Profile != nil && r.Profile.Email != "" {
		return r.Profile.Email
	}
	if r.Session != nil {
		return r.Session.Email
	}
	return ""
}

type Gate struct {
	sessions gateway.SessionStore
	profiles gateway.Profiles
}

func New(sessions gateway.SessionStore, profiles gateway.Profiles) *Gate {
	return &Gate{sessions: sessions, profiles: profiles}
}

// Resolve runs the page-load sequence for sessionID. The rejected check comes
// before the active check, and a rejected session is signed out.
func (g *Gate) Resolve(ctx context.Context, sessionID string) (Resolution, error) {
	if sessionID == "" {
		return Resolution{State: Unauthenticated}, nil
	}

	sess, err := g.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Resolution{State: Failed}, fmt.Errorf("%w: get session: %v", ErrProfileUnavailable, err)
	}
	if sess == nil {
		return Resolution{State: Unauthenticated}, nil
	}

	p, err := g.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		return Resolution{State: Failed, Session: sess}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	if p == nil {
		return Resolution{State: Failed, Session: sess}, ErrProfileUnavailable
	}

	res := Resolution{Session: sess, Profile: p}
	switch {
	case p.Status == profile.StatusRejected:
		res.State = Rejected
		if err := g.sessions.SignOut(ctx, sess.ID); err != nil {
			log.Printf("[Gate] Failed to sign out rejected user %s: %v", p.Email, err)
		}
	case p.IsActive || p.Status == profile.StatusActive:
		res.State = Active
		if p.EffectiveRole() == profile.RoleAdmin {
			res.State = AdminActive
		}
	default:
		res.State = Pending
	}
	return res, nil
}
