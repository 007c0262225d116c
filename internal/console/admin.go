package console

import (
	"context"

	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/category"
	"github.com/example/stockroom/internal/domain/profile"
	"github.com/example/stockroom/internal/gate"
)

// History returns up to audit.HistoryLimit entries, newest first, narrowed
// by action and free text.
func (c *Console) History(ctx context.Context, action audit.Action, term string) ([]audit.Entry, error) {
	if err := c.allow(gate.OpHistory); err != nil {
		return nil, err
	}
	entries, err := c.gw.ListAuditLog(ctx, audit.HistoryLimit)
	if err != nil {
		c.notify(LevelError, "Could not load history: %v", err)
		return nil, backendErr("list audit log", err)
	}
	return audit.Filter(entries, action, term), nil
}

// CategoryStats summarizes a fresh read of the catalog per category.
func (c *Console) CategoryStats(ctx context.Context) ([]category.Stats, error) {
	if err := c.allow(gate.OpCategoryStats); err != nil {
		return nil, err
	}
	products, err := c.gw.ListProducts(ctx)
	if err != nil {
		return nil, backendErr("list products", err)
	}
	return category.Summarize(products), nil
}

// MergeTargets lists the loaded categories oldName can be merged into.
func (c *Console) MergeTargets(oldName string) ([]string, error) {
	if err := c.allow(gate.OpMerge); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return category.MergeTargets(c.products, oldName), nil
}

func (c *Console) PendingUsers(ctx context.Context) ([]profile.Profile, error) {
	if err := c.allow(gate.OpApproveUsers); err != nil {
		return nil, err
	}
	users, err := c.gw.ListProfilesByStatus(ctx, profile.StatusPending)
	if err != nil {
		return nil, backendErr("list pending users", err)
	}
	return users, nil
}

func (c *Console) ActivateUser(ctx context.Context, userID string) error {
	return c.approve(ctx, userID, profile.Activate, "activated")
}

func (c *Console) RejectUser(ctx context.Context, userID string) error {
	return c.approve(ctx, userID, profile.Reject, "rejected")
}

func (c *Console) approve(ctx context.Context, userID string, a profile.Approval, verb string) error {
	if err := c.allow(gate.OpApproveUsers); err != nil {
		return err
	}
	if err := c.gw.SetProfileApproval(ctx, userID, a); err != nil {
		c.notify(LevelError, "Could not update user: %v", err)
		return backendErr("set approval", err)
	}
	c.notify(LevelSuccess, "User %s", verb)
	return nil
}
