package console

import (
	"context"
	"fmt"
	"log"

	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/category"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/gate"
)

// Every mutation follows the same chain: validate locally, write, append one
// audit entry, reload. A failed write stops the chain. A failed audit insert
// after a successful write is reported and the chain goes on.

func (c *Console) Create(ctx context.Context, d product.Draft) (*product.Product, error) {
	if err := c.allow(gate.OpCreate); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		c.notify(LevelWarning, "%v", err)
		return nil, err
	}

	p, err := c.gw.CreateProduct(ctx, d)
	if err != nil {
		c.notify(LevelError, "Could not save %q: %v", d.Name, err)
		return nil, backendErr("create product", err)
	}

	c.record(ctx, audit.Entry{Action: audit.ActionCreate, ProductName: d.Name})
	c.notify(LevelSuccess, "Product %q created", d.Name)
	c.reloadAfterWrite(ctx)
	return p, nil
}

func (c *Console) Update(ctx context.Context, id string, d product.Draft) error {
	if err := c.allow(gate.OpUpdate); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		c.notify(LevelWarning, "%v", err)
		return err
	}

	if err := c.gw.UpdateProduct(ctx, id, d.Patch()); err != nil {
		c.notify(LevelError, "Could not update %q: %v", d.Name, err)
		return backendErr("update product", err)
	}

	c.record(ctx, audit.Entry{Action: audit.ActionEdit, ProductName: d.Name})
	c.notify(LevelSuccess, "Product %q updated", d.Name)
	c.reloadAfterWrite(ctx)
	return nil
}

func (c *Console) Delete(ctx context.Context, id string) error {
	if err := c.allow(gate.OpDelete); err != nil {
		return err
	}

	name, err := c.productName(ctx, id)
	if err != nil {
		c.notify(LevelError, "Could not delete product: %v", err)
		return backendErr("get product", err)
	}

	if err := c.gw.DeleteProduct(ctx, id); err != nil {
		c.notify(LevelError, "Could not delete %q: %v", name, err)
		return backendErr("delete product", err)
	}

	c.record(ctx, audit.Entry{Action: audit.ActionDelete, ProductName: name})
	c.notify(LevelSuccess, "Product %q deleted", name)
	c.reloadAfterWrite(ctx)
	return nil
}

// AdjustStock adds delta to the current stock. The read and the write are
// separate calls, so a concurrent change in between is overwritten.
func (c *Console) AdjustStock(ctx context.Context, id string, delta int, productName string) error {
	if err := c.allow(gate.OpAdjustStock); err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}

	current, err := c.gw.GetProduct(ctx, id)
	if err != nil {
		c.notify(LevelError, "Could not read stock: %v", err)
		return backendErr("get product", err)
	}
	if productName == "" {
		productName = current.Name
	}

	newStock := current.Stock + delta
	if newStock < 0 {
		c.notify(LevelWarning, "Stock for %q cannot go below zero", productName)
		return ErrNegativeStock
	}

	if err := c.gw.UpdateProduct(ctx, id, product.StockPatch(newStock)); err != nil {
		c.notify(LevelError, "Could not update stock for %q: %v", productName, err)
		return backendErr("update stock", err)
	}

	c.record(ctx, audit.Entry{Action: audit.StockAction(delta), ProductName: productName})
	c.reloadAfterWrite(ctx)
	return nil
}

// CountCategory reports how many products a merge of name would move.
func (c *Console) CountCategory(ctx context.Context, name string) (int, error) {
	if err := c.allow(gate.OpCountCategory); err != nil {
		return 0, err
	}
	n, err := c.gw.CountProducts(ctx, product.InCategory(name))
	if err != nil {
		return 0, backendErr("count products", err)
	}
	return n, nil
}

// MergeCategory moves every product in oldName to newName and records a
// single audit entry carrying the counted rows. The count and the update are
// not atomic.
func (c *Console) MergeCategory(ctx context.Context, oldName, newName string) (int, error) {
	if err := c.allow(gate.OpMerge); err != nil {
		return 0, err
	}
	target, err := category.ValidateMerge(oldName, newName)
	if err != nil {
		c.notify(LevelWarning, "%v", err)
		return 0, fmt.Errorf("%w: %w", ErrInvalidCategory, err)
	}

	count, err := c.gw.CountProducts(ctx, product.InCategory(oldName))
	if err != nil {
		c.notify(LevelError, "Could not count products in %q: %v", oldName, err)
		return 0, backendErr("count products", err)
	}

	if _, err := c.gw.UpdateProductsByCategory(ctx, oldName, product.CategoryPatch(target)); err != nil {
		c.notify(LevelError, "Could not merge %q into %q: %v", oldName, target, err)
		return 0, backendErr("merge category", err)
	}

	c.record(ctx, audit.MergeEntry("", oldName, target, count))
	c.notify(LevelSuccess, "Moved %d products from %q to %q", count, oldName, target)
	c.reloadAfterWrite(ctx)
	return count, nil
}

// productName looks id up in the loaded list before asking the backend.
func (c *Console) productName(ctx context.Context, id string) (string, error) {
	c.mu.RLock()
	for _, p := range c.products {
		if p.ID == id {
			c.mu.RUnlock()
			return p.Name, nil
		}
	}
	c.mu.RUnlock()

	p, err := c.gw.GetProduct(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// record appends e to the audit log on behalf of the signed-in user.
func (c *Console) record(ctx context.Context, e audit.Entry) {
	e.ActorEmail = c.access.Actor()
	if err := c.gw.InsertAuditEntry(ctx, e); err != nil {
		log.Printf("[Console] Failed to write audit entry %s %q: %v", e.Action, e.ProductName, err)
		c.notify(LevelWarning, "Change saved but not recorded in the activity log: %v", err)
	}
}

// reloadAfterWrite reloads; a failure is already queued as a notice.
func (c *Console) reloadAfterWrite(ctx context.Context) {
	_ = c.Reload(ctx)
}
