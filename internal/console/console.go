// Package console holds the per-session inventory view-model: the loaded
// catalog, the filter and search selection, and every operation a signed-in
// user can run against the backend.
package console

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/example/stockroom/internal/domain/audit"
	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/filter"
	"github.com/example/stockroom/internal/gate"
	"github.com/example/stockroom/internal/gateway"
)

// View is what the presentation layer renders.
type View struct {
	Products   []product.Product `json:"products"`
	Dashboard  filter.Dashboard  `json:"dashboard"`
	Filter     filter.State      `json:"filter"`
	SearchTerm string            `json:"search_term"`
	Searching  bool              `json:"searching"`
	Categories []string          `json:"categories"`
	// LowStockTotal counts low-stock products over the whole catalog and
	// backs the alert badge, unlike Dashboard which follows the view.
	LowStockTotal int       `json:"low_stock_total"`
	Total         int       `json:"total"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// Console is the view-model for one signed-in session. Backend calls run
// outside the lock; state is swapped in under it once a call returns.
type Console struct {
	gw     gateway.Gateway
	access gate.Resolution

	mu         sync.RWMutex
	products   []product.Product
	categories []string
	recent     []audit.Entry
	filter     filter.State
	searchTerm string
	searching  bool
	visible    []product.Product
	notices    []Notice
	loadedAt   time.Time
}

func New(gw gateway.Gateway, access gate.Resolution) *Console {
	return &Console{
		gw:         gw,
		access:     access,
		products:   []product.Product{},
		categories: []string{},
		recent:     []audit.Entry{},
		filter:     filter.Default(),
		visible:    []product.Product{},
	}
}

func (c *Console) State() gate.State {
	return c.access.State
}

func (c *Console) Access() gate.Resolution {
	return c.access
}

func (c *Console) allow(op gate.Op) error {
	if !c.access.State.Permits(op) {
		return ErrForbidden
	}
	return nil
}

// ============================================
// Loading
// ============================================

// Reload fetches the catalog and recent activity and replaces the loaded
// state wholesale. A failed product fetch leaves the previous list in place.
func (c *Console) Reload(ctx context.Context) error {
	if err := c.allow(gate.OpRead); err != nil {
		return err
	}

	products, err := c.gw.ListProducts(ctx)
	if err != nil {
		log.Printf("[Console] Failed to load products: %v", err)
		c.notify(LevelError, "Could not load inventory: %v", err)
		return backendErr("list products", err)
	}
	filter.SortByName(products)

	recent, auditErr := c.gw.ListAuditLog(ctx, audit.RecentLimit)
	if auditErr != nil {
		log.Printf("[Console] Failed to load recent activity: %v", auditErr)
		c.notify(LevelWarning, "Could not load recent activity: %v", auditErr)
	}

	categories := filter.Categories(products)
	filter.SortStrings(categories)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.categories = categories
	if auditErr == nil {
		c.recent = recent
	}
	c.loadedAt = time.Now()
	c.deriveLocked()
	return nil
}

// deriveLocked recomputes the visible list. c.mu must be held for writing.
func (c *Console) deriveLocked() {
	if c.searching {
		c.visible = filter.Search(c.products, c.searchTerm)
		return
	}
	c.visible = filter.Apply(c.products, c.filter)
}

// Listen reloads on every change until ctx is cancelled or sub ends, then
// closes sub.
func (c *Console) Listen(ctx context.Context, sub gateway.Subscription) error {
	return c.ListenWhile(ctx, sub, nil)
}

// ListenWhile is Listen with a liveness check run before each reload. When
// alive reports false the listener stops with ErrSessionEnded and the change
// is not loaded. A nil alive always passes.
func (c *Console) ListenWhile(ctx context.Context, sub gateway.Subscription, alive func(context.Context) bool) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-sub.Changes():
			if !ok {
				return nil
			}
			if alive != nil && !alive(ctx) {
				return ErrSessionEnded
			}
			if err := c.Reload(ctx); err != nil {
				log.Printf("[Console] Reload after %s %s failed: %v", change.Op, change.RowID, err)
			}
		}
	}
}

// ============================================
// Read accessors
// ============================================

func (c *Console) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	visible := make([]product.Product, len(c.visible))
	copy(visible, c.visible)
	categories := make([]string, len(c.categories))
	copy(categories, c.categories)

	return View{
		Products:      visible,
		Dashboard:     filter.Aggregate(visible),
		Filter:        c.filter,
		SearchTerm:    c.searchTerm,
		Searching:     c.searching,
		Categories:    categories,
		LowStockTotal: filter.CountLowStock(c.products),
		Total:         len(c.products),
		LoadedAt:      c.loadedAt,
	}
}

// RecentActivity returns the audit entries loaded with the last reload,
// newest first.
func (c *Console) RecentActivity() ([]audit.Entry, error) {
	if err := c.allow(gate.OpActivity); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]audit.Entry, len(c.recent))
	copy(out, c.recent)
	return out, nil
}

// LowStockReport lists every low-stock product in the catalog by name.
func (c *Console) LowStockReport() ([]product.Product, error) {
	if err := c.allow(gate.OpReport); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	low := filter.Apply(c.products, filter.State{Category: filter.AllCategories, StockMode: filter.StockLow})
	return low, nil
}

// ValidateFields runs the form field check for the session.
func (c *Console) ValidateFields(stockRaw, priceRaw string) (product.FieldCheck, error) {
	if err := c.allow(gate.OpValidate); err != nil {
		return product.FieldCheck{}, err
	}
	return product.ValidateFields(stockRaw, priceRaw), nil
}

// ============================================
// Filter and search
// ============================================

// SetFilter changes part of the filter selection and leaves search mode.
func (c *Console) SetFilter(p filter.Patch) error {
	if err := c.allow(gate.OpFilter); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = c.filter.With(p)
	c.searching = false
	c.searchTerm = ""
	c.deriveLocked()
	return nil
}

// ClearFilters resets the filter selection and the search term.
func (c *Console) ClearFilters() error {
	if err := c.allow(gate.OpFilter); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter.Default()
	c.searching = false
	c.searchTerm = ""
	c.deriveLocked()
	return nil
}

// Search replaces the visible list with matches over the whole catalog,
// ignoring the filter selection. An empty term shows every product.
func (c *Console) Search(term string) error {
	if err := c.allow(gate.OpSearch); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchTerm = term
	c.searching = true
	c.deriveLocked()
	return nil
}
