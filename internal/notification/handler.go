package notification

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/filter"
	"github.com/example/stockroom/internal/gateway"
	"github.com/example/stockroom/internal/infrastructure/kafka"
)

// Mailer sends low-stock alerts.
type Mailer interface {
	SendLowStockAlert(to string, items []product.Product) error
}

// Handler turns product change events into low-stock alert emails. A product
// is reported once when it drops to the threshold and again only after it
// has recovered above it.
type Handler struct {
	mailer   Mailer
	products gateway.Products
	to       string

	mu      sync.Mutex
	alerted map[string]bool
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, products gateway.Products, to string) *Handler {
	return &Handler{
		mailer:   mailer,
		products: products,
		to:       to,
		alerted:  make(map[string]bool),
	}
}

// HandleEvent processes a change message from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	c, err := kafka.DecodeChange(value)
	if err != nil {
		log.Printf("[Notifier] Failed to decode change: %v", err)
		return err
	}
	return h.HandleChange(ctx, c)
}

func (h *Handler) HandleChange(ctx context.Context, c gateway.Change) error {
	if c.Table != gateway.ProductsTable {
		return nil
	}

	if c.Op == gateway.OpDelete {
		h.mu.Lock()
		delete(h.alerted, c.RowID)
		h.mu.Unlock()
		return nil
	}

	var candidates []product.Product
	if c.RowID != "" {
		p, err := h.products.GetProduct(ctx, c.RowID)
		if errors.Is(err, gateway.ErrNotFound) {
			return nil
		}
		if err != nil {
			log.Printf("[Notifier] Error getting product %s: %v", c.RowID, err)
			return err
		}
		candidates = []product.Product{*p}
	} else {
		all, err := h.products.ListProducts(ctx)
		if err != nil {
			log.Printf("[Notifier] Error listing products: %v", err)
			return err
		}
		candidates = all
	}

	fresh := h.newlyLow(candidates)
	if len(fresh) == 0 {
		return nil
	}
	filter.SortByName(fresh)

	if err := h.mailer.SendLowStockAlert(h.to, fresh); err != nil {
		log.Printf("[Notifier] Failed to send alert to %s: %v", h.to, err)
		h.forget(fresh)
		return err
	}

	log.Printf("[Notifier] Low stock alert sent to %s for %d product(s)", h.to, len(fresh))
	return nil
}

// newlyLow marks and returns the low-stock products not yet reported, and
// clears the mark on products that recovered.
func (h *Handler) newlyLow(products []product.Product) []product.Product {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []product.Product
	for _, p := range products {
		if !p.IsLowStock() {
			delete(h.alerted, p.ID)
			continue
		}
		if h.alerted[p.ID] {
			continue
		}
		h.alerted[p.ID] = true
		out = append(out, p)
	}
	return out
}

func (h *Handler) forget(products []product.Product) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range products {
		delete(h.alerted, p.ID)
	}
}
