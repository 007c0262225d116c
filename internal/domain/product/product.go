package product

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level at or below which a product counts as low stock.
const LowStockThreshold = 5

var (
	ErrValidation    = errors.New("validation failed")
	ErrInvalidName   = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidStock  = fmt.Errorf("%w: stock must be zero or more", ErrValidation)
	ErrInvalidPrice  = fmt.Errorf("%w: price must be positive", ErrValidation)
	ErrEmptyCategory = fmt.Errorf("%w: category name is required", ErrValidation)
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Stock     int             `json:"stock"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p Product) IsLowStock() bool {
	return p.Stock <= LowStockThreshold
}

// Value is price times stock.
func (p Product) Value() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
}

// Draft carries the user-editable fields of a product for create and edit.
type Draft struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Stock    int             `json:"stock"`
	Price    decimal.Decimal `json:"price"`
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidName
	}
	if d.Stock < 0 {
		return ErrInvalidStock
	}
	if !d.Price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// Patch converts the draft into a full-field patch.
func (d Draft) Patch() Patch {
	name, category, stock, price := d.Name, d.Category, d.Stock, d.Price
	return Patch{Name: &name, Category: &category, Stock: &stock, Price: &price}
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name     *string          `json:"name,omitempty"`
	Category *string          `json:"category,omitempty"`
	Stock    *int             `json:"stock,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Stock == nil && p.Price == nil
}

// Apply returns a copy of prod with the patch applied.
func (p Patch) Apply(prod Product) Product {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	return prod
}

// StockPatch sets only the stock count.
func StockPatch(stock int) Patch {
	return Patch{Stock: &stock}
}

// CategoryPatch sets only the category label.
func CategoryPatch(category string) Patch {
	return Patch{Category: &category}
}

// Query narrows a product count. A nil Category matches every product.
type Query struct {
	Category *string
}

func InCategory(name string) Query {
	return Query{Category: &name}
}

func (q Query) Matches(p Product) bool {
	return q.Category == nil || p.Category == *q.Category
}
