// Package filter derives the visible product list and its dashboard figures
// from the full catalog. Everything here is pure: inputs are never mutated.
package filter

import (
	"sort"
	"strings"
	"unicode"

	"github.com/example/stockroom/internal/domain/product"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AllCategories is the category sentinel that disables the category filter.
const AllCategories = "all"

type StockMode string

const (
	StockAll StockMode = "all"
	StockLow StockMode = "low"
)

// State is the filter selection held by a console.
type State struct {
	Category  string    `json:"category"`
	StockMode StockMode `json:"stock_mode"`
}

func Default() State {
	return State{Category: AllCategories, StockMode: StockAll}
}

// Patch changes part of a State; nil fields keep their current value.
type Patch struct {
	Category  *string    `json:"category,omitempty"`
	StockMode *StockMode `json:"stock_mode,omitempty"`
}

func (s State) With(p Patch) State {
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.StockMode != nil {
		s.StockMode = *p.StockMode
	}
	if s.Category == "" {
		s.Category = AllCategories
	}
	if s.StockMode != StockLow {
		s.StockMode = StockAll
	}
	return s
}

// Apply narrows products by category and then by stock mode, and returns the
// result sorted by name.
func Apply(products []product.Product, s State) []product.Product {
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if s.Category != AllCategories && s.Category != "" {
			if p.Category == "" || p.Category != s.Category {
				continue
			}
		}
		if s.StockMode == StockLow && !p.IsLowStock() {
			continue
		}
		out = append(out, p)
	}
	SortByName(out)
	return out
}

// Search matches the normalized term against product name or category over
// the whole list, ignoring any filter state. An empty term returns every
// product.
func Search(products []product.Product, term string) []product.Product {
	needle := Normalize(term)
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if needle == "" ||
			strings.Contains(Normalize(p.Name), needle) ||
			strings.Contains(Normalize(p.Category), needle) {
			out = append(out, p)
		}
	}
	SortByName(out)
	return out
}

// Normalize trims, case-folds and strips diacritics so "  Café " and "CAFE"
// compare equal.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

// SortByName orders products by name using locale-aware collation. Ties keep
// their input order.
func SortByName(products []product.Product) {
	c := newCollator()
	sort.SliceStable(products, func(i, j int) bool {
		return c.CompareString(products[i].Name, products[j].Name) < 0
	})
}

// SortStrings orders labels with the same collation as SortByName.
func SortStrings(values []string) {
	c := newCollator()
	sort.SliceStable(values, func(i, j int) bool {
		return c.CompareString(values[i], values[j]) < 0
	})
}

// Collators keep internal buffers, so each sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Und)
}

// Dashboard holds the figures shown above the list. They are computed from
// the rendered list, so they follow the active filter or search.
type Dashboard struct {
	TotalValue decimal.Decimal `json:"total_value"`
	LowStock   int             `json:"low_stock"`
}

func Aggregate(products []product.Product) Dashboard {
	d := Dashboard{TotalValue: decimal.Zero}
	for _, p := range products {
		d.TotalValue = d.TotalValue.Add(p.Value())
		if p.IsLowStock() {
			d.LowStock++
		}
	}
	return d
}

// CountLowStock counts low-stock products in the given list.
func CountLowStock(products []product.Product) int {
	n := 0
	for _, p := range products {
		if p.IsLowStock() {
			n++
		}
	}
	return n
}

// Categories lists the distinct non-empty categories in first-seen order.
func Categories(products []product.Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
