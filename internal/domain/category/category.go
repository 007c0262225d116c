package category

import (
	"errors"
	"strings"

	"github.com/example/stockroom/internal/domain/product"
	"github.com/example/stockroom/internal/filter"
	"github.com/shopspring/decimal"
)

// Uncategorized labels the bucket for products without a category.
const Uncategorized = "Uncategorized"

var (
	ErrInvalidName = errors.New("category name is required")
	ErrSameName    = errors.New("target category must differ from source")
)

// Stats is one row of the category management table.
type Stats struct {
	Name       string          `json:"name"`
	Products   int             `json:"products"`
	Investment decimal.Decimal `json:"investment"`
}

// Summarize groups products by trimmed category, counting them and adding up
// price times stock. Rows come back in collated name order.
func Summarize(products []product.Product) []Stats {
	byName := make(map[string]*Stats)
	names := make([]string, 0)
	for _, p := range products {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			name = Uncategorized
		}
		s, ok := byName[name]
		if !ok {
			s = &Stats{Name: name, Investment: decimal.Zero}
			byName[name] = s
			names = append(names, name)
		}
		s.Products++
		s.Investment = s.Investment.Add(p.Value())
	}

	filter.SortStrings(names)
	out := make([]Stats, 0, len(names))
	for _, n := range names {
		out = append(out, *byName[n])
	}
	return out
}

// MergeTargets lists the categories products in oldName could be moved into.
func MergeTargets(products []product.Product, oldName string) []string {
	targets := make([]string, 0)
	for _, c := range filter.Categories(products) {
		if c != oldName {
			targets = append(targets, c)
		}
	}
	filter.SortStrings(targets)
	return targets
}

// ValidateMerge checks a merge request and returns the cleaned target name.
func ValidateMerge(oldName, newName string) (string, error) {
	newName = strings.TrimSpace(newName)
	if strings.TrimSpace(oldName) == "" || newName == "" {
		return "", ErrInvalidName
	}
	if newName == oldName {
		return "", ErrSameName
	}
	return newName, nil
}
