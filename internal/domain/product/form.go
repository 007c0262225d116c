package product

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldCheck is the result of validating the numeric form fields.
type FieldCheck struct {
	StockInvalid  bool `json:"stock_invalid"`
	PriceInvalid  bool `json:"price_invalid"`
	SubmitEnabled bool `json:"submit_enabled"`
}

// ValidateFields checks the raw stock and price inputs the way the product
// form does on every keystroke: stock is invalid when blank or negative, price
// when blank or not above zero. Unparseable input counts as invalid.
func ValidateFields(stockRaw, priceRaw string) FieldCheck {
	var check FieldCheck

	stockRaw = strings.TrimSpace(stockRaw)
	if stockRaw == "" {
		check.StockInvalid = true
	} else if n, err := strconv.Atoi(stockRaw); err != nil || n < 0 {
		check.StockInvalid = true
	}

	priceRaw = strings.TrimSpace(priceRaw)
	if priceRaw == "" {
		check.PriceInvalid = true
	} else if d, err := decimal.NewFromString(priceRaw); err != nil || !d.IsPositive() {
		check.PriceInvalid = true
	}

	check.SubmitEnabled = !check.StockInvalid && !check.PriceInvalid
	return check
}

// Form is the product form as submitted: numbers arrive as text and the
// category comes either from the existing-category select or from the
// free-text "new category" input.
type Form struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	NewCategory    string `json:"new_category"`
	UseNewCategory bool   `json:"use_new_category"`
	Stock          string `json:"stock"`
	Price          string `json:"price"`
}

// ParseForm validates the form and turns it into a Draft.
func (f Form) ParseForm() (Draft, error) {
	check := ValidateFields(f.Stock, f.Price)
	if check.StockInvalid {
		return Draft{}, ErrInvalidStock
	}
	if check.PriceInvalid {
		return Draft{}, ErrInvalidPrice
	}

	category := f.Category
	if f.UseNewCategory {
		category = strings.TrimSpace(f.NewCategory)
		if category == "" {
			return Draft{}, ErrEmptyCategory
		}
	}

	// both already parsed successfully in ValidateFields
	stock, _ := strconv.Atoi(strings.TrimSpace(f.Stock))
	price, _ := decimal.NewFromString(strings.TrimSpace(f.Price))

	d := Draft{
		Name:     strings.TrimSpace(f.Name),
		Category: category,
		Stock:    stock,
		Price:    price,
	}
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}
