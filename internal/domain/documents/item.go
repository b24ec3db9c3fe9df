// Package documents holds what the sales documents share: the priced line item.
package documents

import (
	"strings"

	"github.com/shopspring/decimal"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/types"
	"salescycle/internal/domain/finance"
)

// Item is a document line. Derived amounts are owned by Recompute.
type Item struct {
	LineNo int `db:"line_no" json:"lineNo"`

	ProductID string `db:"product_id" json:"productId"`
	// ProductCode is the legacy code, used to recover ProductID on old rows
	ProductCode string `db:"product_code" json:"productCode,omitempty"`
	Description string `db:"description" json:"description,omitempty"`

	Quantity        types.Quantity  `db:"quantity" json:"quantity"`
	UnitPrice       types.Money     `db:"unit_price" json:"unitPrice"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discountPercent"`
	TaxPercent      decimal.Decimal `db:"tax_percent" json:"taxPercent"`

	Subtotal  types.Money `db:"subtotal" json:"subtotal"`
	TaxAmount types.Money `db:"tax_amount" json:"taxAmount"`
	Total     types.Money `db:"total" json:"total"`
}

// LineInput returns the calculator view of the item.
func (i *Item) LineInput() finance.LineInput {
	return finance.LineInput{
		ProductID:       i.ProductID,
		Quantity:        i.Quantity,
		UnitPrice:       i.UnitPrice,
		DiscountPercent: i.DiscountPercent,
		TaxPercent:      i.TaxPercent,
	}
}

// Recompute validates the line and refreshes its derived amounts.
func (i *Item) Recompute() (finance.LineAmounts, error) {
	amounts, err := finance.ComputeLine(i.LineInput())
	if err != nil {
		return finance.LineAmounts{}, err
	}
	i.Subtotal = amounts.Subtotal
	i.TaxAmount = amounts.TaxAmount
	i.Total = amounts.Total
	return amounts, nil
}

// PriceItems renumbers and recomputes every item and returns the document totals.
// number is attached to the error so users can locate the faulty document.
func PriceItems(number string, items []Item) (finance.Totals, error) {
	if len(items) == 0 {
		return finance.Totals{}, apperror.NewValidation("at least one line is required").
			WithDetail("field", "items").
			WithDocument(number)
	}

	amounts := make([]finance.LineAmounts, 0, len(items))
	for idx := range items {
		items[idx].LineNo = idx + 1
		a, err := items[idx].Recompute()
		if err != nil {
			return finance.Totals{}, withLine(err, number, idx+1)
		}
		amounts = append(amounts, a)
	}
	return finance.Sum(amounts), nil
}

// ValidateUnpriced checks lines whose price may still be unknown (deliveries).
func ValidateUnpriced(number string, items []Item) error {
	if len(items) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "items").
			WithDocument(number)
	}

	for idx, it := range items {
		if strings.TrimSpace(it.ProductID) == "" && strings.TrimSpace(it.ProductCode) == "" {
			return apperror.NewInvalidLine("", "product is required").
				WithDetail("lineNo", idx+1).
				WithDocument(number)
		}
		if !it.Quantity.IsPositive() {
			return apperror.NewInvalidLine(it.ProductID, "quantity must be positive").
				WithDetail("lineNo", idx+1).
				WithDocument(number)
		}
		if it.UnitPrice.IsNegative() {
			return apperror.NewInvalidLine(it.ProductID, "unit price cannot be negative").
				WithDetail("lineNo", idx+1).
				WithDocument(number)
		}
	}
	return nil
}

// FindByProduct returns the first line for productID.
func FindByProduct(items []Item, productID string) (Item, bool) {
	for _, it := range items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

func withLine(err error, number string, lineNo int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("lineNo", lineNo).WithDocument(number)
	}
	return err
}
