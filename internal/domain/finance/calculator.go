// Package finance computes document line and document-level amounts.
//
// Every derived monetary value is rounded to cents right after it is computed,
// half away from zero. Tax bases reported to the tax authority must be exact cent
// values, so rounding is never deferred to the end of a calculation.
package finance

import (
	"github.com/shopspring/decimal"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/types"
)

// LineInput is the priced part of a document line.
type LineInput struct {
	ProductID       string
	Quantity        types.Quantity
	UnitPrice       types.Money
	DiscountPercent decimal.Decimal
	TaxPercent      decimal.Decimal
}

// LineAmounts are the derived amounts of one line.
type LineAmounts struct {
	// Gross is unitPrice*quantity before discount
	Gross          types.Money `json:"gross"`
	DiscountAmount types.Money `json:"discountAmount"`
	Subtotal       types.Money `json:"subtotal"`
	TaxAmount      types.Money `json:"taxAmount"`
	Total          types.Money `json:"total"`
}

// Totals are the document-level amounts.
type Totals struct {
	LineExtensionAmount types.Money `db:"line_extension_amount" json:"lineExtensionAmount"`
	DiscountAmount      types.Money `db:"discount_amount" json:"discountAmount"`
	TaxBase             types.Money `db:"tax_base" json:"taxBase"`
	TaxAmount           types.Money `db:"tax_amount" json:"taxAmount"`
	PayableAmount       types.Money `db:"payable_amount" json:"payableAmount"`
}

// ValidateLine checks the line invariants without computing anything.
func ValidateLine(in LineInput) error {
	switch {
	case !in.Quantity.IsPositive():
		return apperror.NewInvalidLine(in.ProductID, "quantity must be positive")
	case !in.UnitPrice.IsPositive():
		return apperror.NewInvalidLine(in.ProductID, "unit price must be positive")
	case in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(types.Hundred()):
		return apperror.NewInvalidLine(in.ProductID, "discount must be between 0 and 100")
	case in.TaxPercent.IsNegative():
		return apperror.NewInvalidLine(in.ProductID, "tax cannot be negative")
	}
	return nil
}

// ComputeLine returns subtotal, tax and total of a line.
//
//	subtotal = round(unitPrice*quantity*(1-discount/100))
//	tax      = round(subtotal*taxPercent/100)
//	total    = subtotal + tax
func ComputeLine(in LineInput) (LineAmounts, error) {
	if err := ValidateLine(in); err != nil {
		return LineAmounts{}, err
	}

	raw := in.UnitPrice.Mul(in.Quantity)
	gross := types.RoundMoney(raw)

	keep := types.Hundred().Sub(in.DiscountPercent)
	subtotal := types.RoundMoney(types.PercentOf(raw, keep))

	tax := types.RoundMoney(types.PercentOf(subtotal, in.TaxPercent))

	return LineAmounts{
		Gross:          gross,
		DiscountAmount: gross.Sub(subtotal),
		Subtotal:       subtotal,
		TaxAmount:      tax,
		Total:          types.RoundMoney(subtotal.Add(tax)),
	}, nil
}

// ComputeTotals recomputes every line and sums them. The first invalid line aborts.
func ComputeTotals(lines []LineInput) (Totals, error) {
	amounts := make([]LineAmounts, 0, len(lines))
	for _, in := range lines {
		a, err := ComputeLine(in)
		if err != nil {
			return Totals{}, err
		}
		amounts = append(amounts, a)
	}
	return Sum(amounts), nil
}

// Sum aggregates already computed line amounts.
func Sum(amounts []LineAmounts) Totals {
	t := Totals{
		LineExtensionAmount: types.Zero(),
		DiscountAmount:      types.Zero(),
		TaxBase:             types.Zero(),
		TaxAmount:           types.Zero(),
	}
	for _, a := range amounts {
		t.LineExtensionAmount = t.LineExtensionAmount.Add(a.Gross)
		t.DiscountAmount = t.DiscountAmount.Add(a.DiscountAmount)
		t.TaxBase = t.TaxBase.Add(a.Subtotal)
		t.TaxAmount = t.TaxAmount.Add(a.TaxAmount)
	}

	t.LineExtensionAmount = types.RoundMoney(t.LineExtensionAmount)
	t.DiscountAmount = types.RoundMoney(t.DiscountAmount)
	t.TaxBase = types.RoundMoney(t.TaxBase)
	t.TaxAmount = types.RoundMoney(t.TaxAmount)
	t.PayableAmount = types.RoundMoney(t.TaxBase.Add(t.TaxAmount))
	return t
}
