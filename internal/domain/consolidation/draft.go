package consolidation

import (
	"time"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/catalogs/party"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/finance"
)

// WarningCode classifies item-level problems that did not abort consolidation.
type WarningCode string

const (
	// WarnVendorOmitted: the first delivery's vendor was unresolvable or inactive.
	WarnVendorOmitted WarningCode = "vendor_omitted"
	// WarnItemDropped: no product id could be recovered for a line.
	WarnItemDropped WarningCode = "item_dropped"
	// WarnNothingToInvoice: the line was fully returned.
	WarnNothingToInvoice WarningCode = "nothing_to_invoice"
	// WarnPriceFromOrder: the unit price was taken from the originating order.
	WarnPriceFromOrder WarningCode = "price_from_order"
	// WarnPricingDiverged: a product was shipped with different price, discount or tax
	// and is billed on more than one line.
	WarnPricingDiverged WarningCode = "pricing_diverged"
)

// Warning is surfaced to the caller alongside the draft.
type Warning struct {
	Code           WarningCode `json:"code"`
	DeliveryNumber string      `json:"deliveryNumber,omitempty"`
	ProductID      string      `json:"productId,omitempty"`
	ProductCode    string      `json:"productCode,omitempty"`
	Message        string      `json:"message"`
}

// Draft is the computed invoice before numbering and persistence.
type Draft struct {
	Client   *party.Party
	VendorID string
	SiteID   string

	// DeliveryIDs back-reference every consolidated delivery
	DeliveryIDs []id.ID

	Items  []documents.Item
	Totals finance.Totals

	// Invoiced lists the delivery lines billed by Items. Dropped and fully
	// returned lines are absent.
	Invoiced []delivery.InvoicedLine

	IssueDate time.Time
	DueDate   time.Time

	Warnings []Warning
}

// Invoice materializes the draft as a DRAFT invoice.
func (d *Draft) Invoice() *invoice.Invoice {
	items := make([]documents.Item, len(d.Items))
	copy(items, d.Items)

	ids := make([]id.ID, len(d.DeliveryIDs))
	copy(ids, d.DeliveryIDs)

	inv := invoice.NewInvoice(d.Client.ID, ids, items)
	inv.VendorID = d.VendorID
	inv.SiteID = d.SiteID
	inv.Date = d.IssueDate
	inv.IssueDate = d.IssueDate
	inv.DueDate = d.DueDate
	inv.Totals = d.Totals
	return inv
}

// HasWarning reports whether a warning with the given code was raised.
func (d *Draft) HasWarning(code WarningCode) bool {
	for _, w := range d.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
