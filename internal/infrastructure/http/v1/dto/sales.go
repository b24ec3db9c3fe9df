package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/consolidation"
	"salescycle/internal/domain/documents"
	"salescycle/internal/domain/documents/creditnote"
	"salescycle/internal/domain/documents/delivery"
	"salescycle/internal/domain/documents/invoice"
	"salescycle/internal/domain/documents/order"
	"salescycle/internal/domain/documents/quotation"
	"salescycle/internal/domain/finance"
	"salescycle/internal/domain/sales"
	"salescycle/internal/domain/workflow"
)

// --- Lines ---

// LineRequest is a priced line in a create request.
type LineRequest struct {
	ProductID       string          `json:"productId" binding:"required"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	TaxPercent      decimal.Decimal `json:"taxPercent"`
}

// ToItems maps request lines to document items.
func ToItems(lines []LineRequest) []documents.Item {
	items := make([]documents.Item, len(lines))
	for i, l := range lines {
		items[i] = documents.Item{
			LineNo:          i + 1,
			ProductID:       l.ProductID,
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxPercent:      l.TaxPercent,
		}
	}
	return items
}

// --- Quotations ---

// CreateQuotationRequest creates a DRAFT quotation.
type CreateQuotationRequest struct {
	ClientID   string        `json:"clientId" binding:"required"`
	VendorID   string        `json:"vendorId"`
	ExpiryDate *time.Time    `json:"expiryDate"`
	Comment    string        `json:"comment"`
	Lines      []LineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToInput maps the request to the service input.
func (r CreateQuotationRequest) ToInput() sales.CreateQuotationInput {
	return sales.CreateQuotationInput{
		ClientID:   r.ClientID,
		VendorID:   r.VendorID,
		ExpiryDate: r.ExpiryDate,
		Comment:    r.Comment,
		Items:      ToItems(r.Lines),
	}
}

// ApproveQuotationRequest selects the lines that become an order.
type ApproveQuotationRequest struct {
	ProductIDs []string `json:"productIds"`
	SiteID     string   `json:"siteId" binding:"required"`
}

// QuotationResponse is a quotation as returned by the API.
type QuotationResponse struct {
	DocumentResponse
	ClientID   string           `json:"clientId"`
	VendorID   string           `json:"vendorId,omitempty"`
	State      workflow.State   `json:"state"`
	ExpiryDate *time.Time       `json:"expiryDate,omitempty"`
	Totals     finance.Totals   `json:"totals"`
	Items      []documents.Item `json:"items"`
}

// FromQuotation maps a quotation.
func FromQuotation(q *quotation.Quotation) QuotationResponse {
	return QuotationResponse{
		DocumentResponse: FromDocument(q.Document),
		ClientID:         q.ClientID,
		VendorID:         q.VendorID,
		State:            q.State,
		ExpiryDate:       q.ExpiryDate,
		Totals:           q.Totals,
		Items:            q.Items,
	}
}

// --- Orders ---

// CreateOrderRequest creates a DRAFT order.
type CreateOrderRequest struct {
	ClientID string        `json:"clientId" binding:"required"`
	VendorID string        `json:"vendorId"`
	SiteID   string        `json:"siteId" binding:"required"`
	Date     time.Time     `json:"date"`
	Comment  string        `json:"comment"`
	Lines    []LineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToInput maps the request to the service input.
func (r CreateOrderRequest) ToInput() sales.CreateOrderInput {
	return sales.CreateOrderInput{
		ClientID: r.ClientID,
		VendorID: r.VendorID,
		SiteID:   r.SiteID,
		Date:     r.Date,
		Comment:  r.Comment,
		Items:    ToItems(r.Lines),
	}
}

// OrderResponse is an order as returned by the API.
type OrderResponse struct {
	DocumentResponse
	QuotationID *id.ID           `json:"quotationId,omitempty"`
	ClientID    string           `json:"clientId"`
	VendorID    string           `json:"vendorId,omitempty"`
	SiteID      string           `json:"siteId"`
	State       workflow.State   `json:"state"`
	Totals      finance.Totals   `json:"totals"`
	Items       []documents.Item `json:"items"`
}

// FromOrder maps an order.
func FromOrder(o *order.Order) OrderResponse {
	return OrderResponse{
		DocumentResponse: FromDocument(o.Document),
		QuotationID:      o.QuotationID,
		ClientID:         o.ClientID,
		VendorID:         o.VendorID,
		SiteID:           o.SiteID,
		State:            o.State,
		Totals:           o.Totals,
		Items:            o.Items,
	}
}

// --- Deliveries ---

// DeliveryLineRequest picks an order line to ship.
type DeliveryLineRequest struct {
	ProductID string           `json:"productId" binding:"required"`
	Quantity  *decimal.Decimal `json:"quantity"`
}

// CreateDeliveryRequest ships part of an order. No lines ships everything pending.
type CreateDeliveryRequest struct {
	Date  time.Time             `json:"date"`
	Lines []DeliveryLineRequest `json:"lines" binding:"dive"`
}

// ToInput maps the request to the service input.
func (r CreateDeliveryRequest) ToInput(orderID id.ID) sales.CreateDeliveryInput {
	lines := make([]sales.DeliveryLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = sales.DeliveryLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return sales.CreateDeliveryInput{OrderID: orderID, Lines: lines, Date: r.Date}
}

// DeliveryResponse is a delivery as returned by the API.
type DeliveryResponse struct {
	DocumentResponse
	OrderID   *id.ID          `json:"orderId,omitempty"`
	ClientID  string          `json:"clientId"`
	VendorID  string          `json:"vendorId,omitempty"`
	SiteID    string          `json:"siteId"`
	State     workflow.State  `json:"state"`
	InvoiceID *id.ID          `json:"invoiceId,omitempty"`
	Items     []delivery.Item `json:"items"`

	// DisplayStatus is PENDING while a consolidation is being committed
	DisplayStatus string `json:"displayStatus,omitempty"`
}

// FromDelivery maps a delivery.
func FromDelivery(d *delivery.Delivery) DeliveryResponse {
	return DeliveryResponse{
		DocumentResponse: FromDocument(d.Document),
		OrderID:          d.OrderID,
		ClientID:         d.ClientID,
		VendorID:         d.VendorID,
		SiteID:           d.SiteID,
		State:            d.State,
		InvoiceID:        d.InvoiceID,
		Items:            d.Items,
	}
}

// --- Invoices ---

// ConsolidateRequest bills a set of deliveries with one invoice.
type ConsolidateRequest struct {
	DeliveryIDs []string  `json:"deliveryIds" binding:"required,min=1"`
	IssueDate   time.Time `json:"issueDate"`
}

// InvoiceResponse is an invoice as returned by the API.
type InvoiceResponse struct {
	DocumentResponse
	ClientID          string           `json:"clientId"`
	VendorID          string           `json:"vendorId,omitempty"`
	SiteID            string           `json:"siteId,omitempty"`
	DeliveryIDs       []id.ID          `json:"deliveryIds"`
	IssueDate         time.Time        `json:"issueDate"`
	DueDate           time.Time        `json:"dueDate"`
	State             workflow.State   `json:"state"`
	StampingReference *string          `json:"stampingReference,omitempty"`
	StampedAt         *time.Time       `json:"stampedAt,omitempty"`
	Totals            finance.Totals   `json:"totals"`
	Items             []documents.Item `json:"items"`
}

// FromInvoice maps an invoice.
func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	return InvoiceResponse{
		DocumentResponse:  FromDocument(inv.Document),
		ClientID:          inv.ClientID,
		VendorID:          inv.VendorID,
		SiteID:            inv.SiteID,
		DeliveryIDs:       inv.DeliveryIDs,
		IssueDate:         inv.IssueDate,
		DueDate:           inv.DueDate,
		State:             inv.State,
		StampingReference: inv.StampingReference,
		StampedAt:         inv.StampedAt,
		Totals:            inv.Totals,
		Items:             inv.Items,
	}
}

// ConsolidateResponse is the created invoice with the non-fatal findings.
type ConsolidateResponse struct {
	Invoice  InvoiceResponse         `json:"invoice"`
	Warnings []consolidation.Warning `json:"warnings,omitempty"`
}

// --- Credit notes ---

// CreditNoteLineRequest credits part of an invoice line.
type CreditNoteLineRequest struct {
	ProductID string           `json:"productId" binding:"required"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
}

// IssueCreditNoteRequest records a credit note against an invoice.
type IssueCreditNoteRequest struct {
	Reason string                  `json:"reason" binding:"required"`
	Lines  []CreditNoteLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToInput maps the request to the service input.
func (r IssueCreditNoteRequest) ToInput(invoiceID id.ID) sales.IssueCreditNoteInput {
	lines := make([]sales.CreditNoteLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = sales.CreditNoteLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return sales.IssueCreditNoteInput{InvoiceID: invoiceID, Reason: r.Reason, Lines: lines}
}

// CreditNoteResponse is a credit note as returned by the API.
type CreditNoteResponse struct {
	DocumentResponse
	InvoiceID id.ID            `json:"invoiceId"`
	ClientID  string           `json:"clientId"`
	Reason    string           `json:"reason"`
	State     workflow.State   `json:"state"`
	Totals    finance.Totals   `json:"totals"`
	Items     []documents.Item `json:"items"`
}

// FromCreditNote maps a credit note.
func FromCreditNote(c *creditnote.CreditNote) CreditNoteResponse {
	return CreditNoteResponse{
		DocumentResponse: FromDocument(c.Document),
		InvoiceID:        c.InvoiceID,
		ClientID:         c.ClientID,
		Reason:           c.Reason,
		State:            c.State,
		Totals:           c.Totals,
		Items:            c.Items,
	}
}

// --- Transitions ---

// TransitionRequest asks for a user-triggered state change.
type TransitionRequest struct {
	EntityType  string `json:"entityType" binding:"required"`
	ID          string `json:"id" binding:"required"`
	TargetState string `json:"targetState" binding:"required"`
}
