package handlers

import (
	"github.com/gin-gonic/gin"

	"salescycle/internal/core/apperror"
	"salescycle/internal/core/id"
	"salescycle/internal/domain/sales"
	"salescycle/internal/domain/workflow"
	"salescycle/internal/infrastructure/cache"
	"salescycle/internal/infrastructure/http/v1/dto"
)

// SalesHandler exposes the sales-cycle operations.
type SalesHandler struct {
	*BaseHandler
	service *sales.Service
	display *cache.DeliveryDisplay
}

// NewSalesHandler creates a sales handler. display may be nil, in which case
// deliveries are always read from storage.
func NewSalesHandler(base *BaseHandler, service *sales.Service, display *cache.DeliveryDisplay) *SalesHandler {
	return &SalesHandler{BaseHandler: base, service: service, display: display}
}

// RegisterRoutes wires the sales endpoints.
func (h *SalesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/quotations", h.CreateQuotation)
	rg.GET("/quotations/:id", h.GetQuotation)
	rg.POST("/quotations/:id/approve", h.ApproveQuotation)

	rg.POST("/orders", h.CreateOrder)
	rg.GET("/orders/:id", h.GetOrder)
	rg.POST("/orders/:id/deliveries", h.CreateDelivery)

	rg.GET("/deliveries/:id", h.GetDelivery)

	rg.POST("/invoices", h.Consolidate)
	rg.GET("/invoices/:id", h.GetInvoice)
	rg.POST("/invoices/:id/stamp", h.Stamp)
	rg.POST("/invoices/:id/credit-notes", h.IssueCreditNote)

	rg.GET("/credit-notes/:id", h.GetCreditNote)

	rg.POST("/transitions", h.Transition)
	rg.GET("/transitions/:entityType/:state", h.Targets)
}

// CreateQuotation handles POST /quotations
func (h *SalesHandler) CreateQuotation(c *gin.Context) {
	var req dto.CreateQuotationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	q, err := h.service.CreateQuotation(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromQuotation(q))
}

// GetQuotation handles GET /quotations/:id
func (h *SalesHandler) GetQuotation(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}
	q, err := h.service.GetQuotation(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromQuotation(q))
}

// ApproveQuotation handles POST /quotations/:id/approve
func (h *SalesHandler) ApproveQuotation(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.ApproveQuotationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := h.service.ApproveQuotation(c.Request.Context(), sales.ApproveQuotationInput{
		QuotationID: docID,
		ProductIDs:  req.ProductIDs,
		SiteID:      req.SiteID,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromOrder(o))
}

// CreateOrder handles POST /orders
func (h *SalesHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := h.service.CreateOrder(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromOrder(o))
}

// GetOrder handles GET /orders/:id
func (h *SalesHandler) GetOrder(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}
	o, err := h.service.GetOrder(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// CreateDelivery handles POST /orders/:id/deliveries
func (h *SalesHandler) CreateDelivery(c *gin.Context) {
	orderID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.CreateDeliveryRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	d, err := h.service.CreateDelivery(c.Request.Context(), req.ToInput(orderID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDelivery(d))
}

// GetDelivery handles GET /deliveries/:id from the display cache.
func (h *SalesHandler) GetDelivery(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if h.display == nil {
		d, err := h.service.GetDelivery(ctx, docID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, dto.FromDelivery(d))
		return
	}

	entry, err := h.display.Get(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	resp := dto.FromDelivery(&entry.Value)
	resp.DisplayStatus = string(entry.Status)
	h.OK(c, resp)
}

// Consolidate handles POST /invoices
func (h *SalesHandler) Consolidate(c *gin.Context) {
	var req dto.ConsolidateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ids, err := dto.ParseIDs(req.DeliveryIDs)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid delivery id").WithDetail("error", err.Error()))
		return
	}

	res, err := h.service.ConsolidateDeliveriesIntoInvoice(c.Request.Context(), sales.ConsolidateInput{
		DeliveryIDs: ids,
		IssueDate:   req.IssueDate,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.ConsolidateResponse{Invoice: dto.FromInvoice(res.Invoice), Warnings: res.Warnings})
}

// GetInvoice handles GET /invoices/:id
func (h *SalesHandler) GetInvoice(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}

// Stamp handles POST /invoices/:id/stamp
func (h *SalesHandler) Stamp(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}
	inv, err := h.service.StampInvoice(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}

// IssueCreditNote handles POST /invoices/:id/credit-notes
func (h *SalesHandler) IssueCreditNote(c *gin.Context) {
	invoiceID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.IssueCreditNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cn, err := h.service.IssueCreditNote(c.Request.Context(), req.ToInput(invoiceID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromCreditNote(cn))
}

// GetCreditNote handles GET /credit-notes/:id
func (h *SalesHandler) GetCreditNote(c *gin.Context) {
	docID, ok := h.ParamID(c)
	if !ok {
		return
	}
	cn, err := h.service.GetCreditNote(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCreditNote(cn))
}

// Transition handles POST /transitions
func (h *SalesHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entityType, err := workflow.ParseEntityType(req.EntityType)
	if err != nil {
		h.Error(c, err)
		return
	}
	docID, err := id.Parse(req.ID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("id", req.ID))
		return
	}

	res, err := h.service.Transition(c.Request.Context(), entityType, docID, workflow.State(req.TargetState))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Targets handles GET /transitions/:entityType/:state and lists the states a user may move to.
func (h *SalesHandler) Targets(c *gin.Context) {
	entityType, err := workflow.ParseEntityType(c.Param("entityType"))
	if err != nil {
		h.Error(c, err)
		return
	}
	targets := h.service.Machine().Targets(entityType, workflow.State(c.Param("state")), workflow.TriggerUser)
	h.OK(c, gin.H{"entityType": entityType, "from": c.Param("state"), "targets": targets})
}
