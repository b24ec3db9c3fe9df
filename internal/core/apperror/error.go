// Package apperror defines the error type every sales operation returns.
// Handlers map it to a JSON body; anything else becomes INTERNAL_ERROR.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	// 5xx
	CodeInternal        = "INTERNAL_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"

	// 400
	CodeValidation  = "VALIDATION_ERROR"
	CodeInvalidLine = "INVALID_LINE"

	// 422
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInactiveParty          = "INACTIVE_PARTY"
	CodeMixedClient            = "MIXED_CLIENT"
	CodeMissingPrice           = "MISSING_PRICE"
	CodeIllegalTransition      = "ILLEGAL_TRANSITION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// 404
	CodeNotFound = "NOT_FOUND"

	// 409
	CodeConflict            = "CONFLICT"
	CodeAlreadyConsolidated = "ALREADY_CONSOLIDATED"
)

// DetailDocumentNumber is the details key carrying the human-readable document number.
const DetailDocumentNumber = "document_number"

// AppError carries a machine-readable code, a message safe to show users and
// optional details. Err is logged but never serialized.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func newError(code string, status int, message string, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail sets one details entry.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// WithDocument attaches the document number users see on screen.
// Drafts without a number are left alone.
func (e *AppError) WithDocument(number string) *AppError {
	if number == "" {
		return e
	}
	return e.WithDetail(DetailDocumentNumber, number)
}

// WithCause sets the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NewValidation(message string) *AppError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, entity+" not found",
		map[string]any{"entity": entity, "id": id})
}

// NewBusinessRule reports a 422 under a caller-chosen code.
func NewBusinessRule(code, message string) *AppError {
	return newError(code, http.StatusUnprocessableEntity, message, nil)
}

// NewInvalidLine rejects a single document line.
func NewInvalidLine(productID, reason string) *AppError {
	return newError(CodeInvalidLine, http.StatusBadRequest,
		fmt.Sprintf("Invalid line for product %q: %s", productID, reason),
		map[string]any{"product_id": productID, "reason": reason})
}

// NewInactiveParty is returned when a client or vendor is required but inactive.
func NewInactiveParty(role, partyID, displayName string) *AppError {
	return newError(CodeInactiveParty, http.StatusUnprocessableEntity,
		fmt.Sprintf("The %s %q is inactive", role, displayName),
		map[string]any{"role": role, "party_id": partyID})
}

// NewMixedClient is returned when deliveries of different clients are consolidated together.
func NewMixedClient(clientIDs []string) *AppError {
	return newError(CodeMixedClient, http.StatusUnprocessableEntity,
		"An invoice can only consolidate deliveries of a single client",
		map[string]any{"client_ids": clientIDs})
}

// NewMissingPrice is returned when no positive unit price can be resolved for a line.
func NewMissingPrice(productID string) *AppError {
	return newError(CodeMissingPrice, http.StatusUnprocessableEntity,
		fmt.Sprintf("No unit price found for product %q", productID),
		map[string]any{"product_id": productID})
}

func NewIllegalTransition(entityType, from, to string) *AppError {
	return newError(CodeIllegalTransition, http.StatusUnprocessableEntity,
		fmt.Sprintf("%s cannot move from %s to %s", entityType, from, to),
		map[string]any{"entity_type": entityType, "from": from, "to": to})
}

// NewAlreadyConsolidated is returned when a delivery already references an invoice.
func NewAlreadyConsolidated(deliveryID, invoiceID string) *AppError {
	return newError(CodeAlreadyConsolidated, http.StatusConflict,
		"Delivery is already consolidated into an invoice",
		map[string]any{"delivery_id": deliveryID, "invoice_id": invoiceID})
}

// NewExternalService wraps a failure of the persistence or stamping collaborator.
func NewExternalService(service string, err error) *AppError {
	e := newError(CodeExternalService, http.StatusBadGateway, service+" is unavailable",
		map[string]any{"service": service})
	e.Err = err
	return e
}

// NewConcurrentModification is returned when a compare-and-set update lost a race.
func NewConcurrentModification(entity string, id any) *AppError {
	return newError(CodeConcurrentModification, http.StatusConflict,
		"Record was modified by another user. Please refresh and try again.",
		map[string]any{"entity": entity, "id": id})
}

// NewInternal hides err from the client.
func NewInternal(err error) *AppError {
	e := newError(CodeInternal, http.StatusInternalServerError, "Internal server error", nil)
	e.Err = err
	return e
}

func NewConflict(message string) *AppError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError extracts the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}
