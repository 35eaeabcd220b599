package handler

import (
	"github.com/cobranza/backend/internal/application/receivables"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment preview and registration API endpoints
type PaymentHandler struct {
	BaseHandler
	service *receivables.Service
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(service *receivables.Service) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

// Preview godoc
// @ID           previewPayment
// @Summary      Preview a payment allocation
// @Description  Computes the proposed allocation set and withholding layer for a payment without persisting anything
// @Tags         payment
// @Accept       json
// @Produce      json
// @Param        request body receivables.PaymentRequest true "Payment to preview"
// @Success      200 {object} APIResponse[receivables.PreviewResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /payments/preview [post]
func (h *PaymentHandler) Preview(c *gin.Context) {
	var req receivables.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	preview, err := h.service.PreviewPayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// Register godoc
// @ID           registerPayment
// @Summary      Register a payment
// @Description  Validates, allocates and submits a payment. A payment ID that already registered successfully is refused with 409; after a ledger rejection the same ID may be resubmitted once allocations are recomputed.
// @Tags         payment
// @Accept       json
// @Produce      json
// @Param        request body receivables.PaymentRequest true "Payment to register"
// @Success      201 {object} APIResponse[receivables.RegisterResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /payments [post]
func (h *PaymentHandler) Register(c *gin.Context) {
	var req receivables.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identification is required to register payments")
		return
	}
	rc := receivables.RegisterContext{
		UserID:   userID,
		UserName: getUserName(c),
	}

	result, err := h.service.RegisterPayment(c.Request.Context(), rc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// SelectableMethods godoc
// @ID           listSelectableMethods
// @Summary      List selectable payment methods
// @Description  Returns the payment methods a partner may use, with the partner's default retention method pre-selected. An optional invoice_id restricts retention methods to the invoice's currency.
// @Tags         payment
// @Produce      json
// @Param        id path string true "Partner ID"
// @Param        invoice_id query string false "Invoice ID"
// @Success      200 {object} APIResponse[[]receivables.MethodResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /partners/{id}/methods [get]
func (h *PaymentHandler) SelectableMethods(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid partner ID format")
		return
	}

	var invoiceID *uuid.UUID
	if raw := c.Query("invoice_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid invoice ID format")
			return
		}
		invoiceID = &id
	}

	methods, err := h.service.SelectableMethods(c.Request.Context(), partnerID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, methods)
}
