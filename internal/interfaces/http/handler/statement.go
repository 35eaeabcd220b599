package handler

import (
	"github.com/cobranza/backend/internal/application/receivables"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatementHandler handles partner statement API endpoints
type StatementHandler struct {
	BaseHandler
	service *receivables.Service
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(service *receivables.Service) *StatementHandler {
	return &StatementHandler{
		service: service,
	}
}

// PartnerStatement godoc
// @ID           getPartnerStatement
// @Summary      Get a partner statement
// @Description  Returns the partner's transaction history grouped by currency, with running balances and a per-currency summary
// @Tags         statement
// @Produce      json
// @Param        partnerId path string true "Partner ID"
// @Success      200 {object} APIResponse[receivables.StatementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /statements/{partnerId} [get]
func (h *StatementHandler) PartnerStatement(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("partnerId"))
	if err != nil {
		h.BadRequest(c, "Invalid partner ID format")
		return
	}

	statement, err := h.service.PartnerStatement(c.Request.Context(), partnerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}
