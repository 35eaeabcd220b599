package handler

import (
	"github.com/cobranza/backend/internal/application/receivables"
	"github.com/gin-gonic/gin"
)

// CurrencyHandler handles currency and exchange rate API endpoints
type CurrencyHandler struct {
	BaseHandler
	service *receivables.Service
}

// NewCurrencyHandler creates a new CurrencyHandler
func NewCurrencyHandler(service *receivables.Service) *CurrencyHandler {
	return &CurrencyHandler{
		service: service,
	}
}

// ListCurrencies godoc
// @ID           listCurrencies
// @Summary      List currencies
// @Description  Returns the configured currencies with their latest rate versus the base currency
// @Tags         currency
// @Produce      json
// @Success      200 {object} APIResponse[[]receivables.CurrencyResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /currencies [get]
func (h *CurrencyHandler) ListCurrencies(c *gin.Context) {
	currencies, err := h.service.ListCurrencies(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, currencies)
}

// LatestRates godoc
// @ID           getLatestRates
// @Summary      Get latest exchange rates
// @Description  Returns the most recent exchange rate per non-base currency
// @Tags         currency
// @Produce      json
// @Success      200 {object} APIResponse[[]receivables.RateResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /currencies/rates/latest [get]
func (h *CurrencyHandler) LatestRates(c *gin.Context) {
	rates, err := h.service.LatestRates(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rates)
}
