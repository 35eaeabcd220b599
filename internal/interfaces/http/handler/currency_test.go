package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cobranza/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCurrencyRouter(fx *handlerFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCurrencyHandler(fx.service)
	engine := gin.New()
	engine.GET("/currencies", h.ListCurrencies)
	engine.GET("/currencies/rates/latest", h.LatestRates)
	return engine
}

func TestCurrencyHandler_ListCurrencies(t *testing.T) {
	fx := newHandlerFixture(t)
	engine := newCurrencyRouter(fx)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/currencies", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	rows := resp.Data.([]interface{})
	require.Len(t, rows, 2)

	base := rows[0].(map[string]interface{})
	assert.Equal(t, "VES", base["code"])
	assert.Equal(t, true, base["is_base"])

	usd := rows[1].(map[string]interface{})
	assert.Equal(t, "USD", usd["code"])
	assert.Equal(t, "30", usd["rate"])
}

func TestCurrencyHandler_LatestRates(t *testing.T) {
	fx := newHandlerFixture(t)
	engine := newCurrencyRouter(fx)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/currencies/rates/latest", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	rows := resp.Data.([]interface{})
	require.Len(t, rows, 1)
	rate := rows[0].(map[string]interface{})
	assert.Equal(t, "USD", rate["currency"])
}
