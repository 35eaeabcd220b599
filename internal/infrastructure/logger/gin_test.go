package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, handler gin.HandlerFunc, target string) (*observer.ObservedLogs, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	engine.Use(GinMiddleware(zap.New(core)))
	engine.GET("/api/v1/statements/:partnerId", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	engine.ServeHTTP(w, req)
	return logs, w
}

func completionLog(t *testing.T, logs *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware(t *testing.T) {
	logs, w := serveLogged(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	}, "/api/v1/statements/p-1")

	assert.Equal(t, http.StatusOK, w.Code)

	entry := completionLog(t, logs)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/statements/p-1", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Contains(t, fields, "latency")
	assert.Contains(t, fields, "client_ip")
}

func TestGinMiddleware_QueryIsLogged(t *testing.T) {
	logs, _ := serveLogged(t, func(c *gin.Context) {
		c.Status(http.StatusOK)
	}, "/api/v1/statements/p-1?currency=VES")

	fields := completionLog(t, logs).ContextMap()
	assert.Equal(t, "currency=VES", fields["query"])
}

func TestGinMiddleware_ClientErrorLogsWarn(t *testing.T) {
	logs, w := serveLogged(t, func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false})
	}, "/api/v1/statements/p-1")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, zapcore.WarnLevel, completionLog(t, logs).Level)
}

func TestGinMiddleware_ServerErrorLogsError(t *testing.T) {
	logs, _ := serveLogged(t, func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	}, "/api/v1/statements/p-1")

	assert.Equal(t, zapcore.ErrorLevel, completionLog(t, logs).Level)
}

func TestGinMiddleware_PlantsContextLogger(t *testing.T) {
	var fromGin, fromCtx *zap.Logger
	logs, _ := serveLogged(t, func(c *gin.Context) {
		fromGin = GetGinLogger(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	}, "/api/v1/statements/p-1")

	require.NotNil(t, fromGin)
	assert.Same(t, fromGin, fromCtx)
	completionLog(t, logs)
}

func TestGinMiddleware_StampsRequestIDIntoContext(t *testing.T) {
	var stamped string
	_, _ = serveLogged(t, func(c *gin.Context) {
		stamped = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	}, "/api/v1/statements/p-1")

	assert.Equal(t, "req-42", stamped)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)

	engine := gin.New()
	engine.Use(Recovery(zap.New(core)))
	engine.POST("/api/v1/payments", func(c *gin.Context) {
		panic("allocation engine blew up")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "allocation engine blew up", fields["panic"])
	assert.Equal(t, "/api/v1/payments", fields["path"])
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	got := GetGinLogger(c)
	require.NotNil(t, got)
	got.Info("ignored")
}
