package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *HealthChecker) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Handler(c)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealthChecker(t *testing.T) {
	version := func() string { return "abc123" }

	t.Run("no dependencies", func(t *testing.T) {
		code, resp := serve(t, NewHealthChecker(time.Second, version))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "abc123", resp.ConfigVersion)
		assert.Empty(t, resp.Checks)
	})

	t.Run("healthy dependency", func(t *testing.T) {
		h := NewHealthChecker(time.Second, version)
		h.Register("database", PingFunc(func(context.Context) error { return nil }))
		h.Register("ignored", nil)

		code, resp := serve(t, h)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]string{"database": "ok"}, resp.Checks)
	})

	t.Run("failing dependency", func(t *testing.T) {
		h := NewHealthChecker(time.Second, nil)
		h.Register("database", PingFunc(func(context.Context) error { return nil }))
		h.Register("redis", PingFunc(func(context.Context) error { return errors.New("connection refused") }))

		code, resp := serve(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "connection refused", resp.Checks["redis"])
		assert.Equal(t, "ok", resp.Checks["database"])
	})
}
