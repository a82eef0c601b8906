package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"storefront/internal/logger"
	"storefront/internal/metrics"
)

func newRouter(buf *bytes.Buffer, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter("info", buf)

	r := gin.New()
	r.Use(Logger(log, m), Recovery(log), CORS("https://shop.example.com"))
	r.GET("/ok/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": c.Param("id")}) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestLoggerCountsByRoute(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	r := newRouter(&buf, m)

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/ok/:id", "200")))
	assert.Contains(t, buf.String(), "GET /ok/2 200")
}

func TestRecoveryAnswers500(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	r := newRouter(&buf, m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/panic", "500")))
}

func TestCORSPreflight(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(&buf, nil)

	req := httptest.NewRequest(http.MethodOptions, "/ok/1", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ok/1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
