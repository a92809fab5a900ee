package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/scrapedesk/config"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r *gin.Engine, header, value string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", ""}))

	assert.Equal(t, http.StatusUnauthorized, get(r, "", ""))
	assert.Equal(t, http.StatusUnauthorized, get(r, "X-API-Key", "nope"))
	assert.Equal(t, http.StatusOK, get(r, "X-API-Key", "k1"))
	assert.Equal(t, http.StatusOK, get(r, "Authorization", "Bearer k1"))
}

func TestAuthOpenWithoutKeys(t *testing.T) {
	r := newEngine(Auth(nil))
	assert.Equal(t, http.StatusOK, get(r, "", ""))
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	assert.Equal(t, http.StatusOK, get(r, "", ""))
	assert.Equal(t, http.StatusOK, get(r, "", ""))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "", ""))
}

func TestRateLimitRetryAfter(t *testing.T) {
	r := newEngine(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "0.5", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestAuthQueryParam(t *testing.T) {
	r := newEngine(Auth([]string{" k1 "}))

	req := httptest.NewRequest(http.MethodGet, "/?api_key=k1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
