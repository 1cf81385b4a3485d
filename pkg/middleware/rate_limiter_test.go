package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"mimic-chat/backend/pkg/errors"
	"mimic-chat/backend/pkg/logger"
	"mimic-chat/backend/pkg/middleware"
)

func limitedRouter(opts middleware.RateLimiterOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	limiter := middleware.NewRateLimiter(logger.New(logger.DefaultConfig()), opts)

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.Use(limiter.Middleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func get(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestConfiguredBurstIsEnforced(t *testing.T) {
	opts := middleware.DefaultRateLimiterOptions()
	opts.Limit = rate.Limit(1)
	opts.Burst = 2
	r := limitedRouter(opts)

	assert.Equal(t, http.StatusOK, get(r))
	assert.Equal(t, http.StatusOK, get(r))
	assert.Equal(t, http.StatusTooManyRequests, get(r))
}

func TestLimiterRefillsOverTime(t *testing.T) {
	opts := middleware.DefaultRateLimiterOptions()
	opts.Limit = rate.Limit(100)
	opts.Burst = 1
	r := limitedRouter(opts)

	assert.Equal(t, http.StatusOK, get(r))
	assert.Equal(t, http.StatusTooManyRequests, get(r))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, http.StatusOK, get(r))
}
