package health_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"mimic-chat/backend/pkg/health"
	"mimic-chat/backend/pkg/logger"
)

func newChecker() *health.Checker {
	return health.NewChecker(logger.New(logger.DefaultConfig()), time.Minute)
}

func serveHealth(c *health.Checker) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/health", c.Handler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthyWhenCriticalChecksPass(t *testing.T) {
	c := newChecker()
	c.RegisterDatabaseCheck(func() error { return nil })
	c.RunChecks()

	assert.True(t, c.IsSystemHealthy())

	w := serveHealth(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestUnavailableWhenCriticalCheckFails(t *testing.T) {
	c := newChecker()
	c.RegisterDatabaseCheck(func() error { return assert.AnError })
	c.RunChecks()

	assert.False(t, c.IsSystemHealthy())

	w := serveHealth(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unavailable"`)
}

func TestDegradedRedisDoesNotGateHealth(t *testing.T) {
	c := newChecker()
	c.RegisterDatabaseCheck(func() error { return nil })
	c.RegisterRedisCheck(func() error { return assert.AnError })
	c.RunChecks()

	assert.True(t, c.IsSystemHealthy())

	w := serveHealth(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}
