package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewmaxx/backend/internal/cache"
)

func throttledRouter(limiter AttemptLimiter, limit int64, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/login", ThrottleAuth(limiter, limit, window), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postLogin(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestThrottleAuthCapsAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	store, err := cache.NewCache(mr.Host(), port, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	router := throttledRouter(store, 3, time.Minute)

	for i := 0; i < 3; i++ {
		w := postLogin(router)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := postLogin(router)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many attempts")

	// The window resets after expiry
	mr.FastForward(2 * time.Minute)
	w = postLogin(router)
	assert.Equal(t, http.StatusOK, w.Code)
}

type failingLimiter struct{}

func (failingLimiter) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestThrottleAuthFailsOpen(t *testing.T) {
	router := throttledRouter(failingLimiter{}, 3, time.Minute)

	w := postLogin(router)
	assert.Equal(t, http.StatusOK, w.Code, "a limiter outage must not block logins")
}
