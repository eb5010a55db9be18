package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geosentry/api/internal/admission"
	"geosentry/api/internal/model"
)

func newTestLimiter(t *testing.T) *admission.Limiter {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return admission.New(rdb)
}

func runRequest(limiter *admission.Limiter, overrides map[model.Tier]model.TierLimits, userID uuid.UUID, tier model.Tier) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set("user_id", userID)
			c.Set("user_tier", tier)
		}
		c.Next()
	})
	router.Use(AdmissionMiddleware(limiter, overrides))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestAdmissionMiddleware_AllowsUnderLimit(t *testing.T) {
	limiter := newTestLimiter(t)
	overrides := map[model.Tier]model.TierLimits{model.TierFree: {PerMinute: 5, PerHour: 100, PerDay: 1000}}

	w := runRequest(limiter, overrides, uuid.New(), model.TierFree)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmissionMiddleware_RejectsOverLimit(t *testing.T) {
	limiter := newTestLimiter(t)
	overrides := map[model.Tier]model.TierLimits{model.TierFree: {PerMinute: 1, PerHour: 100, PerDay: 1000}}
	userID := uuid.New()

	first := runRequest(limiter, overrides, userID, model.TierFree)
	require.Equal(t, http.StatusOK, first.Code)

	second := runRequest(limiter, overrides, userID, model.TierFree)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestAdmissionMiddleware_UnauthenticatedFallsBackToIP(t *testing.T) {
	limiter := newTestLimiter(t)
	overrides := map[model.Tier]model.TierLimits{model.TierFree: {PerMinute: 5, PerHour: 100, PerDay: 1000}}

	w := runRequest(limiter, overrides, uuid.Nil, model.TierFree)
	assert.Equal(t, http.StatusOK, w.Code)
}
