package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geosentry/api/internal/admission"
	"geosentry/api/internal/model"
)

// AdmissionMiddleware enforces the tiered sliding-window-log limits on every
// authenticated request. It expects "user_id" and "user_tier" to already be
// set in the Gin context by the auth middleware; unauthenticated requests
// fall back to an IP-keyed free-tier check.
func AdmissionMiddleware(limiter *admission.Limiter, overrides map[model.Tier]model.TierLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier, tier := admissionIdentity(c)
		limits := tier.Limits(overrides)

		decision := limiter.Check(c.Request.Context(), identifier, limits)
		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
		}

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error_kind": "RATE_LIMITED",
				"message":    "too many requests for the " + decision.Window + " window",
				"details": gin.H{
					"window": decision.Window,
					"limit":  decision.Limit,
				},
				"retry_after_s": int(decision.RetryAfter.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// admissionIdentity derives the admission key and tier for the current
// request, preferring the authenticated user over the client IP. There is
// no API-key step: a request without an authenticated user is keyed by its
// remote address.
func admissionIdentity(c *gin.Context) (string, model.Tier) {
	if uid, ok := c.Get("user_id"); ok {
		tier := model.TierFree
		if t, ok := c.Get("user_tier"); ok {
			if tt, ok := t.(model.Tier); ok {
				tier = tt
			}
		}
		return "user:" + uidString(uid), tier
	}
	return "ip:" + c.ClientIP(), model.TierFree
}

func uidString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case interface{ String() string }:
		return val.String()
	default:
		return ""
	}
}
