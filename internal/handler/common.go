package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geosentry/api/internal/apperr"
	"geosentry/api/internal/model"
)

// userIDFromContext reads the authenticated caller's id, set by
// AuthHandler.AuthMiddleware. Returns the zero UUID if absent.
func userIDFromContext(c *gin.Context) uuid.UUID {
	v, ok := c.Get("user_id")
	if !ok {
		return uuid.UUID{}
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.UUID{}
	}
	return id
}

// currentUser returns the full authenticated user record stashed in the
// request context by AuthHandler.AuthMiddleware.
func currentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}

// respondErr maps a service-layer error to its HTTP status via the caller's
// apperr.Kind and writes the JSON error envelope.
func respondErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.New(kind, "").HTTPStatus()
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}
