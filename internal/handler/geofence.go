package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geosentry/api/internal/model"
	"geosentry/api/internal/service"
)

// GeofenceHandler handles geofence-related requests.
type GeofenceHandler struct {
	geofenceService *service.GeofenceService
	overrides       map[model.Tier]model.TierLimits
}

func NewGeofenceHandler(geofenceService *service.GeofenceService, overrides map[model.Tier]model.TierLimits) *GeofenceHandler {
	return &GeofenceHandler{geofenceService: geofenceService, overrides: overrides}
}

// Create creates a new geofence, subject to the tier geofence quota.
// @Summary Create geofence
// @Description Create a new geofence (circle or polygon)
// @Tags Geofences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param geofence body model.Geofence true "Geofence data"
// @Success 201 {object} model.Geofence
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /geofences [post]
func (h *GeofenceHandler) Create(c *gin.Context) {
	var geofence model.Geofence
	if err := c.ShouldBindJSON(&geofence); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := h.geofenceService.Create(c.Request.Context(), user, &geofence, h.overrides); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, geofence)
}

// List returns a paginated list of the caller's geofences.
// @Summary List geofences
// @Description Get a paginated list of the caller's geofences
// @Tags Geofences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /geofences [get]
func (h *GeofenceHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	geofences, total, err := h.geofenceService.List(c.Request.Context(), userIDFromContext(c), page, pageSize)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": geofences, "total": total, "page": page})
}

// Get returns a single geofence owned by the caller.
// @Summary Get geofence
// @Description Get a single geofence by id
// @Tags Geofences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Geofence ID"
// @Success 200 {object} model.Geofence
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /geofences/{id} [get]
func (h *GeofenceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	geofence, err := h.geofenceService.Get(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, geofence)
}

// Update updates an existing geofence's mutable fields.
// @Summary Update geofence
// @Description Update an existing geofence
// @Tags Geofences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Geofence ID"
// @Param geofence body model.Geofence true "Geofence data"
// @Success 200 {object} model.Geofence
// @Failure 400 {object} map[string]string
// @Router /geofences/{id} [put]
func (h *GeofenceHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	userID := userIDFromContext(c)
	geofence, err := h.geofenceService.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, err)
		return
	}

	var req model.Geofence
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	geofence.Name = req.Name
	geofence.Description = req.Description
	geofence.Type = req.Type
	geofence.Coordinates = req.Coordinates
	geofence.EventMask = req.EventMask
	geofence.Active = req.Active
	geofence.Metadata = req.Metadata

	if err := h.geofenceService.Update(c.Request.Context(), geofence); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, geofence)
}

// Delete deletes a geofence and removes it from the live index.
// @Summary Delete geofence
// @Description Delete a geofence by id
// @Tags Geofences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Geofence ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Router /geofences/{id} [delete]
func (h *GeofenceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.geofenceService.Delete(c.Request.Context(), userIDFromContext(c), id); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetEvents returns a paginated history of enter/exit transitions for a geofence.
// @Summary Get geofence events
// @Description Get the enter/exit event history for a geofence
// @Tags Geofences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Geofence ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /geofences/{id}/events [get]
func (h *GeofenceHandler) GetEvents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	events, total, err := h.geofenceService.Events(c.Request.Context(), id, page, pageSize)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events, "total": total, "page": page})
}
