package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geosentry/api/internal/service"
)

// TrajectoryHandler exposes the read-side query surface over a device's
// movement history: the segmented trajectories a device's ingested fixes
// have been rolled up into, the raw points inside one, and summary stats.
type TrajectoryHandler struct {
	trajectoryService *service.TrajectoryService
}

func NewTrajectoryHandler(trajectoryService *service.TrajectoryService) *TrajectoryHandler {
	return &TrajectoryHandler{trajectoryService: trajectoryService}
}

// History returns a device's trajectories since a lookback window, newest first.
// @Summary Device trajectory history
// @Description List a device's trajectories since a lookback window
// @Tags Trajectories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Device ID"
// @Param since query string false "RFC3339 start time"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /devices/{id}/trajectories [get]
func (h *TrajectoryHandler) History(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since time"})
			return
		}
		since = parsed
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	trajectories, total, err := h.trajectoryService.History(c.Request.Context(), deviceID, since, page, pageSize)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trajectories, "total": total, "page": page})
}

// Points returns the fixes that make up a single trajectory.
// @Summary Trajectory points
// @Description Get the individual fixes composing a single trajectory
// @Tags Trajectories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trajectory ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /trajectories/{id}/points [get]
func (h *TrajectoryHandler) Points(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	points, err := h.trajectoryService.Points(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": points})
}

// Latest returns a device's most recent trajectory within a lookback window.
// @Summary Latest device trajectory
// @Description Get a device's most recent trajectory within a lookback window
// @Tags Trajectories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Device ID"
// @Param lookback_hours query int false "Lookback window in hours" default(24)
// @Success 200 {object} model.Trajectory
// @Failure 404 {object} map[string]string
// @Router /devices/{id}/trajectories/latest [get]
func (h *TrajectoryHandler) Latest(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("lookback_hours", "24"))
	if hours <= 0 {
		hours = 24
	}

	trajectory, err := h.trajectoryService.Latest(c.Request.Context(), deviceID, time.Duration(hours)*time.Hour)
	if err != nil {
		respondErr(c, err)
		return
	}
	if trajectory == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no trajectory in window"})
		return
	}

	c.JSON(http.StatusOK, trajectory)
}
