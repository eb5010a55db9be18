package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geosentry/api/internal/ingest"
	"geosentry/api/internal/model"
)

// IngestHandler is the HTTP front door onto the location ingest pipeline:
// a single-update endpoint for live trackers and a bulk endpoint for
// batched/backfilled fixes.
type IngestHandler struct {
	pipeline       *ingest.Pipeline
	bulkConcurrency int
}

func NewIngestHandler(pipeline *ingest.Pipeline, bulkConcurrency int) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, bulkConcurrency: bulkConcurrency}
}

type locationUpdateRequest struct {
	Lat        float64       `json:"lat"`
	Lon        float64       `json:"lon"`
	ObservedAt *time.Time    `json:"observed_at,omitempty"`
	Speed      *float64      `json:"speed,omitempty"`
	Heading    *float64      `json:"heading,omitempty"`
	Accuracy   *float64      `json:"accuracy,omitempty"`
	Altitude   *float64      `json:"altitude,omitempty"`
	Metadata   model.JSONMap `json:"metadata,omitempty"`
}

// Create ingests a single location fix for a device.
// @Summary Ingest a location fix
// @Description Apply a single location update: geofence diffing, trajectory append, transition fanout
// @Tags Ingest
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Device ID"
// @Param update body locationUpdateRequest true "Location fix"
// @Success 200 {object} ingest.Result
// @Failure 400 {object} map[string]string
// @Router /devices/{id}/locations [post]
func (h *IngestHandler) Create(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	var req locationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	observedAt := time.Now()
	if req.ObservedAt != nil {
		observedAt = *req.ObservedAt
	}

	result, err := h.pipeline.Ingest(c.Request.Context(), ingest.Update{
		DeviceID:   deviceID,
		UserID:     userIDFromContext(c),
		Lat:        req.Lat,
		Lon:        req.Lon,
		ObservedAt: observedAt,
		Speed:      req.Speed,
		Heading:    req.Heading,
		Accuracy:   req.Accuracy,
		Altitude:   req.Altitude,
		Metadata:   req.Metadata,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type bulkUpdateItem struct {
	DeviceID   uuid.UUID     `json:"device_id" binding:"required"`
	Lat        float64       `json:"lat"`
	Lon        float64       `json:"lon"`
	ObservedAt *time.Time    `json:"observed_at,omitempty"`
	Speed      *float64      `json:"speed,omitempty"`
	Heading    *float64      `json:"heading,omitempty"`
	Accuracy   *float64      `json:"accuracy,omitempty"`
	Altitude   *float64      `json:"altitude,omitempty"`
	Metadata   model.JSONMap `json:"metadata,omitempty"`
}

type bulkIngestRequest struct {
	Updates []bulkUpdateItem `json:"updates" binding:"required,min=1"`
}

// Bulk ingests a batch of location fixes, possibly spanning many devices.
// @Summary Bulk ingest location fixes
// @Description Apply a batch of location updates; per-device updates are applied in chronological order, devices run concurrently
// @Tags Ingest
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body bulkIngestRequest true "Batched location fixes"
// @Success 200 {object} ingest.BulkReport
// @Failure 400 {object} map[string]string
// @Router /locations/bulk [post]
func (h *IngestHandler) Bulk(c *gin.Context) {
	var req bulkIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Updates) > ingest.MaxBulkItems {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many items in a single bulk request"})
		return
	}

	userID := userIDFromContext(c)
	updates := make([]ingest.Update, 0, len(req.Updates))
	for _, item := range req.Updates {
		observedAt := time.Now()
		if item.ObservedAt != nil {
			observedAt = *item.ObservedAt
		}
		updates = append(updates, ingest.Update{
			DeviceID:   item.DeviceID,
			UserID:     userID,
			Lat:        item.Lat,
			Lon:        item.Lon,
			ObservedAt: observedAt,
			Speed:      item.Speed,
			Heading:    item.Heading,
			Accuracy:   item.Accuracy,
			Altitude:   item.Altitude,
			Metadata:   item.Metadata,
		})
	}

	report := h.pipeline.BulkIngest(c.Request.Context(), updates, h.bulkConcurrency)
	c.JSON(http.StatusOK, report)
}
