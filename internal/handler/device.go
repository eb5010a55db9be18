package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geosentry/api/internal/model"
	"geosentry/api/internal/service"
	"geosentry/api/internal/spatial"
)

// DeviceHandler handles device-related requests.
type DeviceHandler struct {
	deviceService     *service.DeviceService
	trajectoryService *service.TrajectoryService
	overrides         map[model.Tier]model.TierLimits
}

func NewDeviceHandler(deviceService *service.DeviceService, trajectoryService *service.TrajectoryService, overrides map[model.Tier]model.TierLimits) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService, trajectoryService: trajectoryService, overrides: overrides}
}

// List returns a paginated list of the caller's devices.
// @Summary List devices
// @Description Get a paginated list of devices owned by the caller
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /devices [get]
func (h *DeviceHandler) List(c *gin.Context) {
	userID := userIDFromContext(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	devices, total, err := h.deviceService.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": devices, "total": total, "page": page})
}

// Get returns a single device owned by the caller.
// @Summary Get device
// @Description Get a single device by id
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Device ID"
// @Success 200 {object} model.Device
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /devices/{id} [get]
func (h *DeviceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	device, err := h.deviceService.Get(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// Create registers a new device for the caller, subject to the tier quota.
// @Summary Create device
// @Description Create a new device
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param device body model.Device true "Device data"
// @Success 201 {object} model.Device
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /devices [post]
func (h *DeviceHandler) Create(c *gin.Context) {
	var device model.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := h.deviceService.Create(c.Request.Context(), user, &device, h.overrides); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, device)
}

// Update updates an existing device's mutable fields.
// @Summary Update device
// @Description Update an existing device
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Device ID"
// @Param device body model.Device true "Device data"
// @Success 200 {object} model.Device
// @Failure 400 {object} map[string]string
// @Router /devices/{id} [put]
func (h *DeviceHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	userID := userIDFromContext(c)
	device, err := h.deviceService.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, err)
		return
	}

	var req model.Device
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	device.Name = req.Name
	device.ExternalID = req.ExternalID

	if err := h.deviceService.Update(c.Request.Context(), device); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// Delete soft-deletes a device.
// @Summary Delete device
// @Description Delete a device by id
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Device ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Router /devices/{id} [delete]
func (h *DeviceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.deviceService.Delete(c.Request.Context(), userIDFromContext(c), id); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// maxNearbyRadiusM and maxNearbyLimit bound the nearby-devices query so a
// single request can't force an unbounded table scan or response.
const (
	maxNearbyRadiusM   = 50000
	maxNearbyLimit     = 200
	defaultNearbyLimit = 100
)

// nearbyRequest is the request body for Nearby.
type nearbyRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters" binding:"required,gt=0,lte=50000"`
	Limit        int     `json:"limit,omitempty" binding:"omitempty,gt=0,lte=200"`
}

type nearbyDevice struct {
	DeviceID       uuid.UUID  `json:"device_id"`
	DeviceName     string     `json:"device_name"`
	DistanceMeters float64    `json:"distance_meters"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}

// Nearby ranks the caller's devices by distance from a point, closest first.
// Recovered from the original get_nearby_devices endpoint: a proximity
// lookup over the caller's own fleet, not a routing or ETA query.
// @Summary Find nearby devices
// @Description List the caller's devices within a radius of a point, closest first
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body nearbyRequest true "Search center and radius"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /devices/nearby [post]
func (h *DeviceHandler) Nearby(c *gin.Context) {
	var req nearbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !spatial.ValidLatLon(req.Latitude, req.Longitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude/longitude"})
		return
	}

	center := spatial.Point{Lat: req.Latitude, Lon: req.Longitude}
	devices, _, err := h.deviceService.List(c.Request.Context(), userIDFromContext(c), 1, 1000)
	if err != nil {
		respondErr(c, err)
		return
	}

	found := make([]nearbyDevice, 0, len(devices))
	for _, d := range devices {
		if !d.HasLocation() {
			continue
		}
		dist := spatial.HaversineDistanceM(center, spatial.Point{Lat: *d.LastLat, Lon: *d.LastLon})
		if dist > req.RadiusMeters {
			continue
		}
		found = append(found, nearbyDevice{
			DeviceID:       d.ID,
			DeviceName:     d.Name,
			DistanceMeters: dist,
			LastSeen:       d.LastSeen,
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].DistanceMeters < found[j].DistanceMeters })

	limit := req.Limit
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	if len(found) > limit {
		found = found[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"center_latitude":  req.Latitude,
		"center_longitude": req.Longitude,
		"radius_meters":    req.RadiusMeters,
		"total_found":      len(found),
		"devices":          found,
	})
}

// Stats summarizes a device's movement history over a lookback window.
// @Summary Device movement statistics
// @Description Summarize distance, speed, and trajectory counts over a lookback window
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Device ID"
// @Param days query int false "Lookback window in days" default(7)
// @Success 200 {object} model.TrajectoryStats
// @Failure 400 {object} map[string]string
// @Router /devices/{id}/stats [get]
func (h *DeviceHandler) Stats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if _, err := h.deviceService.Get(c.Request.Context(), userIDFromContext(c), id); err != nil {
		respondErr(c, err)
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 {
		days = 7
	}
	lookback := time.Duration(days) * 24 * time.Hour

	stats, err := h.trajectoryService.Stats(c.Request.Context(), id, lookback)
	if err != nil {
		respondErr(c, err)
		return
	}
	stats.DaysAnalyzed = days

	c.JSON(http.StatusOK, stats)
}
