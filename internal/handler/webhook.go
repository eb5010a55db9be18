package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geosentry/api/internal/model"
	"geosentry/api/internal/service"
)

// WebhookHandler handles webhook subscription lifecycle, delivery history,
// and the synthetic test endpoint.
type WebhookHandler struct {
	webhookService *service.WebhookService
}

func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// RegisterRoutes wires the webhook subscription surface under r.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.GET("", h.List)
		webhooks.POST("", h.Create)
		webhooks.GET("/stats", h.Stats)
		webhooks.GET("/:id", h.Get)
		webhooks.PUT("/:id", h.Update)
		webhooks.DELETE("/:id", h.Delete)
		webhooks.POST("/:id/test", h.Test)
		webhooks.GET("/:id/deliveries", h.Deliveries)
	}
}

// List returns a paginated list of the caller's webhook subscriptions.
// @Summary List webhooks
// @Description Get a paginated list of the caller's webhook subscriptions
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} map[string]interface{}
// @Router /webhooks [get]
func (h *WebhookHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	subs, total, err := h.webhookService.List(c.Request.Context(), userIDFromContext(c), page, pageSize)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subs, "total": total, "page": page})
}

// Get returns a single webhook subscription owned by the caller.
// @Summary Get webhook
// @Description Get a single webhook subscription by id
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Success 200 {object} model.WebhookSubscription
// @Failure 404 {object} map[string]string
// @Router /webhooks/{id} [get]
func (h *WebhookHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	sub, err := h.webhookService.Get(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Create registers a new webhook subscription for the caller.
// @Summary Create webhook
// @Description Create a new webhook subscription
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param webhook body model.CreateWebhookRequest true "Webhook data"
// @Success 201 {object} model.WebhookSubscription
// @Failure 400 {object} map[string]string
// @Router /webhooks [post]
func (h *WebhookHandler) Create(c *gin.Context) {
	var req model.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.webhookService.Create(c.Request.Context(), userIDFromContext(c), &req)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// Update updates an existing webhook subscription's mutable fields.
// @Summary Update webhook
// @Description Update an existing webhook subscription
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Param webhook body model.UpdateWebhookRequest true "Webhook data"
// @Success 200 {object} model.WebhookSubscription
// @Failure 400 {object} map[string]string
// @Router /webhooks/{id} [put]
func (h *WebhookHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	sub, err := h.webhookService.Get(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	var req model.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.webhookService.Update(c.Request.Context(), sub, &req); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Delete removes a webhook subscription.
// @Summary Delete webhook
// @Description Delete a webhook subscription by id
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Success 204
// @Router /webhooks/{id} [delete]
func (h *WebhookHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.webhookService.Delete(c.Request.Context(), userIDFromContext(c), id); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Test fires a synthetic delivery at the subscription's URL so the caller
// can verify signature handling before relying on live transitions.
// @Summary Test webhook
// @Description Fire a synthetic delivery at the subscription endpoint
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Param request body model.TestWebhookRequest true "Test event"
// @Success 200 {object} model.TestWebhookResponse
// @Failure 400 {object} map[string]string
// @Router /webhooks/{id}/test [post]
func (h *WebhookHandler) Test(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	sub, err := h.webhookService.Get(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	var req model.TestWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.webhookService.Test(c.Request.Context(), sub, &req)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Deliveries returns a paginated delivery attempt history for a subscription.
// @Summary Webhook delivery history
// @Description Get a paginated delivery attempt history for a subscription
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} map[string]interface{}
// @Router /webhooks/{id}/deliveries [get]
func (h *WebhookHandler) Deliveries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if _, err := h.webhookService.Get(c.Request.Context(), userIDFromContext(c), id); err != nil {
		respondErr(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	deliveries, total, err := h.webhookService.Deliveries(c.Request.Context(), id, page, pageSize)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": deliveries, "total": total, "page": page})
}

// Stats summarizes the caller's webhook subscriptions and delivery counters.
// @Summary Webhook stats
// @Description Summarize the caller's webhook subscriptions and delivery counters
// @Tags Webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.WebhookStats
// @Router /webhooks/stats [get]
func (h *WebhookHandler) Stats(c *gin.Context) {
	stats, err := h.webhookService.Stats(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
