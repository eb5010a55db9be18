package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"geosentry/api/internal/apperr"
	"geosentry/api/internal/model"
	"geosentry/api/internal/store"
	"geosentry/api/internal/webhookdispatch"
)

// WebhookService is the CRUD surface over a user's webhook subscriptions.
// Triggering a delivery is no longer this service's job: the ingest
// pipeline enqueues deliveries directly on webhookdispatch.Dispatcher as
// transitions occur. This service owns subscription lifecycle, delivery
// history queries, and the synthetic /test endpoint.
type WebhookService struct {
	store *store.Store
}

func NewWebhookService(s *store.Store) *WebhookService {
	return &WebhookService{store: s}
}

func (s *WebhookService) Create(ctx context.Context, userID uuid.UUID, req *model.CreateWebhookRequest) (*model.WebhookSubscription, error) {
	if len(req.Events) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "at least one event must be subscribed")
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = 30
	}
	sub := &model.WebhookSubscription{
		ID:         uuid.New(),
		UserID:     userID,
		GeofenceID: req.GeofenceID,
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		Events:     req.Events,
		Status:     model.WebhookStatusActive,
		Timeout:    timeout,
	}
	if err := s.store.CreateWebhook(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *WebhookService) Get(ctx context.Context, userID, id uuid.UUID) (*model.WebhookSubscription, error) {
	return s.store.GetWebhook(ctx, userID, id)
}

func (s *WebhookService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.WebhookSubscription, int64, error) {
	return s.store.ListWebhooks(ctx, userID, page, pageSize)
}

func (s *WebhookService) Update(ctx context.Context, sub *model.WebhookSubscription, req *model.UpdateWebhookRequest) error {
	if req.Name != "" {
		sub.Name = req.Name
	}
	if req.URL != "" {
		sub.URL = req.URL
	}
	if req.Secret != "" {
		sub.Secret = req.Secret
	}
	if len(req.Events) > 0 {
		sub.Events = req.Events
	}
	if req.Timeout > 0 {
		sub.Timeout = req.Timeout
	}
	if req.Status != "" {
		sub.Status = model.WebhookStatus(req.Status)
	}
	return s.store.UpdateWebhook(ctx, sub)
}

func (s *WebhookService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.DeleteWebhook(ctx, userID, id)
}

func (s *WebhookService) Deliveries(ctx context.Context, subscriptionID uuid.UUID, page, pageSize int) ([]model.DeliveryAttempt, int64, error) {
	return s.store.ListDeliveryAttempts(ctx, subscriptionID, page, pageSize)
}

// Test fires a synthetic delivery straight through the same signing/HTTP
// path a real transition would use, without touching delivery history or
// the subscription's fail counters.
func (s *WebhookService) Test(ctx context.Context, sub *model.WebhookSubscription, req *model.TestWebhookRequest) (*model.TestWebhookResponse, error) {
	eventType := req.EventType
	if eventType == "" {
		eventType = "enter"
	}
	eventID := uuid.New()
	payload := model.WebhookPayload{
		EventID:   eventID,
		EventType: eventType,
		Timestamp: time.Now().Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := webhookdispatch.Sign(sub.Secret, timestamp, body)

	req2, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, "invalid webhook url", err)
	}
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("User-Agent", "GeoSentry-Webhook/1.0")
	req2.Header.Set(model.WebhookTimestampHeader, timestamp)
	req2.Header.Set(model.WebhookSignatureHeader, signature)
	req2.Header.Set(model.WebhookEventHeader, eventType)
	req2.Header.Set(model.WebhookIDHeader, eventID.String())

	client := &http.Client{Timeout: time.Duration(sub.Timeout) * time.Second}
	start := time.Now()
	httpResp, err := client.Do(req2)
	duration := int(time.Since(start).Milliseconds())

	resp := &model.TestWebhookResponse{DurationMs: duration}
	if err != nil {
		resp.ErrorMessage = err.Error()
		return resp, nil
	}
	defer httpResp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
	resp.StatusCode = httpResp.StatusCode
	resp.Success = httpResp.StatusCode >= 200 && httpResp.StatusCode < 300
	resp.ResponseBody = truncate(string(respBody), 1000)
	return resp, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func (s *WebhookService) Stats(ctx context.Context, userID uuid.UUID) (*model.WebhookStats, error) {
	subs, total, err := s.store.ListWebhooks(ctx, userID, 1, 1000)
	if err != nil {
		return nil, err
	}
	stats := &model.WebhookStats{TotalSubscriptions: total}
	var successTotal, failTotal int64
	for _, sub := range subs {
		if sub.Status == model.WebhookStatusActive {
			stats.ActiveSubscriptions++
		}
		successTotal += sub.SuccessCount
		failTotal += sub.FailCount
	}
	stats.TotalDeliveries = successTotal + failTotal
	stats.SuccessDeliveries = successTotal
	stats.FailedDeliveries = failTotal
	return stats, nil
}
