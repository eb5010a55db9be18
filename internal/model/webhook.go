package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookRetrySchedule is the fixed backoff schedule applied to a failed
// delivery before it is abandoned.
var WebhookRetrySchedule = []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second}

// WebhookStatus is the lifecycle state of a subscription.
type WebhookStatus string

const (
	WebhookStatusActive   WebhookStatus = "active"
	WebhookStatusInactive WebhookStatus = "inactive"
	WebhookStatusFailed   WebhookStatus = "failed"
)

// WebhookSubscription is a user-owned HTTP callback registered against one
// geofence (or all of a user's geofences, when GeofenceID is nil) for enter
// and/or exit transitions.
type WebhookSubscription struct {
	ID              uuid.UUID     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID          uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index"`
	GeofenceID      *uuid.UUID    `json:"geofence_id,omitempty" gorm:"type:uuid;index"`
	Name            string        `json:"name" gorm:"size:100;not null"`
	URL             string        `json:"url" gorm:"size:500;not null"`
	Secret          string        `json:"-" gorm:"size:255"`
	Events          []string      `json:"events" gorm:"type:text[];not null;default:'{enter,exit}'"`
	Status          WebhookStatus `json:"status" gorm:"size:20;not null;default:'active'"`
	Timeout         int           `json:"timeout" gorm:"not null;default:10"` // seconds
	SuccessCount    int64         `json:"success_count" gorm:"not null;default:0"`
	FailCount       int64         `json:"fail_count" gorm:"not null;default:0"`
	LastTriggeredAt *time.Time    `json:"last_triggered_at,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (WebhookSubscription) TableName() string { return "webhook_subscriptions" }

// Wants reports whether this subscription should fire for eventType.
func (w *WebhookSubscription) Wants(eventType string) bool {
	if w.Status != WebhookStatusActive {
		return false
	}
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// DeliveryAttempt is one HTTP POST attempt against a subscription. A single
// logical delivery may have several attempts, the first one plus one per
// WebhookRetrySchedule entry, sharing the same EventID.
type DeliveryAttempt struct {
	ID             uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SubscriptionID uuid.UUID       `json:"subscription_id" gorm:"type:uuid;not null;index"`
	EventID        uuid.UUID       `json:"event_id" gorm:"type:uuid;not null;index"`
	EventType      string          `json:"event_type" gorm:"size:20;not null"`
	Attempt        int             `json:"attempt" gorm:"not null;default:1"`
	Payload        json.RawMessage `json:"payload" gorm:"type:jsonb;not null"`
	ResponseStatus *int            `json:"response_status,omitempty"`
	ResponseBody   string          `json:"response_body,omitempty"`
	DurationMs     int             `json:"duration_ms"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Success        bool            `json:"success" gorm:"not null;default:false"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (DeliveryAttempt) TableName() string { return "webhook_delivery_attempts" }

// WebhookPayload is the JSON body POSTed to a subscriber's URL.
type WebhookPayload struct {
	EventID    uuid.UUID `json:"event_id"`
	EventType  string    `json:"event_type"`
	DeviceID   uuid.UUID `json:"device_id"`
	GeofenceID uuid.UUID `json:"geofence_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Timestamp  int64     `json:"timestamp"`
}

// Header names used when signing and delivering a webhook request.
const (
	WebhookSignatureHeader = "X-Webhook-Signature"
	WebhookTimestampHeader = "X-Webhook-Timestamp"
	WebhookEventHeader     = "X-Webhook-Event"
	WebhookIDHeader        = "X-Webhook-ID"
)

// CreateWebhookRequest is the request body for registering a subscription.
type CreateWebhookRequest struct {
	Name       string     `json:"name" binding:"required,max=100"`
	GeofenceID *uuid.UUID `json:"geofence_id,omitempty"`
	URL        string     `json:"url" binding:"required,url,max=500"`
	Secret     string     `json:"secret" binding:"max=255"`
	Events     []string   `json:"events" binding:"required"`
	Timeout    int        `json:"timeout" binding:"min=1,max=60"`
}

// UpdateWebhookRequest is the request body for modifying a subscription.
type UpdateWebhookRequest struct {
	Name    string   `json:"name" binding:"omitempty,max=100"`
	URL     string   `json:"url" binding:"omitempty,url,max=500"`
	Secret  string   `json:"secret" binding:"max=255"`
	Events  []string `json:"events"`
	Status  string   `json:"status" binding:"omitempty,oneof=active inactive"`
	Timeout int      `json:"timeout" binding:"min=1,max=60"`
}

// WebhookListResponse paginates a user's subscriptions.
type WebhookListResponse struct {
	List     []WebhookSubscription `json:"list"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// WebhookDeliveryResponse paginates a subscription's delivery attempts.
type WebhookDeliveryResponse struct {
	List     []DeliveryAttempt `json:"list"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// TestWebhookRequest triggers a synthetic delivery for end-to-end verification.
type TestWebhookRequest struct {
	EventType string `json:"event_type" binding:"required,oneof=enter exit"`
}

// TestWebhookResponse reports the outcome of a synthetic delivery.
type TestWebhookResponse struct {
	Success      bool   `json:"success"`
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
	DurationMs   int    `json:"duration_ms"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// WebhookStats summarizes a user's subscriptions and delivery history.
type WebhookStats struct {
	TotalSubscriptions  int64 `json:"total_subscriptions"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	TotalDeliveries     int64 `json:"total_deliveries"`
	SuccessDeliveries   int64 `json:"success_deliveries"`
	FailedDeliveries    int64 `json:"failed_deliveries"`
	TodayDeliveries     int64 `json:"today_deliveries"`
}
