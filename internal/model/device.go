package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device represents a tracked device, exclusively owned by a user.
type Device struct {
	ID         uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID     uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Name       string         `json:"name" gorm:"size:100;not null"`
	ExternalID *string        `json:"external_id,omitempty" gorm:"uniqueIndex;size:64"`
	LastLat    *float64       `json:"last_lat,omitempty"`
	LastLon    *float64       `json:"last_lon,omitempty"`
	LastSeen   *time.Time     `json:"last_seen,omitempty" gorm:"index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// HasLocation reports whether the device has ever received a location update.
func (d *Device) HasLocation() bool {
	return d.LastLat != nil && d.LastLon != nil
}

// DeviceShadow is the shape of a device's latest location as carried on the
// event bus. The ingest pipeline does not write it to the cache; the latest
// fix is persisted on the Device row (LastLat, LastLon, LastSeen).
type DeviceShadow struct {
	DeviceID  uuid.UUID `json:"device_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed,omitempty"`
	Heading   float64   `json:"heading,omitempty"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Altitude  float64   `json:"altitude,omitempty"`
	Timestamp int64     `json:"ts"`
}

// JSONMap is a helper type for JSONB fields.
type JSONMap map[string]interface{}
