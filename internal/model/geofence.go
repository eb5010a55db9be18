package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShapeType distinguishes the two geofence geometries the core accepts.
// A circle is stored and returned as submitted; only the geofence index
// converts it to a polygon, so containment checks handle one shape family.
type ShapeType string

const (
	ShapeCircle  ShapeType = "circle"
	ShapePolygon ShapeType = "polygon"
)

// Geofence is a user-owned simple polygon (or circle, approximated to one)
// tested for point containment at ingest rates.
type Geofence struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID      uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Name        string         `json:"name" gorm:"size:100;not null"`
	Description string         `json:"description"`
	Type        ShapeType      `json:"type" gorm:"size:20;not null"`
	Coordinates JSONMap        `json:"coordinates" gorm:"type:jsonb;not null"`
	EventMask   []string       `json:"event_mask" gorm:"type:text[];not null;default:'{enter,exit}'"`
	Active      bool           `json:"active" gorm:"not null;default:true"`
	Metadata    JSONMap        `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Geofence) TableName() string { return "geofences" }

// WantsEvent reports whether this geofence alerts on the given transition type.
func (g *Geofence) WantsEvent(eventType string) bool {
	for _, e := range g.EventMask {
		if e == eventType {
			return true
		}
	}
	return false
}

// GeofenceEvent is the persisted record of an enter/exit transition.
type GeofenceEvent struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	GeofenceID  uuid.UUID `json:"geofence_id" gorm:"type:uuid;not null;index"`
	DeviceID    uuid.UUID `json:"device_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	EventType   string    `json:"event_type" gorm:"size:20;not null"` // enter, exit
	Lat         float64   `json:"lat" gorm:"not null"`
	Lon         float64   `json:"lon" gorm:"not null"`
	Metadata    JSONMap   `json:"metadata,omitempty" gorm:"type:jsonb"`
	TriggeredAt time.Time `json:"triggered_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
}

func (GeofenceEvent) TableName() string { return "geofence_events" }

// CircleGeofenceCoordinates is the wire shape for a circle geofence:
//
//	{"center": {"lat": 39.9042, "lon": 116.4074}, "radius_m": 1000}
type CircleGeofenceCoordinates struct {
	Center  Point   `json:"center"`
	RadiusM float64 `json:"radius_m"`
}

// PolygonGeofenceCoordinates is the wire shape for a polygon geofence:
//
//	{"points": [{"lat": 39.9042, "lon": 116.4074}, ...]}
type PolygonGeofenceCoordinates struct {
	Points []Point `json:"points"`
}

// Point is a WGS84 lat/lon pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TransitionEvent is the payload fanned out by the Event Bus.
type TransitionEvent struct {
	EventType  string    `json:"event_type"` // enter, exit
	DeviceID   uuid.UUID `json:"device_id"`
	GeofenceID uuid.UUID `json:"geofence_id"`
	UserID     uuid.UUID `json:"user_id"`
	Point      Point     `json:"point"`
	Timestamp  time.Time `json:"ts"`
	Metadata   JSONMap   `json:"metadata,omitempty"`
}
