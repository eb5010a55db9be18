package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrajectoryGapThreshold is the maximum silence between two consecutive
// points of the same device before a new trajectory is opened instead of
// extending the current one.
const TrajectoryGapThreshold = time.Hour

// Trajectory is a contiguous run of location points for one device, closed
// off and re-opened whenever the gap since the last point exceeds
// TrajectoryGapThreshold.
type Trajectory struct {
	ID              uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	DeviceID        uuid.UUID      `json:"device_id" gorm:"type:uuid;not null;index"`
	UserID          uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	StartTime       time.Time      `json:"start_time" gorm:"not null"`
	EndTime         time.Time      `json:"end_time" gorm:"not null;index"`
	PointCount      int            `json:"point_count" gorm:"not null;default:0"`
	TotalDistanceM  float64        `json:"total_distance_m" gorm:"not null;default:0"`
	AvgSpeedMS      float64        `json:"avg_speed_ms" gorm:"not null;default:0"`
	MaxSpeedMS      float64        `json:"max_speed_ms" gorm:"not null;default:0"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Trajectory) TableName() string { return "trajectories" }

// IsOpenAt reports whether a point observed at t extends this trajectory
// rather than starting a new one.
func (t *Trajectory) IsOpenAt(observedAt time.Time) bool {
	return observedAt.Sub(t.EndTime) <= TrajectoryGapThreshold
}

// Extend folds a new point's distance into the running aggregates.
// distanceM is the haversine distance from the previous point (0 for the
// trajectory's first point). suppliedSpeedMS is the client-reported speed,
// when known; max_speed_ms only ever advances from a supplied speed, never
// from the distance/time estimate. avg_speed_ms is always recomputed as the
// aggregate distance over the aggregate time span, guarding a zero span.
func (t *Trajectory) Extend(observedAt time.Time, distanceM float64, suppliedSpeedMS *float64) {
	t.TotalDistanceM += distanceM
	t.PointCount++
	if suppliedSpeedMS != nil && *suppliedSpeedMS > t.MaxSpeedMS {
		t.MaxSpeedMS = *suppliedSpeedMS
	}
	t.EndTime = observedAt
	if span := t.EndTime.Sub(t.StartTime).Seconds(); span > 0 {
		t.AvgSpeedMS = t.TotalDistanceM / span
	}
}

// TrajectoryPoint is one observed fix belonging to a Trajectory.
type TrajectoryPoint struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TrajectoryID uuid.UUID `json:"trajectory_id" gorm:"type:uuid;not null;index"`
	Lat          float64   `json:"lat" gorm:"not null"`
	Lon          float64   `json:"lon" gorm:"not null"`
	SpeedMS      float64   `json:"speed_ms"`
	Heading      float64   `json:"heading,omitempty"`
	AccuracyM    float64   `json:"accuracy_m,omitempty"`
	AltitudeM    float64   `json:"altitude_m,omitempty"`
	ObservedAt   time.Time `json:"observed_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at"`
}

func (TrajectoryPoint) TableName() string { return "trajectory_points" }

// TrajectoryStats summarizes a device's movement history over a lookback
// window, grounded on the original get_device_statistics call.
type TrajectoryStats struct {
	DeviceID          uuid.UUID `json:"device_id"`
	TotalDistanceM    float64   `json:"total_distance_m"`
	TotalTrajectories int       `json:"total_trajectories"`
	TotalPoints       int       `json:"total_points"`
	AvgSpeedMS        float64   `json:"avg_speed_ms"`
	MaxSpeedMS        float64   `json:"max_speed_ms"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	DaysAnalyzed      int       `json:"days_analyzed"`
}
