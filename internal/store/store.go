// Package store is the persistence adapter the rest of the core talks to.
// It wraps *gorm.DB the way each service used to hold its own db handle
// (service/geofence.go, service/device.go), but collects the operations
// behind one seam so ingest/admission/devicestate never import gorm
// directly, and maps database failures onto the apperr vocabulary.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"geosentry/api/internal/apperr"
	"geosentry/api/internal/model"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *gorm.DB { return s.db }

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.NotFound, "record not found")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.Timeout, "store operation timed out", err)
	}
	// gorm surfaces most connection/driver failures as opaque errors; treat
	// anything else as transient so callers retry rather than hard-fail.
	return apperr.Wrap(apperr.StoreTransient, "store operation failed", err)
}

// GetUserActiveGeofences returns every active geofence owned by userID,
// the candidate set for per-device containment checks.
func (s *Store) GetUserActiveGeofences(ctx context.Context, userID uuid.UUID) ([]model.Geofence, error) {
	var out []model.Geofence
	err := s.db.WithContext(ctx).Where("user_id = ? AND active = ?", userID, true).Find(&out).Error
	return out, classify(err)
}

// GetGeofence fetches one geofence owned by userID.
func (s *Store) GetGeofence(ctx context.Context, userID, id uuid.UUID) (*model.Geofence, error) {
	var g model.Geofence
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&g).Error
	if err != nil {
		return nil, classify(err)
	}
	return &g, nil
}

func (s *Store) CreateGeofence(ctx context.Context, g *model.Geofence) error {
	return classify(s.db.WithContext(ctx).Create(g).Error)
}

func (s *Store) UpdateGeofence(ctx context.Context, g *model.Geofence) error {
	return classify(s.db.WithContext(ctx).Save(g).Error)
}

func (s *Store) DeleteGeofence(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Geofence{})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "geofence not found")
	}
	return nil
}

func (s *Store) ListGeofences(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.Geofence, int64, error) {
	var out []model.Geofence
	var total int64
	q := s.db.WithContext(ctx).Model(&model.Geofence{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := q.Offset((page - 1) * pageSize).Limit(pageSize).Order("created_at desc").Find(&out).Error
	return out, total, classify(err)
}

// GetDevice fetches a device owned by userID.
func (s *Store) GetDevice(ctx context.Context, userID, id uuid.UUID) (*model.Device, error) {
	var d model.Device
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&d).Error
	if err != nil {
		return nil, classify(err)
	}
	return &d, nil
}

func (s *Store) CreateDevice(ctx context.Context, d *model.Device) error {
	return classify(s.db.WithContext(ctx).Create(d).Error)
}

func (s *Store) UpdateDevice(ctx context.Context, d *model.Device) error {
	return classify(s.db.WithContext(ctx).Save(d).Error)
}

func (s *Store) DeleteDevice(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Device{})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "device not found")
	}
	return classify(s.db.WithContext(ctx).Where("device_id = ?", id).Delete(&model.Trajectory{}).Error)
}

func (s *Store) ListDevices(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.Device, int64, error) {
	var out []model.Device
	var total int64
	q := s.db.WithContext(ctx).Model(&model.Device{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := q.Offset((page - 1) * pageSize).Limit(pageSize).Order("created_at desc").Find(&out).Error
	return out, total, classify(err)
}

func (s *Store) CountDevices(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&model.Device{}).Where("user_id = ?", userID).Count(&total).Error
	return total, classify(err)
}

func (s *Store) CountGeofences(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&model.Geofence{}).Where("user_id = ?", userID).Count(&total).Error
	return total, classify(err)
}

// UpsertDeviceLocation persists the device's latest known fix.
func (s *Store) UpsertDeviceLocation(ctx context.Context, deviceID uuid.UUID, lat, lon float64, seenAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ?", deviceID).
		Updates(map[string]interface{}{
			"last_lat":  lat,
			"last_lon":  lon,
			"last_seen": seenAt,
		}).Error
	return classify(err)
}

// OpenOrExtendTrajectory returns the device's still-open trajectory (gap
// at most model.TrajectoryGapThreshold), or nil if a new one must be started
// (grounded on the original's _add_trajectory_point lookup).
func (s *Store) OpenOrExtendTrajectory(ctx context.Context, deviceID uuid.UUID, at time.Time) (*model.Trajectory, error) {
	var t model.Trajectory
	cutoff := at.Add(-model.TrajectoryGapThreshold)
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND end_time >= ?", deviceID, cutoff).
		Order("end_time desc").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &t, nil
}

func (s *Store) CreateTrajectory(ctx context.Context, t *model.Trajectory) error {
	return classify(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Store) SaveTrajectory(ctx context.Context, t *model.Trajectory) error {
	return classify(s.db.WithContext(ctx).Save(t).Error)
}

func (s *Store) AppendTrajectoryPoint(ctx context.Context, p *model.TrajectoryPoint) error {
	return classify(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) GetTrajectories(ctx context.Context, deviceID uuid.UUID, since time.Time, page, pageSize int) ([]model.Trajectory, int64, error) {
	var out []model.Trajectory
	var total int64
	q := s.db.WithContext(ctx).Model(&model.Trajectory{}).Where("device_id = ? AND start_time >= ?", deviceID, since)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := q.Offset((page - 1) * pageSize).Limit(pageSize).Order("start_time desc").Find(&out).Error
	return out, total, classify(err)
}

func (s *Store) GetTrajectoryPoints(ctx context.Context, trajectoryID uuid.UUID) ([]model.TrajectoryPoint, error) {
	var out []model.TrajectoryPoint
	err := s.db.WithContext(ctx).Where("trajectory_id = ?", trajectoryID).Order("observed_at asc").Find(&out).Error
	return out, classify(err)
}

// TrajectoryStats aggregates a device's movement history since `since`
// (grounded on the original's get_device_statistics).
func (s *Store) TrajectoryStats(ctx context.Context, deviceID uuid.UUID, since time.Time) (model.TrajectoryStats, error) {
	var row struct {
		TotalDistance float64
		TotalCount    int64
		TotalPoints   int64
		AvgSpeed      float64
		MaxSpeed      float64
	}
	err := s.db.WithContext(ctx).Model(&model.Trajectory{}).
		Select("COALESCE(SUM(total_distance_m),0) as total_distance, COUNT(*) as total_count, COALESCE(SUM(point_count),0) as total_points, COALESCE(AVG(avg_speed_ms),0) as avg_speed, COALESCE(MAX(max_speed_ms),0) as max_speed").
		Where("device_id = ? AND start_time >= ?", deviceID, since).
		Scan(&row).Error
	if err != nil {
		return model.TrajectoryStats{}, classify(err)
	}

	var lastSeen *time.Time
	var device model.Device
	if err := s.db.WithContext(ctx).Select("last_seen").Where("id = ?", deviceID).First(&device).Error; err == nil {
		lastSeen = device.LastSeen
	}

	return model.TrajectoryStats{
		DeviceID:          deviceID,
		TotalDistanceM:    row.TotalDistance,
		TotalTrajectories: int(row.TotalCount),
		TotalPoints:       int(row.TotalPoints),
		AvgSpeedMS:        row.AvgSpeed,
		MaxSpeedMS:        row.MaxSpeed,
		LastSeen:          lastSeen,
	}, nil
}

// GeofenceEvent persistence.
func (s *Store) RecordGeofenceEvent(ctx context.Context, e *model.GeofenceEvent) error {
	return classify(s.db.WithContext(ctx).Create(e).Error)
}

func (s *Store) ListGeofenceEvents(ctx context.Context, geofenceID uuid.UUID, page, pageSize int) ([]model.GeofenceEvent, int64, error) {
	var out []model.GeofenceEvent
	var total int64
	q := s.db.WithContext(ctx).Model(&model.GeofenceEvent{}).Where("geofence_id = ?", geofenceID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := q.Offset((page - 1) * pageSize).Limit(pageSize).Order("triggered_at desc").Find(&out).Error
	return out, total, classify(err)
}

// Webhook subscription persistence.
func (s *Store) CreateWebhook(ctx context.Context, w *model.WebhookSubscription) error {
	return classify(s.db.WithContext(ctx).Create(w).Error)
}

func (s *Store) GetWebhook(ctx context.Context, userID, id uuid.UUID) (*model.WebhookSubscription, error) {
	var w model.WebhookSubscription
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&w).Error
	if err != nil {
		return nil, classify(err)
	}
	return &w, nil
}

func (s *Store) UpdateWebhook(ctx context.Context, w *model.WebhookSubscription) error {
	return classify(s.db.WithContext(ctx).Save(w).Error)
}

func (s *Store) DeleteWebhook(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.WebhookSubscription{})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "webhook not found")
	}
	return nil
}

func (s *Store) ListWebhooks(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.WebhookSubscription, int64, error) {
	var out []model.WebhookSubscription
	var total int64
	q := s.db.WithContext(ctx).Model(&model.WebhookSubscription{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := q.Offset((page - 1) * pageSize).Limit(pageSize).Order("created_at desc").Find(&out).Error
	return out, total, classify(err)
}

// WebhooksForGeofence returns every active subscription that should be
// considered for a transition on geofenceID: ones bound to it specifically,
// plus ones bound to all of the user's geofences (GeofenceID nil).
func (s *Store) WebhooksForGeofence(ctx context.Context, userID, geofenceID uuid.UUID) ([]model.WebhookSubscription, error) {
	var out []model.WebhookSubscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND (geofence_id = ? OR geofence_id IS NULL)", userID, model.WebhookStatusActive, geofenceID).
		Find(&out).Error
	return out, classify(err)
}

func (s *Store) RecordDeliveryAttempt(ctx context.Context, a *model.DeliveryAttempt) error {
	return classify(s.db.WithContext(ctx).Create(a).Error)
}

func (s *Store) ListDeliveryAttempts(ctx context.Context, subscriptionID uuid.UUID, page, pageSize int) ([]model.DeliveryAttempt, int64, error) {
	var out []model.DeliveryAttempt
	var total int64
	q := s.db.WithContext(ctx).Model(&model.DeliveryAttempt{}).Where("subscription_id = ?", subscriptionID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}
	err := q.Offset((page - 1) * pageSize).Limit(pageSize).Order("created_at desc").Find(&out).Error
	return out, total, classify(err)
}

func (s *Store) IncrementWebhookCounters(ctx context.Context, id uuid.UUID, success bool, triggeredAt time.Time, lastError string) error {
	updates := map[string]interface{}{"last_triggered_at": triggeredAt}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	} else {
		updates["fail_count"] = gorm.Expr("fail_count + 1")
		updates["last_error"] = lastError
	}
	return classify(s.db.WithContext(ctx).Model(&model.WebhookSubscription{}).Where("id = ?", id).Updates(updates).Error)
}

// User lookups by id and by username.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}
