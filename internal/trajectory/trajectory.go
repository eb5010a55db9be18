// Package trajectory turns a stream of per-device location updates into
// segmented trajectories: a contiguous run of points closed off and
// reopened whenever the gap since the last point exceeds
// model.TrajectoryGapThreshold. Grounded on the original
// device_service.py's _add_trajectory_point, re-expressed in this codebase's
// service-struct-over-gorm idiom.
package trajectory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"geosentry/api/internal/model"
	"geosentry/api/internal/spatial"
	"geosentry/api/internal/store"
)

// Segmenter appends an observed point to a device's trajectory history,
// opening a new trajectory when the device has been silent too long.
type Segmenter struct {
	store *store.Store
}

func New(s *store.Store) *Segmenter {
	return &Segmenter{store: s}
}

// Observation is one location fix to fold into the device's trajectory.
// Prev* carries the device's last known fix (from model.Device.LastLat/
// LastLon/LastSeen) so Append can compute point-to-point distance and speed
// without re-reading trajectory_points on every call.
type Observation struct {
	DeviceID     uuid.UUID
	UserID       uuid.UUID
	Lat          float64
	Lon          float64
	ObservedAt   time.Time
	Speed        *float64
	Heading      *float64
	Accuracy     *float64
	Altitude     *float64
	HasPrev      bool
	PrevLat      float64
	PrevLon      float64
	PrevObserved time.Time
}

// Append opens or extends the device's trajectory with obs, persisting both
// the new point and the updated aggregate stats. Returns the trajectory id
// the point was attached to.
func (s *Segmenter) Append(ctx context.Context, obs Observation) (uuid.UUID, error) {
	traj, err := s.store.OpenOrExtendTrajectory(ctx, obs.DeviceID, obs.ObservedAt)
	if err != nil {
		return uuid.Nil, err
	}

	if traj == nil || !traj.IsOpenAt(obs.ObservedAt) {
		traj = &model.Trajectory{
			ID:         uuid.New(),
			DeviceID:   obs.DeviceID,
			UserID:     obs.UserID,
			StartTime:  obs.ObservedAt,
			EndTime:    obs.ObservedAt,
			PointCount: 0,
		}
		if err := s.store.CreateTrajectory(ctx, traj); err != nil {
			return uuid.Nil, err
		}
	}

	distanceM, computedSpeedMS := 0.0, 0.0
	if traj.PointCount > 0 && obs.HasPrev && obs.ObservedAt.After(obs.PrevObserved) {
		distanceM = spatial.HaversineDistanceM(
			spatial.Point{Lat: obs.PrevLat, Lon: obs.PrevLon},
			spatial.Point{Lat: obs.Lat, Lon: obs.Lon},
		)
		elapsed := obs.ObservedAt.Sub(obs.PrevObserved).Seconds()
		if elapsed > 0 {
			computedSpeedMS = distanceM / elapsed
		}
	}

	traj.Extend(obs.ObservedAt, distanceM, obs.Speed)
	if err := s.store.SaveTrajectory(ctx, traj); err != nil {
		return uuid.Nil, err
	}

	pointSpeed := computedSpeedMS
	if obs.Speed != nil {
		pointSpeed = *obs.Speed
	}
	point := &model.TrajectoryPoint{
		ID:           uuid.New(),
		TrajectoryID: traj.ID,
		Lat:          obs.Lat,
		Lon:          obs.Lon,
		SpeedMS:      pointSpeed,
		ObservedAt:   obs.ObservedAt,
	}
	if obs.Heading != nil {
		point.Heading = *obs.Heading
	}
	if obs.Accuracy != nil {
		point.AccuracyM = *obs.Accuracy
	}
	if obs.Altitude != nil {
		point.AltitudeM = *obs.Altitude
	}
	if err := s.store.AppendTrajectoryPoint(ctx, point); err != nil {
		return uuid.Nil, err
	}

	return traj.ID, nil
}

// Stats reports a device's movement summary over the given lookback window,
// grounded on the original's get_device_statistics.
func (s *Segmenter) Stats(ctx context.Context, deviceID uuid.UUID, lookback time.Duration) (model.TrajectoryStats, error) {
	since := time.Now().Add(-lookback)
	stats, err := s.store.TrajectoryStats(ctx, deviceID, since)
	if err != nil {
		return model.TrajectoryStats{}, err
	}
	stats.DaysAnalyzed = int(lookback.Hours() / 24)
	return stats, nil
}
