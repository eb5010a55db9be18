package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"geosentry/api/internal/model"
	"geosentry/api/internal/store"
	"geosentry/api/internal/trajectory"
)

// TrajectoryService is the read-side query surface over a device's movement
// history. Where the original flat position table supported GetHistory/
// GetLatest directly against a single row-per-fix table, here a device's
// history is a sequence of Trajectory segments, each holding its own
// TrajectoryPoint rows; this service assembles both views on top of the
// store and the segmenter's aggregate stats.
type TrajectoryService struct {
	store     *store.Store
	segmenter *trajectory.Segmenter
}

func NewTrajectoryService(s *store.Store, seg *trajectory.Segmenter) *TrajectoryService {
	return &TrajectoryService{store: s, segmenter: seg}
}

// History returns a device's trajectories since the given time, newest first.
func (s *TrajectoryService) History(ctx context.Context, deviceID uuid.UUID, since time.Time, page, pageSize int) ([]model.Trajectory, int64, error) {
	return s.store.GetTrajectories(ctx, deviceID, since, page, pageSize)
}

// Points returns the individual fixes that make up one trajectory.
func (s *TrajectoryService) Points(ctx context.Context, trajectoryID uuid.UUID) ([]model.TrajectoryPoint, error) {
	return s.store.GetTrajectoryPoints(ctx, trajectoryID)
}

// Latest returns the device's most recent trajectory, if any has been
// recorded within the lookback window.
func (s *TrajectoryService) Latest(ctx context.Context, deviceID uuid.UUID, lookback time.Duration) (*model.Trajectory, error) {
	trajectories, _, err := s.store.GetTrajectories(ctx, deviceID, time.Now().Add(-lookback), 1, 1)
	if err != nil {
		return nil, err
	}
	if len(trajectories) == 0 {
		return nil, nil
	}
	return &trajectories[0], nil
}

// Stats summarizes a device's movement over the given lookback window.
func (s *TrajectoryService) Stats(ctx context.Context, deviceID uuid.UUID, lookback time.Duration) (model.TrajectoryStats, error) {
	return s.segmenter.Stats(ctx, deviceID, lookback)
}
