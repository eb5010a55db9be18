package service

import (
	"context"

	"github.com/google/uuid"

	"geosentry/api/internal/apperr"
	"geosentry/api/internal/model"
	"geosentry/api/internal/store"
)

// DeviceService handles device CRUD and the per-tier device quota.
type DeviceService struct {
	store *store.Store
}

func NewDeviceService(s *store.Store) *DeviceService {
	return &DeviceService{store: s}
}

func (s *DeviceService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.Device, int64, error) {
	return s.store.ListDevices(ctx, userID, page, pageSize)
}

func (s *DeviceService) Get(ctx context.Context, userID, id uuid.UUID) (*model.Device, error) {
	return s.store.GetDevice(ctx, userID, id)
}

// Create enforces the user's tier device quota before persisting.
func (s *DeviceService) Create(ctx context.Context, user *model.User, d *model.Device, overrides map[model.Tier]model.TierLimits) error {
	count, err := s.store.CountDevices(ctx, user.ID)
	if err != nil {
		return err
	}
	limits := user.Limits(overrides)
	if limits.MaxDevices > 0 && int(count) >= limits.MaxDevices {
		return apperr.Newf(apperr.QuotaExceeded, "device quota of %d reached for tier %s", limits.MaxDevices, user.Tier)
	}
	d.ID = uuid.New()
	d.UserID = user.ID
	return s.store.CreateDevice(ctx, d)
}

func (s *DeviceService) Update(ctx context.Context, d *model.Device) error {
	return s.store.UpdateDevice(ctx, d)
}

func (s *DeviceService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.DeleteDevice(ctx, userID, id)
}
