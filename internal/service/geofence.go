package service

import (
	"context"

	"github.com/google/uuid"

	"geosentry/api/internal/apperr"
	"geosentry/api/internal/geofenceindex"
	"geosentry/api/internal/model"
	"geosentry/api/internal/store"
)

// GeofenceService handles geofence CRUD, the per-tier geofence quota, and
// keeping the in-memory containment index (internal/geofenceindex) current
// on every write, grounded on the original Create/Update/Delete plus
// cacheGeofence/removeGeofenceFromCache pattern — the Redis mirror is
// replaced by the real in-process index the ingest pipeline reads.
type GeofenceService struct {
	store *store.Store
	index *geofenceindex.Index
}

func NewGeofenceService(s *store.Store, idx *geofenceindex.Index) *GeofenceService {
	return &GeofenceService{store: s, index: idx}
}

func (s *GeofenceService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.Geofence, int64, error) {
	return s.store.ListGeofences(ctx, userID, page, pageSize)
}

func (s *GeofenceService) Get(ctx context.Context, userID, id uuid.UUID) (*model.Geofence, error) {
	return s.store.GetGeofence(ctx, userID, id)
}

// Create validates geometry, enforces the tier quota, persists, and
// installs the geofence into the index so it's immediately enforceable.
func (s *GeofenceService) Create(ctx context.Context, user *model.User, g *model.Geofence, overrides map[model.Tier]model.TierLimits) error {
	count, err := s.store.CountGeofences(ctx, user.ID)
	if err != nil {
		return err
	}
	limits := user.Limits(overrides)
	if limits.MaxGeofences > 0 && int(count) >= limits.MaxGeofences {
		return apperr.Newf(apperr.QuotaExceeded, "geofence quota of %d reached for tier %s", limits.MaxGeofences, user.Tier)
	}
	if err := validateGeometry(g); err != nil {
		return err
	}
	g.ID = uuid.New()
	g.UserID = user.ID
	if len(g.EventMask) == 0 {
		g.EventMask = []string{"enter", "exit"}
	}
	if err := s.store.CreateGeofence(ctx, g); err != nil {
		return err
	}
	s.index.Upsert(*g)
	return nil
}

func (s *GeofenceService) Update(ctx context.Context, g *model.Geofence) error {
	if err := validateGeometry(g); err != nil {
		return err
	}
	if err := s.store.UpdateGeofence(ctx, g); err != nil {
		return err
	}
	if g.Active {
		s.index.Upsert(*g)
	} else {
		s.index.Remove(g.UserID, g.ID)
	}
	return nil
}

func (s *GeofenceService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteGeofence(ctx, userID, id); err != nil {
		return err
	}
	s.index.Remove(userID, id)
	return nil
}

func (s *GeofenceService) Events(ctx context.Context, geofenceID uuid.UUID, page, pageSize int) ([]model.GeofenceEvent, int64, error) {
	return s.store.ListGeofenceEvents(ctx, geofenceID, page, pageSize)
}

// validateGeometry generalizes the original validateCoordinates to the new
// coordinate schema.
func validateGeometry(g *model.Geofence) error {
	switch g.Type {
	case model.ShapeCircle:
		center, ok := g.Coordinates["center"].(map[string]interface{})
		if !ok {
			return apperr.New(apperr.InvalidInput, "circle geofence requires a center")
		}
		lat, latOK := asFloat(center["lat"])
		lon, lonOK := asFloat(center["lon"])
		if !latOK || !lonOK || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return apperr.New(apperr.InvalidInput, "circle center must be a valid lat/lon")
		}
		radius, ok := asFloat(g.Coordinates["radius_m"])
		if !ok || radius <= 0 {
			return apperr.New(apperr.InvalidInput, "circle geofence requires a positive radius_m")
		}
		return nil
	case model.ShapePolygon:
		points, ok := g.Coordinates["points"].([]interface{})
		if !ok || len(points) < 3 {
			return apperr.New(apperr.InvalidInput, "polygon geofence requires at least 3 points")
		}
		for _, p := range points {
			m, ok := p.(map[string]interface{})
			if !ok {
				return apperr.New(apperr.InvalidInput, "polygon point must be an object with lat/lon")
			}
			lat, latOK := asFloat(m["lat"])
			lon, lonOK := asFloat(m["lon"])
			if !latOK || !lonOK || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
				return apperr.New(apperr.InvalidInput, "polygon point out of WGS84 bounds")
			}
		}
		return nil
	default:
		return apperr.New(apperr.InvalidInput, "geofence type must be circle or polygon")
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
