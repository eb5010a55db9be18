package geofenceindex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"geosentry/api/internal/model"
	"geosentry/api/internal/spatial"
)

func circleGeofence(userID uuid.UUID, lat, lon, radius float64) model.Geofence {
	return model.Geofence{
		ID:     uuid.New(),
		UserID: userID,
		Type:   model.ShapeCircle,
		Active: true,
		Coordinates: model.JSONMap{
			"center":   map[string]interface{}{"lat": lat, "lon": lon},
			"radius_m": radius,
		},
	}
}

func TestIndex_RebuildAndContaining(t *testing.T) {
	idx := New()
	user := uuid.New()
	g := circleGeofence(user, 10, 10, 500)
	idx.Rebuild(user, []model.Geofence{g})

	assert.True(t, idx.Loaded(user))
	found := idx.Containing(user, spatial.Point{Lat: 10, Lon: 10})
	assert.Len(t, found, 1)
	assert.Equal(t, g.ID, found[0].ID)
}

func TestIndex_ContainingExcludesFarPoints(t *testing.T) {
	idx := New()
	user := uuid.New()
	idx.Rebuild(user, []model.Geofence{circleGeofence(user, 10, 10, 100)})

	found := idx.Containing(user, spatial.Point{Lat: 50, Lon: 50})
	assert.Empty(t, found)
}

func TestIndex_UpsertAddsWithoutRebuild(t *testing.T) {
	idx := New()
	user := uuid.New()
	idx.Rebuild(user, nil)
	g := circleGeofence(user, 1, 1, 200)
	idx.Upsert(g)

	found := idx.Containing(user, spatial.Point{Lat: 1, Lon: 1})
	assert.Len(t, found, 1)
}

func TestIndex_RemoveEvicts(t *testing.T) {
	idx := New()
	user := uuid.New()
	g := circleGeofence(user, 1, 1, 200)
	idx.Rebuild(user, []model.Geofence{g})
	idx.Remove(user, g.ID)

	found := idx.Containing(user, spatial.Point{Lat: 1, Lon: 1})
	assert.Empty(t, found)
}

func TestIndex_UnknownUserLoadedFalse(t *testing.T) {
	idx := New()
	assert.False(t, idx.Loaded(uuid.New()))
}
