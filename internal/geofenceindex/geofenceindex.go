// Package geofenceindex holds a per-user in-memory index of active
// geofences so ingest doesn't hit the database on every point.
// Each geofence is pre-normalized to a polygon with a cached bounding box,
// so the containment check cheaply rejects most candidates before running
// spatial.InPolygon. Grounded on the geofence service's in-process Redis
// cache (cacheGeofence/removeGeofenceFromCache), reworked as a real
// in-memory structure guarded by a reader-preferred sync.RWMutex rather
// than round-tripping to Redis per lookup.
package geofenceindex

import (
	"sync"

	"github.com/google/uuid"

	"geosentry/api/internal/model"
	"geosentry/api/internal/spatial"
)

// Entry is one geofence's index-ready representation.
type Entry struct {
	Geofence model.Geofence
	Polygon  []spatial.Point
	Box      spatial.BoundingBox
}

// Contains reports whether p falls inside this geofence.
func (e Entry) Contains(p spatial.Point) bool {
	if !e.Box.Contains(p) {
		return false
	}
	return spatial.InPolygon(p, e.Polygon)
}

// Index is a per-user map of geofence id -> Entry, safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[uuid.UUID]Entry
}

func New() *Index {
	return &Index{users: make(map[uuid.UUID]map[uuid.UUID]Entry)}
}

// toEntry normalizes a geofence's stored coordinates into a polygon + bbox.
func toEntry(g model.Geofence) (Entry, bool) {
	switch g.Type {
	case model.ShapeCircle:
		center, ok := pointFrom(g.Coordinates["center"])
		if !ok {
			return Entry{}, false
		}
		radius, ok := floatFrom(g.Coordinates["radius_m"])
		if !ok {
			return Entry{}, false
		}
		poly := spatial.CircleToPolygon(center, radius)
		return Entry{Geofence: g, Polygon: poly, Box: spatial.BoundsOf(poly)}, true
	case model.ShapePolygon:
		raw, ok := g.Coordinates["points"].([]interface{})
		if !ok {
			return Entry{}, false
		}
		poly := make([]spatial.Point, 0, len(raw))
		for _, r := range raw {
			p, ok := pointFrom(r)
			if !ok {
				return Entry{}, false
			}
			poly = append(poly, p)
		}
		if len(poly) < 3 {
			return Entry{}, false
		}
		return Entry{Geofence: g, Polygon: poly, Box: spatial.BoundsOf(poly)}, true
	default:
		return Entry{}, false
	}
}

func pointFrom(v interface{}) (spatial.Point, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return spatial.Point{}, false
	}
	lat, ok1 := floatFrom(m["lat"])
	lon, ok2 := floatFrom(m["lon"])
	return spatial.Point{Lat: lat, Lon: lon}, ok1 && ok2
}

func floatFrom(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Upsert (re)builds and installs the entry for a single geofence, used on
// create/update so the index never lags a write by more than one call. A
// user whose index has not been built yet is left untouched, so the lazy
// Rebuild still loads all of that user's geofences.
func (idx *Index) Upsert(g model.Geofence) {
	entry, ok := toEntry(g)
	if !ok {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.users[g.UserID] == nil {
		return
	}
	idx.users[g.UserID][g.ID] = entry
}

// Remove evicts a geofence from the index (delete or deactivate).
func (idx *Index) Remove(userID, geofenceID uuid.UUID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if m, ok := idx.users[userID]; ok {
		delete(m, geofenceID)
	}
}

// Rebuild replaces a user's entire index with the given active geofences,
// used at startup and on cache-miss recovery.
func (idx *Index) Rebuild(userID uuid.UUID, geofences []model.Geofence) {
	m := make(map[uuid.UUID]Entry, len(geofences))
	for _, g := range geofences {
		if !g.Active {
			continue
		}
		if entry, ok := toEntry(g); ok {
			m[g.ID] = entry
		}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.users[userID] = m
}

// Containing returns every geofence of userID that contains p.
func (idx *Index) Containing(userID uuid.UUID, p spatial.Point) []model.Geofence {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m, ok := idx.users[userID]
	if !ok {
		return nil
	}
	var out []model.Geofence
	for _, entry := range m {
		if entry.Contains(p) {
			out = append(out, entry.Geofence)
		}
	}
	return out
}

// Loaded reports whether a user's index has ever been built, distinguishing
// "no geofences" from "never rebuilt" so callers know to fall back to the store.
func (idx *Index) Loaded(userID uuid.UUID) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.users[userID]
	return ok
}
