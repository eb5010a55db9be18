// Package devicestate tracks, per device, which geofences it is currently
// inside, so ingest can diff a new point's containment set against the old
// one and emit only the enter/exit transitions that actually changed. State
// is sharded by device id behind per-device mutexes (the same shape as a
// geofence checker diffing a single membership row per update) and
// mirrored to the cache so a process restart doesn't replay spurious
// enters for devices already inside a geofence.
package devicestate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"geosentry/api/internal/cache"
)

// MembershipTTL is how long a device's mirrored membership set survives in
// the cache with no new updates.
const MembershipTTL = 24 * time.Hour

// Transition is one geofence membership change produced by a single update.
type Transition struct {
	GeofenceID uuid.UUID
	EventType  string // enter, exit
}

// shard holds one device's membership set and its own lock, avoiding a
// single global mutex serializing unrelated devices.
type shard struct {
	mu      sync.Mutex
	members map[uuid.UUID]struct{}
}

// Tracker is the in-memory, cache-mirrored membership tracker.
type Tracker struct {
	cache *cache.Cache

	shardsMu sync.RWMutex
	shards   map[uuid.UUID]*shard
}

func New(c *cache.Cache) *Tracker {
	return &Tracker{cache: c, shards: make(map[uuid.UUID]*shard)}
}

func cacheKey(deviceID uuid.UUID) string {
	return fmt.Sprintf("device_state:%s", deviceID)
}

func (t *Tracker) shardFor(deviceID uuid.UUID) *shard {
	t.shardsMu.RLock()
	s, ok := t.shards[deviceID]
	t.shardsMu.RUnlock()
	if ok {
		return s
	}

	t.shardsMu.Lock()
	defer t.shardsMu.Unlock()
	if s, ok = t.shards[deviceID]; ok {
		return s
	}
	s = &shard{members: make(map[uuid.UUID]struct{})}
	t.shards[deviceID] = s
	return s
}

// Load populates the in-memory set for a device from the cache mirror, used
// on first touch after a process restart so old members aren't re-entered.
func (t *Tracker) Load(ctx context.Context, deviceID uuid.UUID) {
	var ids []uuid.UUID
	if err := t.cache.GetJSON(ctx, cacheKey(deviceID), &ids); err != nil {
		return
	}
	s := t.shardFor(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.members[id] = struct{}{}
	}
}

// Apply computes enter/exit transitions for deviceID given the set of
// geofences the latest point falls inside, updates the in-memory and
// mirrored state, and returns the transitions that occurred. Per-device
// critical section: callers must not call Apply concurrently for the same
// device (the ingest pipeline enforces this with its own per-device lock).
func (t *Tracker) Apply(ctx context.Context, deviceID uuid.UUID, currentlyInside []uuid.UUID) []Transition {
	s := t.shardFor(deviceID)
	s.mu.Lock()

	nowInside := make(map[uuid.UUID]struct{}, len(currentlyInside))
	for _, id := range currentlyInside {
		nowInside[id] = struct{}{}
	}

	var transitions []Transition
	for id := range nowInside {
		if _, was := s.members[id]; !was {
			transitions = append(transitions, Transition{GeofenceID: id, EventType: "enter"})
		}
	}
	for id := range s.members {
		if _, still := nowInside[id]; !still {
			transitions = append(transitions, Transition{GeofenceID: id, EventType: "exit"})
		}
	}
	s.members = nowInside

	ids := make([]uuid.UUID, 0, len(nowInside))
	for id := range nowInside {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	_ = t.cache.SetJSON(ctx, cacheKey(deviceID), ids, MembershipTTL)
	return transitions
}

// Snapshot returns the geofences a device currently occupies.
func (t *Tracker) Snapshot(deviceID uuid.UUID) []uuid.UUID {
	s := t.shardFor(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	return out
}
