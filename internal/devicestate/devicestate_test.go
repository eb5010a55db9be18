package devicestate

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geosentry/api/internal/cache"
)

func newTestTracker(t *testing.T) *Tracker {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(cache.New(rdb))
}

func TestTracker_FirstEntryProducesEnter(t *testing.T) {
	tr := newTestTracker(t)
	device := uuid.New()
	fence := uuid.New()

	transitions := tr.Apply(context.Background(), device, []uuid.UUID{fence})
	assert.Equal(t, []Transition{{GeofenceID: fence, EventType: "enter"}}, transitions)
}

func TestTracker_StayingInsideProducesNoTransition(t *testing.T) {
	tr := newTestTracker(t)
	device := uuid.New()
	fence := uuid.New()

	tr.Apply(context.Background(), device, []uuid.UUID{fence})
	transitions := tr.Apply(context.Background(), device, []uuid.UUID{fence})
	assert.Empty(t, transitions)
}

func TestTracker_LeavingProducesExit(t *testing.T) {
	tr := newTestTracker(t)
	device := uuid.New()
	fence := uuid.New()

	tr.Apply(context.Background(), device, []uuid.UUID{fence})
	transitions := tr.Apply(context.Background(), device, nil)
	assert.Equal(t, []Transition{{GeofenceID: fence, EventType: "exit"}}, transitions)
}

func TestTracker_SnapshotReflectsCurrentMembership(t *testing.T) {
	tr := newTestTracker(t)
	device := uuid.New()
	fence := uuid.New()

	tr.Apply(context.Background(), device, []uuid.UUID{fence})
	assert.Equal(t, []uuid.UUID{fence}, tr.Snapshot(device))
}

func TestTracker_LoadRestoresMirroredMembership(t *testing.T) {
	tr := newTestTracker(t)
	device := uuid.New()
	fence := uuid.New()

	tr.Apply(context.Background(), device, []uuid.UUID{fence})

	tr2 := New(tr.cache)
	tr2.Load(context.Background(), device)
	transitions := tr2.Apply(context.Background(), device, []uuid.UUID{fence})
	assert.Empty(t, transitions, "restored membership should suppress a spurious re-enter")
}
