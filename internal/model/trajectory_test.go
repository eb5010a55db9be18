package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrajectory_IsOpenAt_WithinThreshold(t *testing.T) {
	traj := &Trajectory{EndTime: time.Now().Add(-30 * time.Minute)}
	assert.True(t, traj.IsOpenAt(time.Now()))
}

func TestTrajectory_IsOpenAt_ExceedsThreshold(t *testing.T) {
	traj := &Trajectory{EndTime: time.Now().Add(-2 * time.Hour)}
	assert.False(t, traj.IsOpenAt(time.Now()))
}

func TestTrajectory_Extend_UpdatesAggregates(t *testing.T) {
	start := time.Now()
	traj := &Trajectory{StartTime: start, EndTime: start}
	speed := func(v float64) *float64 { return &v }

	traj.Extend(start.Add(time.Minute), 100, speed(10))
	assert.Equal(t, 1, traj.PointCount)
	assert.Equal(t, 100.0, traj.TotalDistanceM)
	assert.Equal(t, 10.0, traj.MaxSpeedMS)
	assert.Equal(t, 100.0/60.0, traj.AvgSpeedMS)

	traj.Extend(start.Add(2*time.Minute), 50, speed(2))
	assert.Equal(t, 2, traj.PointCount)
	assert.Equal(t, 150.0, traj.TotalDistanceM)
	assert.Equal(t, 10.0, traj.MaxSpeedMS, "max speed should not regress")
	assert.InDelta(t, 150.0/120.0, traj.AvgSpeedMS, 1e-9)
}

func TestWebhookSubscription_Wants(t *testing.T) {
	w := &WebhookSubscription{Status: WebhookStatusActive, Events: []string{"enter"}}
	assert.True(t, w.Wants("enter"))
	assert.False(t, w.Wants("exit"))

	w.Status = WebhookStatusInactive
	assert.False(t, w.Wants("enter"))
}

func TestGeofence_WantsEvent(t *testing.T) {
	g := &Geofence{EventMask: []string{"enter", "exit"}}
	assert.True(t, g.WantsEvent("enter"))
	assert.True(t, g.WantsEvent("exit"))
	assert.False(t, g.WantsEvent("other"))
}

func TestUser_Limits_FallsBackToFreeForUnknownTier(t *testing.T) {
	u := &User{Tier: Tier("bogus")}
	limits := u.Limits(nil)
	assert.Equal(t, DefaultTierLimits[TierFree], limits)
}

func TestUser_Limits_OverrideWins(t *testing.T) {
	u := &User{Tier: TierBasic}
	overrides := map[Tier]TierLimits{TierBasic: {PerMinute: 999}}
	assert.Equal(t, 999, u.Limits(overrides).PerMinute)
}
