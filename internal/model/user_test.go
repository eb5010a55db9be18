package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierLimits_UsesDefaultTable(t *testing.T) {
	limits := TierBasic.Limits(nil)
	assert.Equal(t, DefaultTierLimits[TierBasic], limits)
}

func TestTierLimits_OverrideWins(t *testing.T) {
	overrides := map[Tier]TierLimits{TierFree: {PerMinute: 5}}
	limits := TierFree.Limits(overrides)
	assert.Equal(t, TierLimits{PerMinute: 5}, limits)
}

func TestTierLimits_UnknownTierFallsBackToFree(t *testing.T) {
	limits := Tier("nonexistent").Limits(nil)
	assert.Equal(t, DefaultTierLimits[TierFree], limits)
}

func TestUserLimits_DelegatesToTier(t *testing.T) {
	u := &User{Tier: TierEnterprise}
	assert.Equal(t, DefaultTierLimits[TierEnterprise], u.Limits(nil))
}
