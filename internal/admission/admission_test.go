package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"geosentry/api/internal/model"
)

func TestInMemoryLimiter_AllowsUnderLimit(t *testing.T) {
	f := newInMemoryLimiter()
	w := Windows[0]
	now := time.Now()
	for i := 0; i < 5; i++ {
		allowed, _ := f.check("user:1", w, now, 10)
		assert.True(t, allowed)
	}
}

func TestInMemoryLimiter_RejectsOverLimit(t *testing.T) {
	f := newInMemoryLimiter()
	w := Windows[0]
	now := time.Now()
	for i := 0; i < 3; i++ {
		f.check("user:1", w, now, 3)
	}
	allowed, count := f.check("user:1", w, now, 3)
	assert.False(t, allowed)
	assert.Equal(t, 3, count)
}

func TestInMemoryLimiter_ExpiresOldEntries(t *testing.T) {
	f := newInMemoryLimiter()
	w := Window{Name: "minute", Period: time.Minute, Limit: func(l model.TierLimits) int { return l.PerMinute }}
	past := time.Now().Add(-2 * time.Minute)
	f.check("user:1", w, past, 1)

	allowed, count := f.check("user:1", w, time.Now(), 1)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestInMemoryLimiter_IsolatesIdentifiers(t *testing.T) {
	f := newInMemoryLimiter()
	w := Windows[0]
	now := time.Now()
	f.check("user:1", w, now, 1)
	allowed, _ := f.check("user:2", w, now, 1)
	assert.True(t, allowed)
}
