package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_NowReturnsSystemTime(t *testing.T) {
	before := time.Now()
	got := Real{}.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestFixed_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFixed(start)
	assert.Equal(t, start, f.Now())

	f.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), f.Now())

	other := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	f.Set(other)
	assert.Equal(t, other, f.Now())
}
