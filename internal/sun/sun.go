// Package sun computes today's sunrise/sunset for the configured
// coordinates, refreshed once a day, so the automation engine's
// Sunrise/Sunset triggers and SunPosition conditions never recompute
// astronomy per-tick (Design Notes §9: "sun-position triggers need an
// astronomy helper with latitude/longitude").
package sun

import (
	"sync"
	"time"

	"github.com/kelvins/sunrisesunset"
	"go.uber.org/zap"
)

// Times holds one day's computed sunrise/sunset, in local wall-clock time.
type Times struct {
	Sunrise time.Time
	Sunset  time.Time
	Date    time.Time
}

// Tracker caches the current day's Times and recomputes on demand.
type Tracker struct {
	mu        sync.RWMutex
	latitude  float64
	longitude float64
	logger    *zap.Logger
	current   Times
}

// NewTracker builds a Tracker for the given coordinates and computes
// today's times immediately.
func NewTracker(latitude, longitude float64, logger *zap.Logger) *Tracker {
	t := &Tracker{latitude: latitude, longitude: longitude, logger: logger}
	t.Refresh(time.Now())
	return t
}

// Refresh recomputes sunrise/sunset for the local calendar day containing now.
func (t *Tracker) Refresh(now time.Time) {
	_, offset := now.Zone()
	utcOffset := float64(offset) / 3600.0

	sunrise, sunset, err := sunrisesunset.GetSunriseSunset(t.latitude, t.longitude, utcOffset, now)
	if err != nil {
		if t.logger != nil {
			t.logger.Error("sun: failed to compute sunrise/sunset", zap.Error(err))
		}
		return
	}

	loc := now.Location()
	sunrise = time.Date(now.Year(), now.Month(), now.Day(), sunrise.Hour(), sunrise.Minute(), sunrise.Second(), 0, loc)
	sunset = time.Date(now.Year(), now.Month(), now.Day(), sunset.Hour(), sunset.Minute(), sunset.Second(), 0, loc)

	t.mu.Lock()
	t.current = Times{Sunrise: sunrise, Sunset: sunset, Date: now}
	t.mu.Unlock()
}

// Current returns the last computed Times.
func (t *Tracker) Current() Times {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}
