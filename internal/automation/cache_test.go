package automation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdhome/internal/models"
	"sdhome/internal/store"
)

func TestCache_SetStateReturnsPreviousValue(t *testing.T) {
	c := newCache()

	old, hadOld := c.setState("light-1", "state", "ON")
	assert.False(t, hadOld)
	assert.Nil(t, old)

	old, hadOld = c.setState("light-1", "state", "OFF")
	assert.True(t, hadOld)
	assert.Equal(t, "ON", old)

	v, ok := c.getState("light-1", "state")
	assert.True(t, ok)
	assert.Equal(t, "OFF", v)

	_, ok = c.getState("light-1", "missing")
	assert.False(t, ok)
}

func TestCache_SetSensorReturnsPreviousValue(t *testing.T) {
	c := newCache()

	_, hadOld := c.setSensor("sensor-1", "temperature", 21.5)
	assert.False(t, hadOld)

	old, hadOld := c.setSensor("sensor-1", "temperature", 22.0)
	assert.True(t, hadOld)
	assert.Equal(t, 21.5, old)

	v, ok := c.getSensor("sensor-1", "temperature")
	assert.True(t, ok)
	assert.Equal(t, 22.0, v)
}

// warmSignalStore implements store.SignalStore with a fixed lookback result.
type warmSignalStore struct {
	payloads map[string][]store.RawSignal
}

func (w *warmSignalStore) InsertSignalEvent(ctx context.Context, event models.SignalEvent) error {
	return nil
}
func (w *warmSignalStore) InsertSensorReadings(ctx context.Context, readings []models.SensorReading) error {
	return nil
}
func (w *warmSignalStore) InsertTriggerEvent(ctx context.Context, event models.TriggerEvent) error {
	return nil
}
func (w *warmSignalStore) RecentPayloadsByDevice(ctx context.Context, since time.Time) (map[string][]store.RawSignal, error) {
	return w.payloads, nil
}

func TestCache_Warm_PopulatesStateAndSensorCaches(t *testing.T) {
	c := newCache()
	payload, err := json.Marshal(map[string]interface{}{
		"state":       "ON",
		"temperature": 21.5,
		"battery":     88.0,
	})
	require.NoError(t, err)

	s := &warmSignalStore{payloads: map[string][]store.RawSignal{
		"sensor-1": {{RawPayload: payload}},
	}}

	err = c.warm(context.Background(), s, 24*time.Hour, time.Now())
	require.NoError(t, err)

	v, ok := c.getState("sensor-1", "state")
	assert.True(t, ok)
	assert.Equal(t, "ON", v)

	temp, ok := c.getSensor("sensor-1", "temperature")
	assert.True(t, ok)
	assert.Equal(t, 21.5, temp)

	battery, ok := c.getSensor("sensor-1", "battery")
	assert.True(t, ok)
	assert.Equal(t, 88.0, battery)
}
