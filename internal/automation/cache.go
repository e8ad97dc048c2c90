package automation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sdhome/internal/store"
)

// cache holds the engine's in-process device-state and sensor-reading
// state (§4.5 "State it owns"). All access is guarded by one mutex;
// critical sections never perform I/O (§5, §9).
type cache struct {
	mu       sync.Mutex
	devState map[string]map[string]interface{} // deviceId -> property -> value
	sensors  map[string]map[string]float64     // deviceId -> metric -> last value
}

func newCache() *cache {
	return &cache{
		devState: make(map[string]map[string]interface{}),
		sensors:  make(map[string]map[string]float64),
	}
}

// getState returns the cached value for (deviceId, property) and
// whether it was present.
func (c *cache) getState(deviceID, property string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	props, ok := c.devState[deviceID]
	if !ok {
		return nil, false
	}
	v, ok := props[property]
	return v, ok
}

// setState updates the cache and returns the previous value (nil, false
// if none) so callers can detect the delta before deciding whether to
// evaluate DeviceState triggers.
func (c *cache) setState(deviceID, property string, newValue interface{}) (old interface{}, hadOld bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	props, ok := c.devState[deviceID]
	if !ok {
		props = make(map[string]interface{})
		c.devState[deviceID] = props
	}
	old, hadOld = props[property]
	props[property] = newValue
	return old, hadOld
}

// getSensor returns the last cached value for (deviceId, metric).
func (c *cache) getSensor(deviceID, metric string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics, ok := c.sensors[deviceID]
	if !ok {
		return 0, false
	}
	v, ok := metrics[metric]
	return v, ok
}

func (c *cache) setSensor(deviceID, metric string, value float64) (old float64, hadOld bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics, ok := c.sensors[deviceID]
	if !ok {
		metrics = make(map[string]float64)
		c.sensors[deviceID] = metrics
	}
	old, hadOld = metrics[metric]
	metrics[metric] = value
	return old, hadOld
}

// warm initializes both caches from recently persisted signal payloads
// (look-back window ≈ 24h), per §4.5 "State it owns".
func (c *cache) warm(ctx context.Context, signals store.SignalStore, lookback time.Duration, now time.Time) error {
	byDevice, err := signals.RecentPayloadsByDevice(ctx, now.Add(-lookback))
	if err != nil {
		return err
	}
	for deviceID, raws := range byDevice {
		for _, rs := range raws {
			var fields map[string]interface{}
			if err := json.Unmarshal(rs.RawPayload, &fields); err != nil {
				continue
			}
			for k, v := range fields {
				c.setState(deviceID, k, v)
			}
			if f, ok := fields["temperature"].(float64); ok {
				c.setSensor(deviceID, "temperature", f)
			}
			if f, ok := fields["humidity"].(float64); ok {
				c.setSensor(deviceID, "humidity", f)
			}
			if f, ok := fields["battery"].(float64); ok {
				c.setSensor(deviceID, "battery", f)
			}
		}
	}
	return nil
}
