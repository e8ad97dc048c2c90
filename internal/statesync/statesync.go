// Package statesync implements the §4.4 worker: a per-device attribute
// cache maintained from broker traffic, plus a periodic poll that asks
// every known device to report its state.
package statesync

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"sdhome/internal/broadcaster"
	"sdhome/internal/clock"
	"sdhome/internal/publisher"
	"sdhome/internal/store"
)

// trackedAttributes is the fixed set of attributes captured into
// DeviceStateQueueItem regardless of what else the payload carries.
var trackedAttributes = []string{
	"linkquality", "state", "brightness", "color_temp",
	"temperature", "humidity", "battery", "contact", "occupancy",
}

// item is one pending device-state update, capturing the fixed
// attribute subset plus the full raw payload (§4.4).
type item struct {
	deviceOrFriendlyName string
	tracked               map[string]interface{}
	raw                   map[string]interface{}
	receivedAt            time.Time
}

// Worker maintains the device-state cache from broker traffic and
// drives the periodic poll (§4.4).
type Worker struct {
	client    mqtt.Client
	devices   store.DeviceStore
	publisher *publisher.Publisher
	broadcast broadcaster.Broadcaster
	clock     clock.Clock
	logger    *zap.Logger

	baseTopic         string
	pollIntervalSecs  int

	queueMu sync.Mutex
	queue   []item
	notify  chan struct{}

	drainSem chan struct{} // binary semaphore: only one drainer at a time
}

// New builds a Worker.
func New(
	client mqtt.Client,
	devices store.DeviceStore,
	pub *publisher.Publisher,
	bc broadcaster.Broadcaster,
	clk clock.Clock,
	baseTopic string,
	pollIntervalSeconds int,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		client:           client,
		devices:          devices,
		publisher:        pub,
		broadcast:        bc,
		clock:            clk,
		baseTopic:        baseTopic,
		pollIntervalSecs: pollIntervalSeconds,
		notify:           make(chan struct{}, 1),
		drainSem:         make(chan struct{}, 1),
		logger:           logger.Named("statesync"),
	}
}

// Run subscribes to <base>/+, starts the single drain consumer, and
// (if enabled) the periodic poll loop. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	filter := w.baseTopic + "/+"
	token := w.client.Subscribe(filter, 1, w.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		w.logger.Error("state-sync subscribe failed", zap.Error(err))
	}

	go w.drainLoop(ctx)
	if w.pollIntervalSecs > 0 {
		go w.pollLoop(ctx)
	}

	<-ctx.Done()
	w.client.Unsubscribe(filter)
}

func (w *Worker) onMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	suffix := strings.TrimPrefix(topic, w.baseTopic+"/")
	if suffix == topic {
		return
	}
	if strings.HasSuffix(suffix, "/availability") || strings.HasSuffix(suffix, "/get") ||
		strings.HasSuffix(suffix, "/set") || strings.Contains(suffix, "/bridge/") {
		return
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		return
	}

	tracked := make(map[string]interface{}, len(trackedAttributes))
	for _, attr := range trackedAttributes {
		if v, ok := raw[attr]; ok {
			tracked[attr] = v
		}
	}

	w.enqueue(item{deviceOrFriendlyName: suffix, tracked: tracked, raw: raw, receivedAt: w.clock.Now()})
}

func (w *Worker) enqueue(it item) {
	w.queueMu.Lock()
	w.queue = append(w.queue, it)
	w.queueMu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// drainLoop is the single consumer that serializes DB access via the
// binary semaphore (§5 "concurrent FIFO queue and a binary semaphore").
func (w *Worker) drainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.notify:
			w.drainOnce(ctx)
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) {
	select {
	case w.drainSem <- struct{}{}:
	default:
		return // another drain is already in flight
	}
	defer func() { <-w.drainSem }()

	for {
		w.queueMu.Lock()
		if len(w.queue) == 0 {
			w.queueMu.Unlock()
			return
		}
		it := w.queue[0]
		w.queue = w.queue[1:]
		w.queueMu.Unlock()

		w.applyItem(ctx, it)
	}
}

func (w *Worker) applyItem(ctx context.Context, it item) {
	device, err := w.devices.GetDevice(ctx, it.deviceOrFriendlyName)
	if err != nil {
		w.logger.Error("loading device for state-sync", zap.String("device", it.deviceOrFriendlyName), zap.Error(err))
		return
	}
	if device == nil {
		device, err = w.devices.GetDeviceByFriendlyName(ctx, it.deviceOrFriendlyName)
		if err != nil {
			w.logger.Error("loading device by friendly name", zap.String("device", it.deviceOrFriendlyName), zap.Error(err))
			return
		}
	}
	if device == nil {
		w.logger.Debug("dropping state-sync item for unknown device", zap.String("device", it.deviceOrFriendlyName))
		return
	}

	if device.Attributes == nil {
		device.Attributes = make(map[string]interface{})
	}
	var changed []string
	for k, v := range it.raw {
		if existing, ok := device.Attributes[k]; !ok || !reflect.DeepEqual(existing, v) {
			changed = append(changed, k)
			device.Attributes[k] = v
		}
	}
	if len(changed) == 0 {
		return
	}

	if lq, ok := it.tracked["linkquality"].(float64); ok {
		i := int(lq)
		device.LinkQuality = &i
	}
	now := it.receivedAt
	device.LastSeen = &now
	device.IsAvailable = true

	if err := w.devices.UpsertDevice(ctx, *device); err != nil {
		w.logger.Error("persisting device state-sync", zap.String("deviceId", device.DeviceID), zap.Error(err))
		return
	}

	if w.broadcast != nil {
		w.broadcast.BroadcastDeviceStateUpdate(ctx, *device)
		w.broadcast.BroadcastDeviceSyncProgress(ctx, device.DeviceID, changed)
	}
}

// pollLoop publishes a state request to every known device every
// pollIntervalSeconds, spaced ~50ms apart to avoid radio congestion (§4.4).
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.pollIntervalSecs) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context) {
	devices, err := w.devices.ListDevices(ctx)
	if err != nil {
		w.logger.Error("listing devices for poll", zap.Error(err))
		return
	}
	for _, d := range devices {
		if err := w.publisher.PublishGet(d.DeviceID); err != nil {
			w.logger.Warn("poll publish failed", zap.String("deviceId", d.DeviceID), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}
