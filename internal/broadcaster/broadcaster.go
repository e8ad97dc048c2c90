// Package broadcaster defines the one-way push port the core calls
// into for UI-facing updates (§6). The HTTP/WebSocket surface that
// actually fans these out to browser clients is explicitly out of
// scope (§1); this package only carries the interface plus a logging
// no-op implementation so the core can run standalone.
package broadcaster

import (
	"context"

	"go.uber.org/zap"

	"sdhome/internal/models"
)

// Broadcaster is the port every fire-and-forget UI push goes through.
// Failures are logged by implementations and never propagate back into
// the event path (§6, §9 "Broadcaster cycle hazard").
type Broadcaster interface {
	BroadcastSignalEvent(ctx context.Context, event models.SignalEvent)
	BroadcastSensorReading(ctx context.Context, reading models.SensorReading)
	BroadcastTriggerEvent(ctx context.Context, event models.TriggerEvent)
	BroadcastDeviceStateUpdate(ctx context.Context, device models.Device)
	BroadcastAutomationLog(ctx context.Context, entry models.LiveLogEntry)
	BroadcastPipelineTimeline(ctx context.Context, timeline models.PipelineTimeline)
	BroadcastDeviceSyncProgress(ctx context.Context, deviceID string, changed []string)
	BroadcastDevicePairingProgress(ctx context.Context, progress models.DevicePairingProgress)
}

// Logging is a Broadcaster that only logs; it stands in for the real
// hub-backed implementation the HTTP/WebSocket layer provides.
type Logging struct {
	logger *zap.Logger
}

// NewLogging builds a logging-only Broadcaster.
func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{logger: logger.Named("broadcaster")}
}

func (l *Logging) BroadcastSignalEvent(_ context.Context, event models.SignalEvent) {
	l.logger.Debug("signal_event", zap.String("deviceId", event.DeviceID), zap.String("capability", event.Capability))
}

func (l *Logging) BroadcastSensorReading(_ context.Context, reading models.SensorReading) {
	l.logger.Debug("sensor_reading", zap.String("deviceId", reading.DeviceID), zap.String("metric", reading.Metric), zap.Float64("value", reading.Value))
}

func (l *Logging) BroadcastTriggerEvent(_ context.Context, event models.TriggerEvent) {
	l.logger.Debug("trigger_event", zap.String("deviceId", event.DeviceID), zap.String("triggerType", string(event.TriggerType)))
}

func (l *Logging) BroadcastDeviceStateUpdate(_ context.Context, device models.Device) {
	l.logger.Debug("device_state_update", zap.String("deviceId", device.DeviceID))
}

func (l *Logging) BroadcastAutomationLog(_ context.Context, entry models.LiveLogEntry) {
	l.logger.Debug("automation_log", zap.String("phase", string(entry.Phase)), zap.String("message", entry.Message))
}

func (l *Logging) BroadcastPipelineTimeline(_ context.Context, timeline models.PipelineTimeline) {
	l.logger.Debug("pipeline_timeline", zap.String("trackingId", timeline.TrackingID), zap.Int64("totalMs", timeline.TotalDurationMs))
}

func (l *Logging) BroadcastDeviceSyncProgress(_ context.Context, deviceID string, changed []string) {
	l.logger.Debug("device_sync_progress", zap.String("deviceId", deviceID), zap.Strings("changed", changed))
}

func (l *Logging) BroadcastDevicePairingProgress(_ context.Context, progress models.DevicePairingProgress) {
	l.logger.Debug("device_pairing_progress", zap.String("id", progress.ID), zap.String("status", string(progress.Status)))
}
