package models

import "time"

// PipelineSnapshot carries elapsed times for the parse, persist, and
// broadcast stages of one SignalEvent through to the automation engine
// and the E2E tracker, per the GLOSSARY's "pipeline snapshot" entry.
type PipelineSnapshot struct {
	ReceivedAt   time.Time     `json:"receivedAt"`
	ParseDur     time.Duration `json:"parseDur"`
	PersistDur   time.Duration `json:"persistDur"`
	BroadcastDur time.Duration `json:"broadcastDur"`
}

// LiveLogEntry is one structured entry the automation engine emits to
// the broadcaster during evaluation (§4.5.6).
type LiveLogEntry struct {
	RuleID     *string                `json:"ruleId,omitempty"`
	Phase      LivePhase              `json:"phase"`
	Level      LiveLogLevel           `json:"level"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	DurationMs *int64                 `json:"durationMs,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// DeviceStateChange is the stimulus emitted whenever a cached device
// attribute is updated with a value differing from what it held before.
type DeviceStateChange struct {
	DeviceID string      `json:"deviceId"`
	Property string      `json:"property"`
	OldValue interface{} `json:"oldValue"`
	NewValue interface{} `json:"newValue"`
}

// SensorReadingChange pairs a freshly-projected SensorReading with the
// previous cached value for the same (deviceId, metric), if any.
type SensorReadingChange struct {
	Reading  SensorReading
	OldValue *float64
}
