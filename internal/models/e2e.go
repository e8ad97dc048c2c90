package models

import "time"

// TimelineStageName is one causal step accounted for in a PipelineTimeline.
type TimelineStageName string

const (
	StageSignalReceived      TimelineStageName = "SignalReceived"
	StageParse               TimelineStageName = "Parse"
	StageDatabase            TimelineStageName = "Database"
	StageBroadcast           TimelineStageName = "Broadcast"
	StageAutomationLookup    TimelineStageName = "AutomationLookup"
	StageActionExecution     TimelineStageName = "ActionExecution"
	StageTargetDeviceResponse TimelineStageName = "TargetDeviceResponse"
)

// TimelineCategory buckets a stage for UI display (§4.8).
type TimelineCategory string

const (
	CategorySignal       TimelineCategory = "signal"
	CategoryDatabase     TimelineCategory = "db"
	CategoryBroadcast    TimelineCategory = "broadcast"
	CategoryAutomation   TimelineCategory = "automation"
	CategoryMQTT         TimelineCategory = "mqtt"
	CategoryZigbee       TimelineCategory = "zigbee"
)

// TimelineStage is one measured segment of a PipelineTimeline.
type TimelineStage struct {
	Name       TimelineStageName `json:"name"`
	Category   TimelineCategory  `json:"category"`
	DurationMs int64             `json:"durationMs"`
}

// PipelineTimeline is the completed, broadcastable summary of one
// tracked causal chain from inbound signal to target-device confirmation.
type PipelineTimeline struct {
	TrackingID              string          `json:"trackingId"`
	TriggerDeviceID         string          `json:"triggerDeviceId"`
	RuleName                string          `json:"ruleName,omitempty"`
	TargetDeviceID          string          `json:"targetDeviceId,omitempty"`
	Stages                  []TimelineStage `json:"stages"`
	TotalDurationMs         int64           `json:"totalDurationMs"`
	TargetDeviceResponseMs  *int64          `json:"targetDeviceResponseMs,omitempty"`
	TimedOut                bool            `json:"timedOut"`
	CompletedAt             time.Time       `json:"completedAt"`
}
