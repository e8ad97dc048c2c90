// Package models holds the domain entities of the event pipeline and
// automation engine (§3 of the specification): signals derived from raw
// broker traffic, their projections, and the rule engine's own types.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SignalEvent is the immutable, causal anchor for everything derived
// from one accepted inbound broker message.
type SignalEvent struct {
	ID             uuid.UUID       `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Source         string          `json:"source"`
	DeviceID       string          `json:"deviceId"`
	Capability     string          `json:"capability"`
	EventType      string          `json:"eventType"`
	EventSubType   *string         `json:"eventSubType,omitempty"`
	Value          *float64        `json:"value,omitempty"`
	RawTopic       string          `json:"rawTopic"`
	RawPayload     json.RawMessage `json:"rawPayload"`
	DeviceKind     DeviceKind      `json:"deviceKind"`
	EventCategory  EventCategory   `json:"eventCategory"`
}

// SensorReading is one derived numeric measurement, always tied back to
// the SignalEvent it was projected from.
type SensorReading struct {
	ID            uuid.UUID `json:"id"`
	SignalEventID uuid.UUID `json:"signalEventId"`
	Timestamp     time.Time `json:"timestamp"`
	DeviceID      string    `json:"deviceId"`
	Metric        string    `json:"metric"`
	Value         float64   `json:"value"`
	Unit          *string   `json:"unit,omitempty"`
}

// TriggerEvent is the single derived "something happened" fact a
// SignalEvent may project to.
type TriggerEvent struct {
	ID            uuid.UUID   `json:"id"`
	SignalEventID uuid.UUID   `json:"signalEventId"`
	Timestamp     time.Time   `json:"timestamp"`
	DeviceID      string      `json:"deviceId"`
	Capability    string      `json:"capability"`
	TriggerType   TriggerType `json:"triggerType"`
	TriggerSubType *string    `json:"triggerSubType,omitempty"`
	Value         *bool       `json:"value,omitempty"`
}

// Device is the persistent record of a physical device, keyed by its
// user-visible friendly name.
type Device struct {
	DeviceID      string                 `json:"deviceId"`
	FriendlyName  string                 `json:"friendlyName"`
	DisplayName   *string                `json:"displayName,omitempty"`
	IEEEAddress   *string                `json:"ieeeAddress,omitempty"`
	ModelID       *string                `json:"modelId,omitempty"`
	Manufacturer  *string                `json:"manufacturer,omitempty"`
	Description   *string                `json:"description,omitempty"`
	PowerSource   bool                   `json:"powerSource"`
	DeviceType    *DeviceType            `json:"deviceType,omitempty"`
	ZoneID        *int                   `json:"zoneId,omitempty"`
	Capabilities  []string               `json:"capabilities"`
	Attributes    map[string]interface{} `json:"attributes"`
	LastSeen      *time.Time             `json:"lastSeen,omitempty"`
	IsAvailable   bool                   `json:"isAvailable"`
	LinkQuality   *int                   `json:"linkQuality,omitempty"`
}

// EffectiveDisplayName returns DisplayName, falling back to FriendlyName.
func (d *Device) EffectiveDisplayName() string {
	if d.DisplayName != nil && *d.DisplayName != "" {
		return *d.DisplayName
	}
	return d.FriendlyName
}

// Zone is a node in the operator-managed location tree.
type Zone struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	ParentZoneID *int    `json:"parentZoneId,omitempty"`
	Icon         *string `json:"icon,omitempty"`
	Color        *string `json:"color,omitempty"`
	SortOrder    int     `json:"sortOrder"`
}

// AutomationRule is the top-level unit of automation: an ordered set of
// triggers, conditions, and actions plus its own cooldown state.
type AutomationRule struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	IsEnabled       bool        `json:"isEnabled"`
	TriggerMode     TriggerMode `json:"triggerMode"`
	ConditionMode   ConditionMode `json:"conditionMode"`
	CooldownSeconds int         `json:"cooldownSeconds"`
	LastTriggeredAt *time.Time  `json:"lastTriggeredAt,omitempty"`
	ExecutionCount  int64       `json:"executionCount"`

	Triggers   []AutomationTrigger   `json:"triggers"`
	Conditions []AutomationCondition `json:"conditions"`
	Actions    []AutomationAction    `json:"actions"`
}

// AutomationTrigger is one thing that can start evaluation of its rule.
type AutomationTrigger struct {
	ID             uuid.UUID             `json:"id"`
	RuleID         uuid.UUID             `json:"ruleId"`
	TriggerType    AutomationTriggerType `json:"triggerType"`
	DeviceID       *string               `json:"deviceId,omitempty"`
	Property       *string               `json:"property,omitempty"`
	Operator       *Operator             `json:"operator,omitempty"`
	Value          json.RawMessage       `json:"value,omitempty"`
	TimeExpression *string               `json:"timeExpression,omitempty"`
	SunEvent       *string               `json:"sunEvent,omitempty"`
	OffsetMinutes  *int                  `json:"offsetMinutes,omitempty"`
	SortOrder      int                   `json:"sortOrder"`
}

// AutomationCondition gates rule execution against ambient state.
type AutomationCondition struct {
	ID          uuid.UUID               `json:"id"`
	RuleID      uuid.UUID               `json:"ruleId"`
	ConditionType AutomationConditionType `json:"conditionType"`
	DeviceID    *string                 `json:"deviceId,omitempty"`
	Property    *string                 `json:"property,omitempty"`
	Operator    *Operator               `json:"operator,omitempty"`
	Value       json.RawMessage         `json:"value,omitempty"`
	Value2      json.RawMessage         `json:"value2,omitempty"`
	TimeStart   *string                 `json:"timeStart,omitempty"`
	TimeEnd     *string                 `json:"timeEnd,omitempty"`
	DaysOfWeek  []time.Weekday          `json:"daysOfWeek,omitempty"`
	Children    []AutomationCondition   `json:"children,omitempty"`
	SortOrder   int                     `json:"sortOrder"`
}

// AutomationAction is one side effect a rule executes on a successful match.
type AutomationAction struct {
	ID                  uuid.UUID             `json:"id"`
	RuleID              uuid.UUID             `json:"ruleId"`
	ActionType          AutomationActionType  `json:"actionType"`
	DeviceID            *string               `json:"deviceId,omitempty"`
	Property            *string               `json:"property,omitempty"`
	Value               json.RawMessage       `json:"value,omitempty"`
	DelaySeconds        *int                  `json:"delaySeconds,omitempty"`
	WebhookURL          *string               `json:"webhookUrl,omitempty"`
	WebhookMethod       *string               `json:"webhookMethod,omitempty"`
	WebhookBody         json.RawMessage       `json:"webhookBody,omitempty"`
	NotificationTitle   *string               `json:"notificationTitle,omitempty"`
	NotificationMessage *string               `json:"notificationMessage,omitempty"`
	SceneID             *uuid.UUID            `json:"sceneId,omitempty"`
	SortOrder           int                   `json:"sortOrder"`
}

// ActionResult is the per-action outcome recorded in an execution log.
type ActionResult struct {
	ActionID   uuid.UUID `json:"actionId"`
	Success    bool      `json:"success"`
	Error      *string   `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
}

// AutomationExecutionLog is an append-only record of one evaluation attempt.
type AutomationExecutionLog struct {
	ID            uuid.UUID       `json:"id"`
	RuleID        uuid.UUID       `json:"ruleId"`
	ExecutedAt    time.Time       `json:"executedAt"`
	Status        ExecutionStatus `json:"status"`
	TriggerSource json.RawMessage `json:"triggerSource,omitempty"`
	ActionResults []ActionResult  `json:"actionResults"`
	DurationMs    int64           `json:"durationMs"`
	ErrorMessage  *string         `json:"errorMessage,omitempty"`
}

// Scene is a named snapshot of desired device states an action can apply.
type Scene struct {
	ID           uuid.UUID                         `json:"id"`
	Name         string                             `json:"name"`
	DeviceStates map[string]map[string]interface{} `json:"deviceStates"`
}
