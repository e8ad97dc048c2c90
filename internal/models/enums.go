package models

// DeviceKind classifies the physical device a SignalEvent came from.
type DeviceKind string

const (
	DeviceKindUnknown     DeviceKind = "Unknown"
	DeviceKindButton      DeviceKind = "Button"
	DeviceKindMotion      DeviceKind = "Motion"
	DeviceKindContact     DeviceKind = "Contact"
	DeviceKindThermometer DeviceKind = "Thermometer"
	DeviceKindLight       DeviceKind = "Light"
	DeviceKindSwitch      DeviceKind = "Switch"
	DeviceKindOutlet      DeviceKind = "Outlet"
)

// EventCategory buckets a SignalEvent for downstream filtering.
type EventCategory string

const (
	EventCategoryTelemetry EventCategory = "Telemetry"
	EventCategoryCommand   EventCategory = "Command"
	EventCategoryState     EventCategory = "State"
)

// TriggerType is the kind of derived TriggerEvent projection emits.
type TriggerType string

const (
	TriggerTypeMotion  TriggerType = "motion"
	TriggerTypeButton  TriggerType = "button"
	TriggerTypeContact TriggerType = "contact"
	TriggerTypeState   TriggerType = "state"
)

// DeviceType is the operator-facing classification of a Device.
type DeviceType string

const (
	DeviceTypeLight   DeviceType = "Light"
	DeviceTypeSwitch  DeviceType = "Switch"
	DeviceTypeSensor  DeviceType = "Sensor"
	DeviceTypeClimate DeviceType = "Climate"
	DeviceTypeLock    DeviceType = "Lock"
	DeviceTypeCover   DeviceType = "Cover"
	DeviceTypeFan     DeviceType = "Fan"
	DeviceTypeOther   DeviceType = "Other"
)

// TriggerMode governs how a rule's triggers combine.
type TriggerMode string

const (
	TriggerModeAny TriggerMode = "Any"
	TriggerModeAll TriggerMode = "All"
)

// ConditionMode governs how a rule's conditions combine.
type ConditionMode string

const (
	ConditionModeAll ConditionMode = "All"
	ConditionModeAny ConditionMode = "Any"
)

// AutomationTriggerType enumerates the kinds of stimuli a trigger reacts to.
type AutomationTriggerType string

const (
	AutomationTriggerDeviceState    AutomationTriggerType = "DeviceState"
	AutomationTriggerTime           AutomationTriggerType = "Time"
	AutomationTriggerSunrise        AutomationTriggerType = "Sunrise"
	AutomationTriggerSunset         AutomationTriggerType = "Sunset"
	AutomationTriggerSensorThreshold AutomationTriggerType = "SensorThreshold"
	AutomationTriggerManual         AutomationTriggerType = "Manual"
	AutomationTriggerTriggerEvent   AutomationTriggerType = "TriggerEvent"
	AutomationTriggerSensorReading  AutomationTriggerType = "SensorReading"
)

// AutomationConditionType enumerates the kinds of ambient conditions a rule may gate on.
type AutomationConditionType string

const (
	ConditionTypeDeviceState AutomationConditionType = "DeviceState"
	ConditionTypeTimeRange   AutomationConditionType = "TimeRange"
	ConditionTypeDayOfWeek   AutomationConditionType = "DayOfWeek"
	ConditionTypeSunPosition AutomationConditionType = "SunPosition"
	ConditionTypeAnd         AutomationConditionType = "And"
	ConditionTypeOr          AutomationConditionType = "Or"
)

// AutomationActionType enumerates the kinds of side effects a rule may execute.
type AutomationActionType string

const (
	ActionTypeSetDeviceState AutomationActionType = "SetDeviceState"
	ActionTypeToggleDevice   AutomationActionType = "ToggleDevice"
	ActionTypeDelay          AutomationActionType = "Delay"
	ActionTypeWebhook        AutomationActionType = "Webhook"
	ActionTypeNotification   AutomationActionType = "Notification"
	ActionTypeActivateScene  AutomationActionType = "ActivateScene"
	ActionTypeRunAutomation  AutomationActionType = "RunAutomation"
)

// ExecutionStatus is the outcome recorded for one rule evaluation attempt.
type ExecutionStatus string

const (
	ExecutionStatusSuccess         ExecutionStatus = "Success"
	ExecutionStatusPartialFailure  ExecutionStatus = "PartialFailure"
	ExecutionStatusFailure         ExecutionStatus = "Failure"
	ExecutionStatusSkippedCooldown ExecutionStatus = "SkippedCooldown"
	ExecutionStatusSkippedCondition ExecutionStatus = "SkippedCondition"
)

// Operator is the comparison operator vocabulary (CMP in §3).
type Operator string

const (
	OpEquals             Operator = "Equals"
	OpNotEquals          Operator = "NotEquals"
	OpGreaterThan        Operator = "GreaterThan"
	OpGreaterThanOrEqual Operator = "GreaterThanOrEqual"
	OpLessThan           Operator = "LessThan"
	OpLessThanOrEqual    Operator = "LessThanOrEqual"
	OpBetween            Operator = "Between"
	OpContains           Operator = "Contains"
	OpStartsWith         Operator = "StartsWith"
	OpEndsWith           Operator = "EndsWith"
	OpChangesTo          Operator = "ChangesTo"
	OpChangesFrom        Operator = "ChangesFrom"
	OpAnyChange          Operator = "AnyChange"
)

// LiveLogLevel is the severity of an automation live-log entry.
type LiveLogLevel string

const (
	LiveLogDebug   LiveLogLevel = "Debug"
	LiveLogInfo    LiveLogLevel = "Info"
	LiveLogWarning LiveLogLevel = "Warning"
	LiveLogSuccess LiveLogLevel = "Success"
	LiveLogError   LiveLogLevel = "Error"
)

// LivePhase is the evaluation phase a live-log entry is emitted from.
type LivePhase string

const (
	PhaseTriggerMatched       LivePhase = "TriggerMatched"
	PhaseTriggerSkipped       LivePhase = "TriggerSkipped"
	PhaseCooldownActive       LivePhase = "CooldownActive"
	PhaseConditionEvaluating  LivePhase = "ConditionEvaluating"
	PhaseConditionPassed      LivePhase = "ConditionPassed"
	PhaseConditionFailed      LivePhase = "ConditionFailed"
	PhaseActionExecuting      LivePhase = "ActionExecuting"
	PhaseActionCompleted      LivePhase = "ActionCompleted"
	PhaseActionFailed         LivePhase = "ActionFailed"
	PhaseExecutionCompleted   LivePhase = "ExecutionCompleted"
	PhaseExecutionFailed      LivePhase = "ExecutionFailed"
)
