// Package mapper turns a raw broker (topic, payload) pair into a
// normalized models.SignalEvent (§4.2 Mapper contract). It never talks
// to storage or the broadcaster; SignalsService owns that.
package mapper

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"sdhome/internal/clock"
	"sdhome/internal/models"
)

// Mapper derives SignalEvents from inbound device topics.
type Mapper struct {
	baseTopic string
	clock     clock.Clock
}

// New builds a Mapper for the given base topic (e.g. "sdhome").
func New(baseTopic string, clk clock.Clock) *Mapper {
	return &Mapper{baseTopic: baseTopic, clock: clk}
}

// Map parses topic/payload into a SignalEvent. ok is false when the
// payload is not a JSON object, or the topic is a bridge/management
// topic that ingestion should have already routed elsewhere.
func (m *Mapper) Map(topic string, payload []byte) (event *models.SignalEvent, ok bool) {
	if isManagementTopic(topic, m.baseTopic) {
		return nil, false
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, false
	}

	deviceID := deviceIDFromTopic(topic, m.baseTopic)
	if deviceID == "" {
		return nil, false
	}

	capability, eventType, eventSubType, value, deviceKind, eventCategory := classify(fields)

	return &models.SignalEvent{
		ID:            uuid.New(),
		Timestamp:     m.clock.Now(),
		Source:        "mqtt",
		DeviceID:      deviceID,
		Capability:    capability,
		EventType:     eventType,
		EventSubType:  eventSubType,
		Value:         value,
		RawTopic:      topic,
		RawPayload:    json.RawMessage(payload),
		DeviceKind:    deviceKind,
		EventCategory: eventCategory,
	}, true
}

func isManagementTopic(topic, base string) bool {
	suffix := strings.TrimPrefix(topic, base+"/")
	return strings.HasPrefix(suffix, "bridge/") ||
		strings.HasSuffix(suffix, "/availability") ||
		strings.HasSuffix(suffix, "/get") ||
		strings.HasSuffix(suffix, "/set")
}

func deviceIDFromTopic(topic, base string) string {
	suffix := strings.TrimPrefix(topic, base+"/")
	if suffix == topic {
		return ""
	}
	parts := strings.Split(suffix, "/")
	return parts[len(parts)-1]
}

func classify(f map[string]interface{}) (capability, eventType string, eventSubType *string, value *float64, kind models.DeviceKind, category models.EventCategory) {
	switch {
	case hasKey(f, "occupancy") || (hasKey(f, "action") && looksLikeMotionAction(f)):
		capability, eventType = "motion", "detection"
		sub := stringField(f, "action")
		if sub != "" {
			eventSubType = &sub
		}
		if v, ok := boolField(f, "occupancy"); ok {
			fv := boolToFloat(v)
			value = &fv
		} else if eventSubType != nil {
			fv := boolToFloat(*eventSubType == "active" || *eventSubType == "motion")
			value = &fv
		}
		kind, category = models.DeviceKindMotion, models.EventCategoryTelemetry

	case hasKey(f, "action"):
		capability, eventType = "button", "press"
		sub := stringField(f, "action")
		eventSubType = &sub
		kind, category = models.DeviceKindButton, models.EventCategoryTelemetry

	case hasKey(f, "temperature") && !hasKey(f, "contact") && !hasKey(f, "state"):
		capability, eventType = "temperature", "measurement"
		if v, ok := floatField(f, "temperature"); ok {
			value = &v
		}
		kind, category = models.DeviceKindThermometer, models.EventCategoryTelemetry

	case hasKey(f, "contact"):
		capability, eventType = "contact", "state"
		if v, ok := boolField(f, "contact"); ok {
			sub := "open"
			if v {
				sub = "closed"
			}
			eventSubType = &sub
		}
		kind, category = models.DeviceKindContact, models.EventCategoryTelemetry

	case hasKey(f, "state"):
		capability, eventType = "state", "state"
		s := strings.ToLower(stringField(f, "state"))
		eventSubType = &s
		kind, category = models.DeviceKindSwitch, models.EventCategoryState

	default:
		capability, eventType = "generic", "telemetry"
		kind, category = models.DeviceKindUnknown, models.EventCategoryTelemetry
	}
	return
}

// motionActionValues holds the action vocabulary vendors (e.g. Aqara)
// use to report motion on sensors that have no dedicated "occupancy"
// field, instead overloading the same "action" field buttons use.
var motionActionValues = map[string]bool{
	"motion": true, "no_motion": true, "vibration": true,
}

func looksLikeMotionAction(f map[string]interface{}) bool {
	return motionActionValues[strings.ToLower(stringField(f, "action"))]
}

func hasKey(f map[string]interface{}, key string) bool {
	_, ok := f[key]
	return ok
}

func stringField(f map[string]interface{}, key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

func boolField(f map[string]interface{}, key string) (bool, bool) {
	v, ok := f[key].(bool)
	return v, ok
}

func floatField(f map[string]interface{}, key string) (float64, bool) {
	v, ok := f[key].(float64)
	return v, ok
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
