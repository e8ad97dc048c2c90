package automation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sdhome/internal/models"
)

func deviceStateTrigger(deviceID, property string, op models.Operator, value json.RawMessage) models.AutomationTrigger {
	return models.AutomationTrigger{
		TriggerType: models.AutomationTriggerDeviceState,
		DeviceID:    &deviceID,
		Property:    &property,
		Operator:    &op,
		Value:       value,
	}
}

func TestMatchDeviceStateTriggers_AnyChange(t *testing.T) {
	e := &Engine{cache: newCache()}
	rule := models.AutomationRule{
		TriggerMode: models.TriggerModeAny,
		Triggers:    []models.AutomationTrigger{deviceStateTrigger("motion-1", "occupancy", models.OpAnyChange, nil)},
	}
	assert.True(t, e.matchDeviceStateTriggers(rule, "motion-1", "occupancy", false, true))
	assert.False(t, e.matchDeviceStateTriggers(rule, "motion-1", "occupancy", true, true))
	assert.False(t, e.matchDeviceStateTriggers(rule, "other-device", "occupancy", false, true))
}

func TestMatchDeviceStateTriggers_TriggerModeAll(t *testing.T) {
	e := &Engine{cache: newCache()}
	e.cache.setState("switch-1", "secondary", "ON")

	opEq := models.OpEquals
	primary := deviceStateTrigger("switch-1", "state", models.OpAnyChange, nil)
	secondary := deviceStateTrigger("switch-1", "secondary", opEq, raw("ON"))
	rule := models.AutomationRule{
		TriggerMode: models.TriggerModeAll,
		Triggers:    []models.AutomationTrigger{primary, secondary},
	}
	assert.True(t, e.matchDeviceStateTriggers(rule, "switch-1", "state", "OFF", "ON"))

	e.cache.setState("switch-1", "secondary", "OFF")
	assert.False(t, e.matchDeviceStateTriggers(rule, "switch-1", "state", "OFF", "ON"))
}

func TestMatchTriggerEventTriggers(t *testing.T) {
	e := &Engine{cache: newCache()}
	property := string(models.TriggerTypeMotion)
	trig := models.AutomationTrigger{
		TriggerType: models.AutomationTriggerTriggerEvent,
		DeviceID:    strPtr("motion-1"),
		Property:    &property,
	}
	rule := models.AutomationRule{TriggerMode: models.TriggerModeAny, Triggers: []models.AutomationTrigger{trig}}

	ev := models.TriggerEvent{DeviceID: "motion-1", TriggerType: models.TriggerTypeMotion}
	assert.True(t, e.matchTriggerEventTriggers(rule, ev))

	ev.DeviceID = "other"
	assert.False(t, e.matchTriggerEventTriggers(rule, ev))
}

func TestMatchSensorReadingTriggers(t *testing.T) {
	e := &Engine{cache: newCache()}
	metric := "temperature"
	op := models.OpGreaterThan
	trig := models.AutomationTrigger{
		TriggerType: models.AutomationTriggerSensorReading,
		DeviceID:    strPtr("sensor-1"),
		Property:    &metric,
		Operator:    &op,
		Value:       raw(25),
	}
	rule := models.AutomationRule{TriggerMode: models.TriggerModeAny, Triggers: []models.AutomationTrigger{trig}}

	reading := models.SensorReading{DeviceID: "sensor-1", Metric: "temperature", Value: 26}
	assert.True(t, e.matchSensorReadingTriggers(rule, reading, nil))

	reading.Value = 20
	assert.False(t, e.matchSensorReadingTriggers(rule, reading, nil))
}

func TestMatchTimeTriggers_WithinThirtySecondWindow(t *testing.T) {
	e := &Engine{cache: newCache()}
	expr := "06:00"
	rule := models.AutomationRule{Triggers: []models.AutomationTrigger{
		{TriggerType: models.AutomationTriggerTime, TimeExpression: &expr},
	}}

	now := time.Date(2026, 1, 1, 6, 0, 20, 0, time.UTC)
	assert.True(t, e.matchTimeTriggers(rule, now))

	tooLate := time.Date(2026, 1, 1, 6, 1, 5, 0, time.UTC)
	assert.False(t, e.matchTimeTriggers(rule, tooLate))
}

func TestTimeExpressionMatches_Midnight(t *testing.T) {
	assert.True(t, timeExpressionMatches("00:00", time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)))
	assert.False(t, timeExpressionMatches("00:00", time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)))
}

func strPtr(s string) *string { return &s }
