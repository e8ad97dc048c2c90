package automation

import (
	"strconv"
	"strings"
	"time"

	"sdhome/internal/models"
)

// deviceStateTriggerHolds evaluates one DeviceState trigger. isPrimary
// is true for the trigger that matches the stimulus's own (deviceId,
// property); for any other DeviceState trigger the rule owns (relevant
// only to triggerMode=All), there is no fresh old/new pair, so it is
// checked against the current cached value instead of a delta.
func (e *Engine) deviceStateTriggerHolds(t models.AutomationTrigger, isPrimary bool, oldVal, newVal interface{}) bool {
	if t.Operator == nil {
		return false
	}
	if isPrimary {
		return compareStateChange(*t.Operator, oldVal, newVal, t.Value)
	}
	if t.DeviceID == nil || t.Property == nil {
		return false
	}
	current, ok := e.cache.getState(*t.DeviceID, *t.Property)
	if !ok {
		return false
	}
	switch *t.Operator {
	case models.OpAnyChange, models.OpChangesFrom:
		return false // no delta available for a non-primary trigger
	case models.OpChangesTo:
		return compareScalar(models.OpEquals, current, t.Value, nil)
	default:
		return compareScalar(*t.Operator, current, t.Value, nil)
	}
}

// matchDeviceStateTriggers finds every DeviceState trigger on rule for
// deviceId/property (or a wildcard property) and combines them per
// triggerMode (§4.5.1, §4.5.2). With triggerMode=All, every other
// DeviceState trigger on the rule must also hold against the cache.
func (e *Engine) matchDeviceStateTriggers(rule models.AutomationRule, deviceID, property string, oldVal, newVal interface{}) bool {
	var matching []models.AutomationTrigger
	for _, t := range rule.Triggers {
		if t.TriggerType != models.AutomationTriggerDeviceState {
			continue
		}
		if t.DeviceID == nil || *t.DeviceID != deviceID {
			continue
		}
		if t.Property != nil && *t.Property != "" && *t.Property != property {
			continue
		}
		matching = append(matching, t)
	}
	if len(matching) == 0 {
		return false
	}

	if rule.TriggerMode == models.TriggerModeAll {
		for _, t := range rule.Triggers {
			if t.TriggerType != models.AutomationTriggerDeviceState {
				continue
			}
			isPrimary := t.DeviceID != nil && *t.DeviceID == deviceID &&
				(t.Property == nil || *t.Property == "" || *t.Property == property)
			if !e.deviceStateTriggerHolds(t, isPrimary, oldVal, newVal) {
				return false
			}
		}
		return true
	}
	for _, t := range matching {
		if e.deviceStateTriggerHolds(t, true, oldVal, newVal) {
			return true
		}
	}
	return false
}

// matchTriggerEventTriggers implements the TriggerEvent stimulus rule
// in §4.5.1/§4.5.2: property must equal the trigger's type; if a value
// is set, it must equal the subType (unquoted).
func (e *Engine) matchTriggerEventTriggers(rule models.AutomationRule, ev models.TriggerEvent) bool {
	var matching []models.AutomationTrigger
	for _, t := range rule.Triggers {
		if t.TriggerType != models.AutomationTriggerTriggerEvent {
			continue
		}
		if t.DeviceID == nil || *t.DeviceID != ev.DeviceID {
			continue
		}
		if t.Property != nil && *t.Property != string(ev.TriggerType) {
			continue
		}
		matching = append(matching, t)
	}
	if len(matching) == 0 {
		return false
	}

	holds := func(t models.AutomationTrigger) bool {
		if len(t.Value) == 0 {
			return true
		}
		expected := decodeJSON(t.Value)
		if ev.TriggerSubType == nil {
			return false
		}
		return normalizedString(expected) == *ev.TriggerSubType
	}

	if rule.TriggerMode == models.TriggerModeAll {
		for _, t := range matching {
			if !holds(t) {
				return false
			}
		}
		return true
	}
	for _, t := range matching {
		if holds(t) {
			return true
		}
	}
	return false
}

// matchSensorReadingTriggers implements the SensorReading stimulus
// matching rule in §4.5.1/§4.5.2.
func (e *Engine) matchSensorReadingTriggers(rule models.AutomationRule, reading models.SensorReading, oldVal *float64) bool {
	var matching []models.AutomationTrigger
	for _, t := range rule.Triggers {
		if t.TriggerType != models.AutomationTriggerSensorReading {
			continue
		}
		if t.DeviceID == nil || *t.DeviceID != reading.DeviceID {
			continue
		}
		if t.Property != nil && *t.Property != "" && *t.Property != reading.Metric {
			continue
		}
		matching = append(matching, t)
	}
	if len(matching) == 0 {
		return false
	}

	holds := func(t models.AutomationTrigger) bool {
		if t.Operator == nil {
			return false
		}
		return compareSensorReading(*t.Operator, oldVal, reading.Value, t.Value)
	}

	if rule.TriggerMode == models.TriggerModeAll {
		for _, t := range matching {
			if !holds(t) {
				return false
			}
		}
		return true
	}
	for _, t := range matching {
		if holds(t) {
			return true
		}
	}
	return false
}

// matchTimeTriggers implements the 30s time-tick matching rule
// (§4.5.1): a Time trigger's timeExpression (HH:mm) matches when local
// wall-clock is within ±30s of it.
func (e *Engine) matchTimeTriggers(rule models.AutomationRule, now time.Time) bool {
	var matching []models.AutomationTrigger
	for _, t := range rule.Triggers {
		if t.TriggerType != models.AutomationTriggerTime || t.TimeExpression == nil {
			continue
		}
		if timeExpressionMatches(*t.TimeExpression, now) {
			matching = append(matching, t)
		}
	}
	if len(matching) == 0 {
		return false
	}
	// A single matching tick already means "all matching triggers for
	// this stimulus hold" for both Any and All, per §4.5.1.
	return true
}

func timeExpressionMatches(expr string, now time.Time) bool {
	parts := strings.SplitN(expr, ":", 2)
	if len(parts) != 2 {
		return false
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	// The neighbouring days are checked too, so "00:00" also matches in
	// the last seconds before midnight.
	for _, day := range []int{-1, 0, 1} {
		delta := now.Sub(target.AddDate(0, 0, day))
		if delta < 0 {
			delta = -delta
		}
		if delta <= 30*time.Second {
			return true
		}
	}
	return false
}
