// Package projection derives SensorReadings and a TriggerEvent from an
// accepted SignalEvent, per the §4.3 decision table.
package projection

import (
	"encoding/json"

	"github.com/google/uuid"

	"sdhome/internal/models"
)

// Projector implements the projection decision table.
type Projector struct{}

// New builds a Projector.
func New() *Projector { return &Projector{} }

// Result is the pair of derived rows a SignalEvent may project to.
type Result struct {
	Readings []models.SensorReading
	Trigger  *models.TriggerEvent
}

// Project applies the §4.3 table to one accepted SignalEvent.
func (p *Projector) Project(event models.SignalEvent) Result {
	var fields map[string]interface{}
	_ = json.Unmarshal(event.RawPayload, &fields)

	var res Result
	res.Readings = commonReadings(event, fields)

	switch event.Capability {
	case "motion":
		res.Trigger = &models.TriggerEvent{
			ID:             uuid.New(),
			SignalEventID:  event.ID,
			Timestamp:      event.Timestamp,
			DeviceID:       event.DeviceID,
			Capability:     event.Capability,
			TriggerType:    models.TriggerTypeMotion,
			TriggerSubType: event.EventSubType,
			Value:          boolPtrFromFloat(event.Value),
		}
		res.Readings = append(res.Readings, specificReadings(event, fields, "device_temperature", "temperature", "°C", divideBy1)...)
		res.Readings = append(res.Readings, specificReadings(event, fields, "illuminance", "illuminance", "lx", divideBy1)...)

	case "button":
		res.Trigger = &models.TriggerEvent{
			ID:             uuid.New(),
			SignalEventID:  event.ID,
			Timestamp:      event.Timestamp,
			DeviceID:       event.DeviceID,
			Capability:     event.Capability,
			TriggerType:    models.TriggerTypeButton,
			TriggerSubType: event.EventSubType,
			Value:          trueVal(),
		}

	case "temperature":
		res.Readings = append(res.Readings, specificReadings(event, fields, "temperature", "temperature", "°C", divideBy1)...)
		res.Readings = append(res.Readings, specificReadings(event, fields, "humidity", "humidity", "%", divideBy1)...)
		res.Readings = append(res.Readings, specificReadings(event, fields, "pressure", "pressure", "hPa", divideBy1)...)

	case "contact":
		res.Trigger = &models.TriggerEvent{
			ID:             uuid.New(),
			SignalEventID:  event.ID,
			Timestamp:      event.Timestamp,
			DeviceID:       event.DeviceID,
			Capability:     event.Capability,
			TriggerType:    models.TriggerTypeContact,
			TriggerSubType: event.EventSubType,
			Value:          contactValue(fields),
		}

	case "state":
		res.Trigger = &models.TriggerEvent{
			ID:             uuid.New(),
			SignalEventID:  event.ID,
			Timestamp:      event.Timestamp,
			DeviceID:       event.DeviceID,
			Capability:     event.Capability,
			TriggerType:    models.TriggerTypeState,
			TriggerSubType: event.EventSubType,
			Value:          stateBoolValue(fields),
		}
		res.Readings = append(res.Readings, specificReadings(event, fields, "brightness", "brightness", "", divideBy1)...)
		res.Readings = append(res.Readings, specificReadings(event, fields, "power", "power", "W", divideBy1)...)
		res.Readings = append(res.Readings, specificReadings(event, fields, "energy", "energy", "kWh", divideBy1)...)

	default:
		// generic object: common readings only, no trigger.
	}

	return res
}

func commonReadings(event models.SignalEvent, fields map[string]interface{}) []models.SensorReading {
	var out []models.SensorReading
	out = append(out, specificReadings(event, fields, "battery", "battery", "%", divideBy1)...)
	out = append(out, specificReadings(event, fields, "linkquality", "linkquality", "", divideBy1)...)
	out = append(out, specificReadings(event, fields, "voltage", "voltage", "V", divideBy1000)...)
	return out
}

func divideBy1(v float64) float64    { return v }
func divideBy1000(v float64) float64 { return v / 1000 }

func specificReadings(event models.SignalEvent, fields map[string]interface{}, key, metric, unit string, transform func(float64) float64) []models.SensorReading {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	v, ok := raw.(float64)
	if !ok {
		return nil
	}
	value := transform(v)
	var unitPtr *string
	if unit != "" {
		u := unit
		unitPtr = &u
	}
	return []models.SensorReading{{
		ID:            uuid.New(),
		SignalEventID: event.ID,
		Timestamp:     event.Timestamp,
		DeviceID:      event.DeviceID,
		Metric:        metric,
		Value:         value,
		Unit:          unitPtr,
	}}
}

func trueVal() *bool {
	v := true
	return &v
}

func boolPtrFromFloat(v *float64) *bool {
	if v == nil {
		return nil
	}
	b := *v != 0
	return &b
}

func contactValue(fields map[string]interface{}) *bool {
	if v, ok := fields["contact"].(bool); ok {
		return &v
	}
	return nil
}

func stateBoolValue(fields map[string]interface{}) *bool {
	s, ok := fields["state"].(string)
	if !ok {
		return nil
	}
	v := s == "ON"
	return &v
}
