package projection

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdhome/internal/models"
)

func signalEvent(capability string, subType *string, value *float64, payload string) models.SignalEvent {
	return models.SignalEvent{
		ID:           uuid.New(),
		DeviceID:     "device-1",
		Capability:   capability,
		EventSubType: subType,
		Value:        value,
		RawPayload:   []byte(payload),
	}
}

func TestProject_Motion(t *testing.T) {
	p := New()
	v := 1.0
	res := p.Project(signalEvent("motion", nil, &v, `{"occupancy":true,"device_temperature":21,"illuminance":150}`))

	require.NotNil(t, res.Trigger)
	assert.Equal(t, models.TriggerTypeMotion, res.Trigger.TriggerType)
	require.NotNil(t, res.Trigger.Value)
	assert.True(t, *res.Trigger.Value)

	metrics := metricSet(res.Readings)
	assert.Contains(t, metrics, "temperature")
	assert.Contains(t, metrics, "illuminance")
}

func TestProject_Button(t *testing.T) {
	p := New()
	sub := "single"
	res := p.Project(signalEvent("button", &sub, nil, `{"action":"single"}`))

	require.NotNil(t, res.Trigger)
	assert.Equal(t, models.TriggerTypeButton, res.Trigger.TriggerType)
	require.NotNil(t, res.Trigger.TriggerSubType)
	assert.Equal(t, "single", *res.Trigger.TriggerSubType)
}

func TestProject_Contact(t *testing.T) {
	p := New()
	res := p.Project(signalEvent("contact", nil, nil, `{"contact":false}`))

	require.NotNil(t, res.Trigger)
	assert.Equal(t, models.TriggerTypeContact, res.Trigger.TriggerType)
	require.NotNil(t, res.Trigger.Value)
	assert.False(t, *res.Trigger.Value)
}

func TestProject_State(t *testing.T) {
	p := New()
	res := p.Project(signalEvent("state", nil, nil, `{"state":"ON","brightness":200,"power":12.5}`))

	require.NotNil(t, res.Trigger)
	assert.Equal(t, models.TriggerTypeState, res.Trigger.TriggerType)
	require.NotNil(t, res.Trigger.Value)
	assert.True(t, *res.Trigger.Value)

	metrics := metricSet(res.Readings)
	assert.Contains(t, metrics, "brightness")
	assert.Contains(t, metrics, "power")
}

func TestProject_Temperature(t *testing.T) {
	p := New()
	res := p.Project(signalEvent("temperature", nil, nil, `{"temperature":21.5,"humidity":45,"pressure":1013}`))

	assert.Nil(t, res.Trigger)
	metrics := metricSet(res.Readings)
	assert.Contains(t, metrics, "temperature")
	assert.Contains(t, metrics, "humidity")
	assert.Contains(t, metrics, "pressure")
}

func TestProject_CommonReadingsAcrossCapabilities(t *testing.T) {
	p := New()
	res := p.Project(signalEvent("generic", nil, nil, `{"battery":88,"linkquality":120,"voltage":3000}`))

	assert.Nil(t, res.Trigger)
	metrics := metricSet(res.Readings)
	assert.Contains(t, metrics, "battery")
	assert.Contains(t, metrics, "linkquality")
	assert.Contains(t, metrics, "voltage")

	for _, r := range res.Readings {
		if r.Metric == "voltage" {
			assert.Equal(t, 3.0, r.Value) // millivolts to volts
		}
	}
}

func metricSet(readings []models.SensorReading) map[string]bool {
	out := make(map[string]bool, len(readings))
	for _, r := range readings {
		out[r.Metric] = true
	}
	return out
}
