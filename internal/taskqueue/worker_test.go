package taskqueue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sdhome/internal/models"
)

type fakeEngine struct {
	deviceStateCalls []struct {
		deviceID, property string
		value              interface{}
		snapshot           *models.PipelineSnapshot
	}
	triggerEvents   []models.TriggerEvent
	sensorReadings  []models.SensorReading
}

func (f *fakeEngine) ProcessDeviceStateChange(ctx context.Context, deviceID, property string, newValue interface{}, snapshot *models.PipelineSnapshot) {
	f.deviceStateCalls = append(f.deviceStateCalls, struct {
		deviceID, property string
		value              interface{}
		snapshot           *models.PipelineSnapshot
	}{deviceID, property, newValue, snapshot})
}

func (f *fakeEngine) ProcessTriggerEvent(ctx context.Context, ev models.TriggerEvent, snapshot *models.PipelineSnapshot) {
	f.triggerEvents = append(f.triggerEvents, ev)
}

func (f *fakeEngine) ProcessSensorReading(ctx context.Context, reading models.SensorReading, snapshot *models.PipelineSnapshot) {
	f.sensorReadings = append(f.sensorReadings, reading)
}

func newTestServer(engine AutomationEngine) *Server {
	return &Server{engine: engine, logger: zap.NewNop()}
}

func TestHandleDeviceStateChange_DecodesAndDispatches(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	rawValue, _ := json.Marshal("ON")
	payload, err := json.Marshal(deviceStatePayload{DeviceID: "light-1", Property: "state", Value: rawValue})
	require.NoError(t, err)

	task := asynq.NewTask(typeDeviceStateChange, payload)
	require.NoError(t, s.handleDeviceStateChange(context.Background(), task))

	require.Len(t, engine.deviceStateCalls, 1)
	assert.Equal(t, "light-1", engine.deviceStateCalls[0].deviceID)
	assert.Equal(t, "state", engine.deviceStateCalls[0].property)
	assert.Equal(t, "ON", engine.deviceStateCalls[0].value)
}

func TestHandleDeviceStateChange_UndecodableValueIsDroppedNotErrored(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	payload, err := json.Marshal(deviceStatePayload{DeviceID: "light-1", Property: "state", Value: json.RawMessage(`not-json`)})
	require.NoError(t, err)

	task := asynq.NewTask(typeDeviceStateChange, payload)
	assert.NoError(t, s.handleDeviceStateChange(context.Background(), task))
	assert.Empty(t, engine.deviceStateCalls)
}

func TestHandleTriggerEvent_DecodesAndDispatches(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	ev := models.TriggerEvent{DeviceID: "button-1", TriggerType: models.TriggerTypeButton}
	payload, err := json.Marshal(triggerEventPayload{Event: ev})
	require.NoError(t, err)

	task := asynq.NewTask(typeTriggerEvent, payload)
	require.NoError(t, s.handleTriggerEvent(context.Background(), task))

	require.Len(t, engine.triggerEvents, 1)
	assert.Equal(t, "button-1", engine.triggerEvents[0].DeviceID)
}

func TestHandleSensorReading_DecodesAndDispatches(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine)

	reading := models.SensorReading{DeviceID: "sensor-1", Metric: "temperature", Value: 21.5}
	payload, err := json.Marshal(sensorReadingPayload{Reading: reading})
	require.NoError(t, err)

	task := asynq.NewTask(typeSensorReading, payload)
	require.NoError(t, s.handleSensorReading(context.Background(), task))

	require.Len(t, engine.sensorReadings, 1)
	assert.Equal(t, "sensor-1", engine.sensorReadings[0].DeviceID)
}
