// Package taskqueue is the bounded worker pool that decouples broker
// ingestion from automation evaluation (§5: "automation evaluation for
// event N does not block ingestion of event N+1"). SignalsService
// enqueues one task per stimulus; a small pool of asynq workers drains
// them against the automation engine.
package taskqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"sdhome/internal/models"
)

const (
	typeDeviceStateChange = "stimulus:device_state_change"
	typeTriggerEvent      = "stimulus:trigger_event"
	typeSensorReading     = "stimulus:sensor_reading"

	taskTimeout = 10 * time.Second
	maxRetry    = 3
)

// deviceStatePayload is the task payload for a device-state stimulus.
type deviceStatePayload struct {
	DeviceID string             `json:"deviceId"`
	Property string             `json:"property"`
	Value    json.RawMessage    `json:"value"`
	Snapshot *models.PipelineSnapshot `json:"snapshot,omitempty"`
}

type triggerEventPayload struct {
	Event    models.TriggerEvent     `json:"event"`
	Snapshot *models.PipelineSnapshot `json:"snapshot,omitempty"`
}

type sensorReadingPayload struct {
	Reading  models.SensorReading    `json:"reading"`
	Snapshot *models.PipelineSnapshot `json:"snapshot,omitempty"`
}

// Client enqueues stimulus-evaluation tasks.
type Client struct {
	asynq *asynq.Client
}

// NewClient builds a Client backed by the given Redis address.
func NewClient(redisAddr string) *Client {
	return &Client{asynq: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// Close releases the underlying asynq client.
func (c *Client) Close() error {
	return c.asynq.Close()
}

// EnqueueDeviceStateChange queues a DeviceState stimulus for evaluation.
func (c *Client) EnqueueDeviceStateChange(deviceID, property string, value interface{}, snapshot *models.PipelineSnapshot) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("taskqueue: marshaling device state value: %w", err)
	}
	payload, err := json.Marshal(deviceStatePayload{DeviceID: deviceID, Property: property, Value: raw, Snapshot: snapshot})
	if err != nil {
		return err
	}
	return c.enqueue(typeDeviceStateChange, payload)
}

// EnqueueTriggerEvent queues a TriggerEvent stimulus for evaluation.
func (c *Client) EnqueueTriggerEvent(event models.TriggerEvent, snapshot *models.PipelineSnapshot) error {
	payload, err := json.Marshal(triggerEventPayload{Event: event, Snapshot: snapshot})
	if err != nil {
		return err
	}
	return c.enqueue(typeTriggerEvent, payload)
}

// EnqueueSensorReading queues a SensorReading stimulus for evaluation.
func (c *Client) EnqueueSensorReading(reading models.SensorReading, snapshot *models.PipelineSnapshot) error {
	payload, err := json.Marshal(sensorReadingPayload{Reading: reading, Snapshot: snapshot})
	if err != nil {
		return err
	}
	return c.enqueue(typeSensorReading, payload)
}

func (c *Client) enqueue(taskType string, payload []byte) error {
	task := asynq.NewTask(taskType, payload)
	_, err := c.asynq.Enqueue(task, asynq.MaxRetry(maxRetry), asynq.Timeout(taskTimeout))
	return err
}
