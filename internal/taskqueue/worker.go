package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"sdhome/internal/models"
)

// AutomationEngine is the subset of automation.Engine the worker pool
// drives; kept narrow so this package doesn't import the engine directly.
type AutomationEngine interface {
	ProcessDeviceStateChange(ctx context.Context, deviceID, property string, newValue interface{}, snapshot *models.PipelineSnapshot)
	ProcessTriggerEvent(ctx context.Context, ev models.TriggerEvent, snapshot *models.PipelineSnapshot)
	ProcessSensorReading(ctx context.Context, reading models.SensorReading, snapshot *models.PipelineSnapshot)
}

// Server drains stimulus tasks with a bounded concurrency pool (§5).
type Server struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	engine AutomationEngine
	logger *zap.Logger
}

// NewServer builds a Server against the given Redis address and
// concurrency (the size of the bounded worker pool).
func NewServer(redisAddr string, concurrency int, engine AutomationEngine, logger *zap.Logger) *Server {
	s := &Server{
		srv:    asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: concurrency}),
		mux:    asynq.NewServeMux(),
		engine: engine,
		logger: logger.Named("taskqueue"),
	}
	s.mux.HandleFunc(typeDeviceStateChange, s.handleDeviceStateChange)
	s.mux.HandleFunc(typeTriggerEvent, s.handleTriggerEvent)
	s.mux.HandleFunc(typeSensorReading, s.handleSensorReading)
	return s
}

// Run blocks serving tasks until the process receives a shutdown signal.
func (s *Server) Run() error {
	return s.srv.Run(s.mux)
}

// Shutdown stops accepting new tasks and waits for in-flight ones.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

func (s *Server) handleDeviceStateChange(ctx context.Context, t *asynq.Task) error {
	var p deviceStatePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("taskqueue: decoding device state payload: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(p.Value, &value); err != nil {
		s.logger.Warn("dropping device state task with undecodable value", zap.Error(err))
		return nil
	}
	s.engine.ProcessDeviceStateChange(ctx, p.DeviceID, p.Property, value, p.Snapshot)
	return nil
}

func (s *Server) handleTriggerEvent(ctx context.Context, t *asynq.Task) error {
	var p triggerEventPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("taskqueue: decoding trigger event payload: %w", err)
	}
	s.engine.ProcessTriggerEvent(ctx, p.Event, p.Snapshot)
	return nil
}

func (s *Server) handleSensorReading(ctx context.Context, t *asynq.Task) error {
	var p sensorReadingPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("taskqueue: decoding sensor reading payload: %w", err)
	}
	s.engine.ProcessSensorReading(ctx, p.Reading, p.Snapshot)
	return nil
}
