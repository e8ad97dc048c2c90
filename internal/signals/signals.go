// Package signals implements the §4.2 pipeline: map a raw broker
// message to a SignalEvent, persist and broadcast it, run projection,
// and fan out to the automation engine — all before the ingestion
// worker moves on to the next message.
package signals

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"sdhome/internal/broadcaster"
	"sdhome/internal/clock"
	"sdhome/internal/e2e"
	"sdhome/internal/mapper"
	"sdhome/internal/models"
	"sdhome/internal/projection"
	"sdhome/internal/store"
)

// AutomationSink is the taskqueue.Client surface SignalsService enqueues
// stimuli through — the bounded worker pool that decouples ingestion
// from automation evaluation (§5: "automation evaluation for event N
// does not block ingestion of event N+1").
type AutomationSink interface {
	EnqueueDeviceStateChange(deviceID, property string, value interface{}, snapshot *models.PipelineSnapshot) error
	EnqueueTriggerEvent(event models.TriggerEvent, snapshot *models.PipelineSnapshot) error
	EnqueueSensorReading(reading models.SensorReading, snapshot *models.PipelineSnapshot) error
}

// Service runs the map → persist → broadcast → project → automate
// pipeline for one inbound (topic, payload) pair.
type Service struct {
	mapper      *mapper.Mapper
	projector   *projection.Projector
	signals     store.SignalStore
	broadcaster broadcaster.Broadcaster
	automation  AutomationSink
	e2eTracker  *e2e.Tracker
	clock       clock.Clock
	logger      *zap.Logger
}

// New builds a Service.
func New(
	m *mapper.Mapper,
	p *projection.Projector,
	signalStore store.SignalStore,
	bc broadcaster.Broadcaster,
	automation AutomationSink,
	tracker *e2e.Tracker,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		mapper:      m,
		projector:   p,
		signals:     signalStore,
		broadcaster: bc,
		automation:  automation,
		e2eTracker:  tracker,
		clock:       clk,
		logger:      logger.Named("signals"),
	}
}

// Handle runs the full pipeline for one inbound message (§4.2).
func (s *Service) Handle(ctx context.Context, topic string, payload []byte) {
	receivedAt := s.clock.Now()

	parseStart := s.clock.Now()
	event, ok := s.mapper.Map(topic, payload)
	parseDur := s.clock.Now().Sub(parseStart)
	if !ok {
		s.logger.Debug("dropped unmapped message", zap.String("topic", topic))
		return
	}

	if s.e2eTracker != nil {
		s.e2eTracker.RecordTargetDeviceResponse(event.DeviceID)
	}

	persistStart := s.clock.Now()
	if err := s.signals.InsertSignalEvent(ctx, *event); err != nil {
		s.logger.Error("persisting signal event", zap.String("deviceId", event.DeviceID), zap.Error(err))
		return
	}
	persistDur := s.clock.Now().Sub(persistStart)

	broadcastStart := s.clock.Now()
	s.broadcaster.BroadcastSignalEvent(ctx, *event)
	broadcastDur := s.clock.Now().Sub(broadcastStart)

	snapshot := models.PipelineSnapshot{
		ReceivedAt:   receivedAt,
		ParseDur:     parseDur,
		PersistDur:   persistDur,
		BroadcastDur: broadcastDur,
	}

	s.project(ctx, *event, &snapshot)
	s.enqueueDeviceStateChanges(*event, &snapshot)
}

// enqueueDeviceStateChanges treats every top-level scalar field of the
// raw payload as a candidate device-state property, per the system
// overview's direct SignalsService → ProcessDeviceStateChange edge.
func (s *Service) enqueueDeviceStateChanges(event models.SignalEvent, snapshot *models.PipelineSnapshot) {
	var fields map[string]interface{}
	if err := json.Unmarshal(event.RawPayload, &fields); err != nil {
		return
	}
	for property, value := range fields {
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			continue // nested structures aren't device-state scalars
		}
		if err := s.automation.EnqueueDeviceStateChange(event.DeviceID, property, value, snapshot); err != nil {
			s.logger.Warn("enqueueing device state change", zap.String("deviceId", event.DeviceID), zap.String("property", property), zap.Error(err))
		}
	}
}

// project runs Projection and persists/broadcasts/automates its
// output, per §4.2 step 4 and §4.3.
func (s *Service) project(ctx context.Context, event models.SignalEvent, snapshot *models.PipelineSnapshot) {
	result := s.projector.Project(event)

	if len(result.Readings) > 0 {
		if err := s.signals.InsertSensorReadings(ctx, result.Readings); err != nil {
			s.logger.Error("persisting sensor readings", zap.String("deviceId", event.DeviceID), zap.Error(err))
		} else {
			for _, r := range result.Readings {
				s.broadcaster.BroadcastSensorReading(ctx, r)
				if err := s.automation.EnqueueSensorReading(r, snapshot); err != nil {
					s.logger.Warn("enqueueing sensor reading", zap.String("deviceId", r.DeviceID), zap.Error(err))
				}
			}
		}
	}

	if result.Trigger != nil {
		if err := s.signals.InsertTriggerEvent(ctx, *result.Trigger); err != nil {
			s.logger.Error("persisting trigger event", zap.String("deviceId", event.DeviceID), zap.Error(err))
		} else {
			s.broadcaster.BroadcastTriggerEvent(ctx, *result.Trigger)
			if err := s.automation.EnqueueTriggerEvent(*result.Trigger, snapshot); err != nil {
				s.logger.Warn("enqueueing trigger event", zap.String("deviceId", result.Trigger.DeviceID), zap.Error(err))
			}
		}
	}
}
