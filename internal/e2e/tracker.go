// Package e2e correlates a triggering inbound signal with the eventual
// device-reported confirmation and emits a stage-by-stage latency
// breakdown for the UI (§4.8).
package e2e

import (
	"container/ring"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sdhome/internal/broadcaster"
	"sdhome/internal/clock"
	"sdhome/internal/models"
)

const (
	completedBufferSize = 100
	responseWatchdog    = 5 * time.Second
)

type activeTimeline struct {
	trackingID      string
	triggerDeviceID string
	ruleName        string
	targetDeviceID  string
	startedAt       time.Time
	stages          []models.TimelineStage
	watchdog        *time.Timer
	resolved        bool
}

// Tracker owns the active/pending timelines and the bounded ring of
// completed ones (§5: "concurrent maps for active/pending timelines").
type Tracker struct {
	mu              sync.Mutex
	active          map[string]*activeTimeline
	pendingByDevice map[string][]string // deviceId -> trackingIds waiting, FIFO

	completed    *ring.Ring
	broadcaster  broadcaster.Broadcaster
	clock        clock.Clock
	logger       *zap.Logger
}

// New builds a Tracker with a bounded 100-entry completed-timeline ring.
func New(b broadcaster.Broadcaster, clk clock.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{
		active:          make(map[string]*activeTimeline),
		pendingByDevice: make(map[string][]string),
		completed:       ring.New(completedBufferSize),
		broadcaster:     b,
		clock:           clk,
		logger:          logger.Named("e2e"),
	}
}

// StartTracking begins a new causal chain. triggerDeviceId is the
// device whose signal started the chain; ruleName and targetDeviceId
// are optional and filled in as they become known. snapshot, if
// non-nil, supplies the Parse/Database/Broadcast sub-stages the
// ingestion pipeline already timed before the engine ever saw the
// stimulus (§4.8).
func (t *Tracker) StartTracking(triggerDeviceID, ruleName, targetDeviceID string, snapshot *models.PipelineSnapshot) string {
	trackingID := uuid.New().String()
	stages := []models.TimelineStage{
		{Name: models.StageSignalReceived, Category: models.CategorySignal, DurationMs: 0},
	}
	if snapshot != nil {
		stages = append(stages,
			models.TimelineStage{Name: models.StageParse, Category: models.CategorySignal, DurationMs: snapshot.ParseDur.Milliseconds()},
			models.TimelineStage{Name: models.StageDatabase, Category: models.CategoryDatabase, DurationMs: snapshot.PersistDur.Milliseconds()},
			models.TimelineStage{Name: models.StageBroadcast, Category: models.CategoryBroadcast, DurationMs: snapshot.BroadcastDur.Milliseconds()},
		)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[trackingID] = &activeTimeline{
		trackingID:      trackingID,
		triggerDeviceID: triggerDeviceID,
		ruleName:        ruleName,
		targetDeviceID:  targetDeviceID,
		startedAt:       t.clock.Now(),
		stages:          stages,
	}
	return trackingID
}

// RecordAutomationLookup appends the AutomationLookup stage.
func (t *Tracker) RecordAutomationLookup(trackingID string, durationMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tl, ok := t.active[trackingID]
	if !ok {
		return
	}
	tl.stages = append(tl.stages, models.TimelineStage{
		Name: models.StageAutomationLookup, Category: models.CategoryAutomation, DurationMs: durationMs,
	})
}

// RecordActionExecution appends the ActionExecution stage and, if
// targetDeviceID is non-empty, arms a 5s watchdog after which the
// timeline is closed as timed out with no response stage (§4.8).
func (t *Tracker) RecordActionExecution(trackingID string, durationMs int64, targetDeviceID string) {
	t.mu.Lock()
	tl, ok := t.active[trackingID]
	if !ok {
		t.mu.Unlock()
		return
	}
	tl.stages = append(tl.stages, models.TimelineStage{
		Name: models.StageActionExecution, Category: models.CategoryMQTT, DurationMs: durationMs,
	})
	if targetDeviceID == "" {
		t.mu.Unlock()
		t.finalize(tl, nil, false)
		return
	}

	tl.targetDeviceID = targetDeviceID
	t.pendingByDevice[targetDeviceID] = append(t.pendingByDevice[targetDeviceID], trackingID)
	tl.watchdog = time.AfterFunc(responseWatchdog, func() {
		t.watchdogFire(trackingID, targetDeviceID)
	})
	t.mu.Unlock()
}

func (t *Tracker) watchdogFire(trackingID, targetDeviceID string) {
	t.mu.Lock()
	tl, ok := t.active[trackingID]
	if !ok || tl.resolved {
		t.mu.Unlock()
		return
	}
	t.removePending(targetDeviceID, trackingID)
	t.mu.Unlock()
	t.finalize(tl, nil, true)
}

// RecordTargetDeviceResponse resolves the oldest-waiting timeline for
// deviceID in FIFO order (§4.8 invariant).
func (t *Tracker) RecordTargetDeviceResponse(deviceID string) {
	t.mu.Lock()
	ids := t.pendingByDevice[deviceID]
	if len(ids) == 0 {
		t.mu.Unlock()
		return
	}
	trackingID := ids[0]
	t.pendingByDevice[deviceID] = ids[1:]
	tl, ok := t.active[trackingID]
	if !ok || tl.resolved {
		t.mu.Unlock()
		return
	}
	tl.resolved = true
	if tl.watchdog != nil {
		tl.watchdog.Stop()
	}
	now := t.clock.Now()
	responseMs := now.Sub(tl.startedAt).Milliseconds()
	t.mu.Unlock()

	rm := responseMs
	t.finalize(tl, &rm, false)
}

func (t *Tracker) removePending(deviceID, trackingID string) {
	ids := t.pendingByDevice[deviceID]
	for i, id := range ids {
		if id == trackingID {
			t.pendingByDevice[deviceID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

func (t *Tracker) finalize(tl *activeTimeline, responseMs *int64, timedOut bool) {
	t.mu.Lock()
	tl.resolved = true
	delete(t.active, tl.trackingID)

	stages := append([]models.TimelineStage{}, tl.stages...)
	if responseMs != nil {
		stages = append(stages, models.TimelineStage{
			Name: models.StageTargetDeviceResponse, Category: models.CategoryZigbee, DurationMs: *responseMs,
		})
	}
	var total int64
	for _, s := range stages {
		total += s.DurationMs
	}

	timeline := models.PipelineTimeline{
		TrackingID:             tl.trackingID,
		TriggerDeviceID:        tl.triggerDeviceID,
		RuleName:               tl.ruleName,
		TargetDeviceID:         tl.targetDeviceID,
		Stages:                 stages,
		TotalDurationMs:        total,
		TargetDeviceResponseMs: responseMs,
		TimedOut:               timedOut,
		CompletedAt:            t.clock.Now(),
	}

	t.completed.Value = timeline
	t.completed = t.completed.Next()
	t.mu.Unlock()

	t.broadcaster.BroadcastPipelineTimeline(context.Background(), timeline)
	if timedOut {
		t.logger.Debug("timeline timed out", zap.String("trackingId", tl.trackingID), zap.String("target", tl.targetDeviceID))
	}
}

// Recent returns up to n most recently completed timelines, newest first.
func (t *Tracker) Recent(n int) []models.PipelineTimeline {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.PipelineTimeline
	r := t.completed
	for i := 0; i < completedBufferSize && len(out) < n; i++ {
		r = r.Prev()
		if tl, ok := r.Value.(models.PipelineTimeline); ok {
			out = append(out, tl)
		}
	}
	return out
}
