// Package automation evaluates AutomationRules against stimuli fanned
// out by the ingestion pipeline (§4.5). The Engine keeps its own
// in-process device-state and sensor-reading caches so a single
// evaluation never needs to round-trip to Postgres.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sdhome/internal/broadcaster"
	"sdhome/internal/clock"
	"sdhome/internal/e2e"
	"sdhome/internal/models"
	"sdhome/internal/publisher"
	"sdhome/internal/ruleindex"
	"sdhome/internal/store"
	"sdhome/internal/sun"
	"sdhome/internal/webhook"
)

const cacheWarmLookback = 24 * time.Hour

// Engine owns rule evaluation end to end: matching, condition gating,
// cooldown, action execution, live logging, and execution-log
// persistence (§4.5).
type Engine struct {
	rules  store.RuleStore
	scenes store.SceneStore

	ruleIndex   *ruleindex.Index
	redis       *redis.Client
	publisher   *publisher.Publisher
	webhook     *webhook.Client
	broadcaster broadcaster.Broadcaster
	e2eTracker  *e2e.Tracker
	sun         *sun.Tracker
	clock       clock.Clock
	logger      *zap.Logger

	cache *cache

	mu          sync.RWMutex
	rulesByID   map[uuid.UUID]models.AutomationRule
	cooldownEnd map[uuid.UUID]time.Time
}

// New builds an Engine and warms its caches from recently persisted
// signal payloads.
func New(
	ctx context.Context,
	rules store.RuleStore,
	scenes store.SceneStore,
	signals store.SignalStore,
	ruleIndex *ruleindex.Index,
	rdb *redis.Client,
	pub *publisher.Publisher,
	wh *webhook.Client,
	bc broadcaster.Broadcaster,
	tracker *e2e.Tracker,
	sunTracker *sun.Tracker,
	clk clock.Clock,
	logger *zap.Logger,
) (*Engine, error) {
	e := &Engine{
		rules:       rules,
		scenes:      scenes,
		ruleIndex:   ruleIndex,
		redis:       rdb,
		publisher:   pub,
		webhook:     wh,
		broadcaster: bc,
		e2eTracker:  tracker,
		sun:         sunTracker,
		clock:       clk,
		logger:      logger.Named("automation"),
		cache:       newCache(),
		rulesByID:   make(map[uuid.UUID]models.AutomationRule),
		cooldownEnd: make(map[uuid.UUID]time.Time),
	}

	if err := e.cache.warm(ctx, signals, cacheWarmLookback, clk.Now()); err != nil {
		return nil, fmt.Errorf("warming automation cache: %w", err)
	}
	if err := e.ReloadRules(ctx); err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return e, nil
}

// ReloadRules refreshes the in-memory rule set and rebuilds the
// device→rule index (called on startup and after any rule mutation).
func (e *Engine) ReloadRules(ctx context.Context) error {
	enabled, err := e.rules.ListEnabledRules(ctx)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]models.AutomationRule, len(enabled))
	for _, r := range enabled {
		byID[r.ID] = r
	}

	e.mu.Lock()
	e.rulesByID = byID
	e.mu.Unlock()

	if e.ruleIndex != nil {
		if err := e.ruleIndex.Rebuild(ctx, enabled); err != nil {
			e.logger.Warn("rebuilding rule index", zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) snapshotRules() []models.AutomationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.AutomationRule, 0, len(e.rulesByID))
	for _, r := range e.rulesByID {
		out = append(out, r)
	}
	return out
}

// ProcessDeviceStateChange updates the device-state cache and
// evaluates every rule with a matching DeviceState trigger (§4.5.1).
func (e *Engine) ProcessDeviceStateChange(ctx context.Context, deviceID, property string, newValue interface{}, snapshot *models.PipelineSnapshot) {
	oldValue, _ := e.cache.setState(deviceID, property, newValue)
	now := e.clock.Now()
	for _, rule := range e.candidateRules(ctx, deviceID) {
		if e.matchDeviceStateTriggers(rule, deviceID, property, oldValue, newValue) {
			e.evaluate(ctx, rule, now, deviceID, models.DeviceStateChange{
				DeviceID: deviceID, Property: property, OldValue: oldValue, NewValue: newValue,
			}, snapshot)
		}
	}
}

// ProcessTriggerEvent evaluates every rule with a matching TriggerEvent
// trigger (§4.5.1).
func (e *Engine) ProcessTriggerEvent(ctx context.Context, ev models.TriggerEvent, snapshot *models.PipelineSnapshot) {
	now := e.clock.Now()
	for _, rule := range e.candidateRules(ctx, ev.DeviceID) {
		if e.matchTriggerEventTriggers(rule, ev) {
			e.evaluate(ctx, rule, now, ev.DeviceID, ev, snapshot)
		}
	}
}

// ProcessSensorReading updates the sensor cache and evaluates every
// rule with a matching SensorReading trigger (§4.5.1).
func (e *Engine) ProcessSensorReading(ctx context.Context, reading models.SensorReading, snapshot *models.PipelineSnapshot) {
	oldValue, hadOld := e.cache.setSensor(reading.DeviceID, reading.Metric, reading.Value)
	var oldPtr *float64
	if hadOld {
		oldPtr = &oldValue
	}
	now := e.clock.Now()
	for _, rule := range e.candidateRules(ctx, reading.DeviceID) {
		if e.matchSensorReadingTriggers(rule, reading, oldPtr) {
			e.evaluate(ctx, rule, now, reading.DeviceID, models.SensorReadingChange{Reading: reading, OldValue: oldPtr}, snapshot)
		}
	}
}

// Tick evaluates every rule with a matching Time trigger; invoked
// every 30 seconds by the scheduler (§4.5.1, §5).
func (e *Engine) Tick(ctx context.Context) {
	now := e.clock.Now()
	for _, rule := range e.snapshotRules() {
		if e.matchTimeTriggers(rule, now) {
			e.evaluate(ctx, rule, now, "", nil, nil)
		}
	}
}

// candidateRules narrows the rule set to those referencing deviceID via
// the Redis-backed index, falling back to the full set if the index is
// unavailable or has no entry for the device (§5, "bounded worker pool
// decouples ingestion").
func (e *Engine) candidateRules(ctx context.Context, deviceID string) []models.AutomationRule {
	if e.ruleIndex == nil {
		return e.snapshotRules()
	}
	ids, err := e.ruleIndex.RulesForDevice(ctx, deviceID)
	if err != nil {
		e.logger.Warn("rule index lookup failed, falling back to full scan", zap.Error(err))
		return e.snapshotRules()
	}
	if len(ids) == 0 {
		return e.snapshotRules()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.AutomationRule, 0, len(ids))
	for _, id := range ids {
		if r, ok := e.rulesByID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// evaluate runs the cooldown gate, condition gate, and action execution
// for one rule that matched a stimulus, then persists the execution log
// and emits live-log entries at each phase (§4.5.3-§4.5.6).
func (e *Engine) evaluate(ctx context.Context, rule models.AutomationRule, now time.Time, triggerDeviceID string, stimulus interface{}, snapshot *models.PipelineSnapshot) {
	ruleID := rule.ID.String()
	e.logLive(ruleID, models.PhaseTriggerMatched, models.LiveLogInfo, fmt.Sprintf("rule %q matched a stimulus", rule.Name), pipelineDetails(snapshot), nil)

	var trackingID string
	if triggerDeviceID != "" && e.e2eTracker != nil {
		trackingID = e.e2eTracker.StartTracking(triggerDeviceID, rule.Name, e.primaryTargetDevice(rule), snapshot)
	}

	if until, active := e.cooldownActive(rule.ID, now); active {
		e.logLive(ruleID, models.PhaseCooldownActive, models.LiveLogDebug, fmt.Sprintf("cooldown active until %s", until.Format(time.RFC3339)), nil, nil)
		e.recordExecution(ctx, rule, models.ExecutionStatusSkippedCooldown, stimulus, nil, now, false, nil)
		return
	}

	e.logLive(ruleID, models.PhaseConditionEvaluating, models.LiveLogDebug, "evaluating conditions", nil, nil)
	if !e.evaluateConditions(ctx, rule, now) {
		e.logLive(ruleID, models.PhaseConditionFailed, models.LiveLogInfo, "conditions not satisfied", nil, nil)
		e.recordExecution(ctx, rule, models.ExecutionStatusSkippedCondition, stimulus, nil, now, false, nil)
		return
	}
	e.logLive(ruleID, models.PhaseConditionPassed, models.LiveLogDebug, "conditions satisfied", nil, nil)

	lookupElapsed := e.clock.Now().Sub(now).Milliseconds()
	if trackingID != "" {
		e.e2eTracker.RecordAutomationLookup(trackingID, lookupElapsed)
	}

	actionsStarted := e.clock.Now()
	e.logLive(ruleID, models.PhaseActionExecuting, models.LiveLogInfo, fmt.Sprintf("executing %d action(s)", len(rule.Actions)), nil, nil)
	results := e.executeActions(ctx, rule, rule.Actions)
	actionsElapsed := e.clock.Now().Sub(actionsStarted).Milliseconds()

	if trackingID != "" {
		e.e2eTracker.RecordActionExecution(trackingID, actionsElapsed, e.primaryTargetDevice(rule))
	}

	status := models.ExecutionStatusSuccess
	failures, successes := 0, 0
	for _, r := range results {
		if r.Success {
			successes++
		} else {
			failures++
		}
	}
	switch {
	case failures > 0 && successes > 0:
		status = models.ExecutionStatusPartialFailure
	case failures > 0 && successes == 0:
		status = models.ExecutionStatusFailure
	}

	switch status {
	case models.ExecutionStatusFailure:
		e.logLive(ruleID, models.PhaseExecutionFailed, models.LiveLogError, fmt.Sprintf("execution finished: %s", status), nil, nil)
	case models.ExecutionStatusPartialFailure:
		e.logLive(ruleID, models.PhaseExecutionCompleted, models.LiveLogWarning, fmt.Sprintf("execution finished: %s", status), nil, nil)
	default:
		e.logLive(ruleID, models.PhaseExecutionCompleted, models.LiveLogSuccess, fmt.Sprintf("execution finished: %s", status), nil, nil)
	}
	e.setCooldown(rule.ID, now, rule.CooldownSeconds)
	e.recordExecution(ctx, rule, status, stimulus, results, now, true, nil)
}

// pipelineDetails surfaces the parse/persist/broadcast durations
// SignalsService measured before handing off to the engine (§4.2 step 5).
func pipelineDetails(snapshot *models.PipelineSnapshot) map[string]interface{} {
	if snapshot == nil {
		return nil
	}
	return map[string]interface{}{
		"parseMs":     snapshot.ParseDur.Milliseconds(),
		"persistMs":   snapshot.PersistDur.Milliseconds(),
		"broadcastMs": snapshot.BroadcastDur.Milliseconds(),
	}
}

func (e *Engine) primaryTargetDevice(rule models.AutomationRule) string {
	for _, a := range rule.Actions {
		if a.DeviceID != nil {
			return *a.DeviceID
		}
	}
	return ""
}

func (e *Engine) cooldownActive(ruleID uuid.UUID, now time.Time) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	until, ok := e.cooldownEnd[ruleID]
	if !ok {
		return time.Time{}, false
	}
	return until, now.Before(until)
}

func (e *Engine) setCooldown(ruleID uuid.UUID, now time.Time, seconds int) {
	if seconds <= 0 {
		return
	}
	e.mu.Lock()
	e.cooldownEnd[ruleID] = now.Add(time.Duration(seconds) * time.Second)
	e.mu.Unlock()
}

func (e *Engine) recordExecution(ctx context.Context, rule models.AutomationRule, status models.ExecutionStatus, stimulus interface{}, results []models.ActionResult, now time.Time, bumpCounters bool, errMsg *string) {
	log := models.AutomationExecutionLog{
		ID:            uuid.New(),
		RuleID:        rule.ID,
		ExecutedAt:    now,
		Status:        status,
		TriggerSource: encodeStimulus(stimulus),
		ActionResults: results,
		DurationMs:    e.clock.Now().Sub(now).Milliseconds(),
		ErrorMessage:  errMsg,
	}
	if err := e.rules.RecordExecution(ctx, log, bumpCounters, now); err != nil {
		e.logger.Error("recording execution log", zap.String("ruleId", rule.ID.String()), zap.Error(err))
	}
}

func (e *Engine) logLive(ruleID string, phase models.LivePhase, level models.LiveLogLevel, message string, details map[string]interface{}, durationMs *int64) {
	if e.broadcaster == nil {
		return
	}
	entry := models.LiveLogEntry{
		RuleID:     &ruleID,
		Phase:      phase,
		Level:      level,
		Message:    message,
		Details:    details,
		DurationMs: durationMs,
		Timestamp:  e.clock.Now(),
	}
	e.broadcaster.BroadcastAutomationLog(context.Background(), entry)
}

func zapStr(key, value string) zap.Field {
	return zap.String(key, value)
}

// encodeStimulus captures whatever fired an evaluation as the execution
// log's TriggerSource, best-effort (§3 AutomationExecutionLog).
func encodeStimulus(stimulus interface{}) json.RawMessage {
	if stimulus == nil {
		return nil
	}
	b, err := json.Marshal(stimulus)
	if err != nil {
		return nil
	}
	return b
}
