package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sdhome/internal/clock"
	"sdhome/internal/models"
	"sdhome/internal/store"
)

type fakeRuleStore struct {
	rules      map[uuid.UUID]models.AutomationRule
	executions []models.AutomationExecutionLog
}

func newFakeRuleStore(rules ...models.AutomationRule) *fakeRuleStore {
	f := &fakeRuleStore{rules: make(map[uuid.UUID]models.AutomationRule)}
	for _, r := range rules {
		f.rules[r.ID] = r
	}
	return f
}

func (f *fakeRuleStore) GetRule(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	r, ok := f.rules[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
func (f *fakeRuleStore) ListEnabledRules(ctx context.Context) ([]models.AutomationRule, error) {
	var out []models.AutomationRule
	for _, r := range f.rules {
		if r.IsEnabled {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeRuleStore) ListAllRules(ctx context.Context) ([]models.AutomationRule, error) {
	var out []models.AutomationRule
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out, nil
}
func (f *fakeRuleStore) CreateRule(ctx context.Context, rule models.AutomationRule) error { return nil }
func (f *fakeRuleStore) UpdateRule(ctx context.Context, rule models.AutomationRule) error { return nil }
func (f *fakeRuleStore) DeleteRule(ctx context.Context, id uuid.UUID) error                { return nil }
func (f *fakeRuleStore) RecordExecution(ctx context.Context, log models.AutomationExecutionLog, bumpCounters bool, triggeredAt time.Time) error {
	f.executions = append(f.executions, log)
	if bumpCounters {
		r := f.rules[log.RuleID]
		r.ExecutionCount++
		r.LastTriggeredAt = &triggeredAt
		f.rules[log.RuleID] = r
	}
	return nil
}

type fakeSceneStore struct{}

func (fakeSceneStore) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) { return nil, nil }
func (fakeSceneStore) ListScenes(ctx context.Context) ([]models.Scene, error)              { return nil, nil }
func (fakeSceneStore) UpsertScene(ctx context.Context, scene models.Scene) error           { return nil }
func (fakeSceneStore) DeleteScene(ctx context.Context, id uuid.UUID) error                 { return nil }

type fakeSignalStoreForEngine struct{}

func (fakeSignalStoreForEngine) InsertSignalEvent(ctx context.Context, event models.SignalEvent) error {
	return nil
}
func (fakeSignalStoreForEngine) InsertSensorReadings(ctx context.Context, readings []models.SensorReading) error {
	return nil
}
func (fakeSignalStoreForEngine) InsertTriggerEvent(ctx context.Context, event models.TriggerEvent) error {
	return nil
}
func (fakeSignalStoreForEngine) RecentPayloadsByDevice(ctx context.Context, since time.Time) (map[string][]store.RawSignal, error) {
	return nil, nil
}

type fakeLiveLogBroadcaster struct {
	entries []models.LiveLogEntry
}

func (f *fakeLiveLogBroadcaster) BroadcastSignalEvent(ctx context.Context, event models.SignalEvent)      {}
func (f *fakeLiveLogBroadcaster) BroadcastSensorReading(ctx context.Context, reading models.SensorReading) {}
func (f *fakeLiveLogBroadcaster) BroadcastTriggerEvent(ctx context.Context, event models.TriggerEvent)     {}
func (f *fakeLiveLogBroadcaster) BroadcastDeviceStateUpdate(ctx context.Context, device models.Device)     {}
func (f *fakeLiveLogBroadcaster) BroadcastAutomationLog(ctx context.Context, entry models.LiveLogEntry) {
	f.entries = append(f.entries, entry)
}
func (f *fakeLiveLogBroadcaster) BroadcastPipelineTimeline(ctx context.Context, timeline models.PipelineTimeline) {
}
func (f *fakeLiveLogBroadcaster) BroadcastDeviceSyncProgress(ctx context.Context, deviceID string, changed []string) {
}
func (f *fakeLiveLogBroadcaster) BroadcastDevicePairingProgress(ctx context.Context, progress models.DevicePairingProgress) {
}

func (f *fakeLiveLogBroadcaster) last() models.LiveLogEntry {
	return f.entries[len(f.entries)-1]
}

func deviceStateRule(deviceID, property string) models.AutomationRule {
	return models.AutomationRule{
		ID:            uuid.New(),
		Name:          "turn on hallway light",
		IsEnabled:     true,
		TriggerMode:   models.TriggerModeAny,
		ConditionMode: models.ConditionModeAll,
		Triggers: []models.AutomationTrigger{
			{TriggerType: models.AutomationTriggerDeviceState, DeviceID: &deviceID, Property: &property, Operator: opPtr(models.OpAnyChange)},
		},
	}
}

func opPtr(o models.Operator) *models.Operator { return &o }

func newTestEngine(t *testing.T, rules *fakeRuleStore, clk clock.Clock) *Engine {
	e, err := New(context.Background(), rules, fakeSceneStore{}, fakeSignalStoreForEngine{}, nil, nil, nil, nil, nil, nil, nil, clk, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestEngine_ProcessDeviceStateChange_MatchesAndRecordsSuccess(t *testing.T) {
	rule := deviceStateRule("light-1", "state")
	rules := newFakeRuleStore(rule)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := newTestEngine(t, rules, clk)

	e.ProcessDeviceStateChange(context.Background(), "light-1", "state", "ON", nil)

	require.Len(t, rules.executions, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, rules.executions[0].Status)
	assert.Equal(t, rule.ID, rules.executions[0].RuleID)
}

func TestEngine_ProcessDeviceStateChange_NoChangeDoesNotEvaluate(t *testing.T) {
	rule := deviceStateRule("light-1", "state")
	rules := newFakeRuleStore(rule)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := newTestEngine(t, rules, clk)

	e.ProcessDeviceStateChange(context.Background(), "light-1", "state", "ON", nil)
	require.Len(t, rules.executions, 1)

	e.ProcessDeviceStateChange(context.Background(), "light-1", "state", "ON", nil)
	assert.Len(t, rules.executions, 1)
}

func TestEngine_ProcessDeviceStateChange_CooldownSkipsSecondEvaluation(t *testing.T) {
	rule := deviceStateRule("light-1", "state")
	rule.CooldownSeconds = 60
	rules := newFakeRuleStore(rule)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := newTestEngine(t, rules, clk)

	e.ProcessDeviceStateChange(context.Background(), "light-1", "state", "ON", nil)
	require.Len(t, rules.executions, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, rules.executions[0].Status)

	e.ProcessDeviceStateChange(context.Background(), "light-1", "state", "OFF", nil)
	require.Len(t, rules.executions, 2)
	assert.Equal(t, models.ExecutionStatusSkippedCooldown, rules.executions[1].Status)
}

func TestEngine_ProcessDeviceStateChange_FailedActionLogsExecutionFailed(t *testing.T) {
	rule := deviceStateRule("light-1", "state")
	rule.Actions = []models.AutomationAction{
		{ID: uuid.New(), ActionType: models.ActionTypeSetDeviceState}, // missing DeviceID/Property: always errors
	}
	rules := newFakeRuleStore(rule)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e, err := New(context.Background(), rules, fakeSceneStore{}, fakeSignalStoreForEngine{}, nil, nil, nil, nil, &fakeLiveLogBroadcaster{}, nil, nil, clk, zap.NewNop())
	require.NoError(t, err)
	bc := e.broadcaster.(*fakeLiveLogBroadcaster)

	e.ProcessDeviceStateChange(context.Background(), "light-1", "state", "ON", nil)

	require.Len(t, rules.executions, 1)
	assert.Equal(t, models.ExecutionStatusFailure, rules.executions[0].Status)

	last := bc.last()
	assert.Equal(t, models.PhaseExecutionFailed, last.Phase)
	assert.Equal(t, models.LiveLogError, last.Level)
}

func TestEngine_ProcessTriggerEvent_MatchesButtonTrigger(t *testing.T) {
	deviceID := "button-1"
	property := string(models.TriggerTypeButton)
	sub := "single"
	rule := models.AutomationRule{
		ID:            uuid.New(),
		Name:          "button press",
		IsEnabled:     true,
		TriggerMode:   models.TriggerModeAny,
		ConditionMode: models.ConditionModeAll,
		Triggers: []models.AutomationTrigger{
			{TriggerType: models.AutomationTriggerTriggerEvent, DeviceID: &deviceID, Property: &property, Value: raw(sub)},
		},
	}
	rules := newFakeRuleStore(rule)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := newTestEngine(t, rules, clk)

	e.ProcessTriggerEvent(context.Background(), models.TriggerEvent{
		DeviceID: "button-1", TriggerType: models.TriggerTypeButton, TriggerSubType: &sub,
	}, nil)

	require.Len(t, rules.executions, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, rules.executions[0].Status)
}

func TestEngine_Tick_EvaluatesTimeTriggerWithinWindow(t *testing.T) {
	expr := "00:00"
	rule := models.AutomationRule{
		ID:            uuid.New(),
		Name:          "midnight rule",
		IsEnabled:     true,
		TriggerMode:   models.TriggerModeAny,
		ConditionMode: models.ConditionModeAll,
		Triggers: []models.AutomationTrigger{
			{TriggerType: models.AutomationTriggerTime, TimeExpression: &expr},
		},
	}
	rules := newFakeRuleStore(rule)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC))
	e := newTestEngine(t, rules, clk)

	e.Tick(context.Background())

	require.Len(t, rules.executions, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, rules.executions[0].Status)
}

func TestEngine_ReloadRules_RefreshesEnabledSet(t *testing.T) {
	rule := deviceStateRule("light-1", "state")
	rules := newFakeRuleStore(rule)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e := newTestEngine(t, rules, clk)

	require.Len(t, e.snapshotRules(), 1)

	disabled := rule
	disabled.IsEnabled = false
	rules.rules[rule.ID] = disabled

	require.NoError(t, e.ReloadRules(context.Background()))
	assert.Empty(t, e.snapshotRules())
}
