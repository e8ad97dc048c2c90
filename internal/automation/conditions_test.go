package automation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sdhome/internal/models"
)

func TestEvaluateTimeRange_SpansMidnight(t *testing.T) {
	start, end := "22:00", "06:00"
	cond := models.AutomationCondition{TimeStart: &start, TimeEnd: &end}

	loc := time.UTC
	assert.True(t, evaluateTimeRange(cond, time.Date(2026, 1, 1, 23, 30, 0, 0, loc)))
	assert.True(t, evaluateTimeRange(cond, time.Date(2026, 1, 1, 3, 0, 0, 0, loc)))
	assert.False(t, evaluateTimeRange(cond, time.Date(2026, 1, 1, 12, 0, 0, 0, loc)))
}

func TestEvaluateTimeRange_SameDay(t *testing.T) {
	start, end := "08:00", "17:00"
	cond := models.AutomationCondition{TimeStart: &start, TimeEnd: &end}
	loc := time.UTC

	assert.True(t, evaluateTimeRange(cond, time.Date(2026, 1, 1, 12, 0, 0, 0, loc)))
	assert.False(t, evaluateTimeRange(cond, time.Date(2026, 1, 1, 20, 0, 0, 0, loc)))
}

func TestParseHHMM(t *testing.T) {
	m, ok := parseHHMM("06:30")
	assert.True(t, ok)
	assert.Equal(t, 6*60+30, m)

	_, ok = parseHHMM("25:00")
	assert.False(t, ok)

	_, ok = parseHHMM("not-a-time")
	assert.False(t, ok)
}

func TestEngine_EvaluateCondition_AndOr(t *testing.T) {
	e := &Engine{cache: newCache()}
	e.cache.setState("light-1", "state", "ON")

	opEq := models.OpEquals
	deviceID := "light-1"
	property := "state"
	leaf := models.AutomationCondition{
		ConditionType: models.ConditionTypeDeviceState,
		DeviceID:      &deviceID,
		Property:      &property,
		Operator:      &opEq,
		Value:         raw("ON"),
	}
	and := models.AutomationCondition{
		ConditionType: models.ConditionTypeAnd,
		Children:      []models.AutomationCondition{leaf, leaf},
	}
	assert.True(t, e.evaluateCondition(context.Background(), and, time.Now()))

	opNe := models.OpEquals
	failing := leaf
	failing.Operator = &opNe
	failing.Value = raw("OFF")
	andFail := models.AutomationCondition{
		ConditionType: models.ConditionTypeAnd,
		Children:      []models.AutomationCondition{leaf, failing},
	}
	assert.False(t, e.evaluateCondition(context.Background(), andFail, time.Now()))

	or := models.AutomationCondition{
		ConditionType: models.ConditionTypeOr,
		Children:      []models.AutomationCondition{failing, leaf},
	}
	assert.True(t, e.evaluateCondition(context.Background(), or, time.Now()))
}

func TestEngine_EvaluateConditions_ConditionMode(t *testing.T) {
	e := &Engine{cache: newCache()}
	e.cache.setState("light-1", "state", "ON")

	opEq := models.OpEquals
	deviceID := "light-1"
	property := "state"
	holds := models.AutomationCondition{
		ConditionType: models.ConditionTypeDeviceState,
		DeviceID:      &deviceID, Property: &property, Operator: &opEq, Value: raw("ON"),
	}
	failsOp := models.OpEquals
	fails := holds
	fails.Operator = &failsOp
	fails.Value = raw("OFF")

	all := models.AutomationRule{ConditionMode: models.ConditionModeAll, Conditions: []models.AutomationCondition{holds, fails}}
	assert.False(t, e.evaluateConditions(context.Background(), all, time.Now()))

	any := models.AutomationRule{ConditionMode: models.ConditionModeAny, Conditions: []models.AutomationCondition{holds, fails}}
	assert.True(t, e.evaluateConditions(context.Background(), any, time.Now()))

	none := models.AutomationRule{}
	assert.True(t, e.evaluateConditions(context.Background(), none, time.Now()))
}

func TestEvaluateCondition_DayOfWeek(t *testing.T) {
	e := &Engine{cache: newCache()}
	cond := models.AutomationCondition{
		ConditionType: models.ConditionTypeDayOfWeek,
		DaysOfWeek:    []time.Weekday{time.Monday, time.Tuesday},
	}
	assert.True(t, e.evaluateCondition(context.Background(), cond, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))) // a Monday
	assert.False(t, e.evaluateCondition(context.Background(), cond, time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC))) // a Wednesday
}

func TestEvaluateCondition_TimeRangeIsMemoizedInRedisFor60Seconds(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	e := &Engine{cache: newCache(), redis: client, logger: zap.NewNop()}

	start, end := "08:00", "17:00"
	cond := models.AutomationCondition{
		ConditionType: models.ConditionTypeTimeRange,
		TimeStart:     &start, TimeEnd: &end,
	}
	ctx := context.Background()
	inWindow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, e.evaluateCondition(ctx, cond, inWindow))

	key := "time:range:08:00-17:00"
	require.True(t, mr.Exists(key))
	ttl := mr.TTL(key)
	assert.True(t, ttl > 0 && ttl <= 60*time.Second)

	// Force the cached entry to a stale value and confirm the cache,
	// not a fresh computation, is what the next call returns.
	require.NoError(t, mr.Set(key, "0"))
	assert.False(t, e.evaluateCondition(ctx, cond, inWindow))
}
