package automation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sdhome/internal/models"
)

const timeConditionCacheTTL = 60 * time.Second

// evaluateConditions combines rule.Conditions per conditionMode
// (§4.5.4): All -> AND, Any -> OR, zero conditions -> true.
func (e *Engine) evaluateConditions(ctx context.Context, rule models.AutomationRule, now time.Time) bool {
	if len(rule.Conditions) == 0 {
		return true
	}
	results := make([]bool, len(rule.Conditions))
	for i, c := range rule.Conditions {
		results[i] = e.evaluateCondition(ctx, c, now)
	}
	if rule.ConditionMode == models.ConditionModeAny {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// evaluateCondition recursively evaluates one condition node (§4.5.4).
func (e *Engine) evaluateCondition(ctx context.Context, c models.AutomationCondition, now time.Time) bool {
	switch c.ConditionType {
	case models.ConditionTypeAnd:
		for _, child := range c.Children {
			if !e.evaluateCondition(ctx, child, now) {
				return false
			}
		}
		return true

	case models.ConditionTypeOr:
		if len(c.Children) == 0 {
			return true
		}
		for _, child := range c.Children {
			if e.evaluateCondition(ctx, child, now) {
				return true
			}
		}
		return false

	case models.ConditionTypeDeviceState:
		if c.DeviceID == nil || c.Property == nil || c.Operator == nil {
			return false
		}
		current, ok := e.cache.getState(*c.DeviceID, *c.Property)
		if !ok {
			return false
		}
		return compareScalar(*c.Operator, current, c.Value, c.Value2)

	case models.ConditionTypeTimeRange:
		if c.TimeStart == nil || c.TimeEnd == nil {
			return false
		}
		key := fmt.Sprintf("time:range:%s-%s", *c.TimeStart, *c.TimeEnd)
		return e.cachedTimeCondition(ctx, key, func() bool { return evaluateTimeRange(c, now) })

	case models.ConditionTypeDayOfWeek:
		if len(c.DaysOfWeek) == 0 {
			return true
		}
		key := fmt.Sprintf("time:dow:%s", dayOfWeekKey(c.DaysOfWeek, now))
		return e.cachedTimeCondition(ctx, key, func() bool {
			for _, d := range c.DaysOfWeek {
				if d == now.Weekday() {
					return true
				}
			}
			return false
		})

	case models.ConditionTypeSunPosition:
		return e.evaluateSunPosition(c, now)
	}
	return false
}

// cachedTimeCondition memoizes the outcome of a TimeRange/DayOfWeek
// condition in Redis under a 60s TTL, carrying forward the teacher's
// `time:<op>:<value>` evaluator cache (§5). A missing or unreachable
// Redis client falls back to computing fresh every call.
func (e *Engine) cachedTimeCondition(ctx context.Context, key string, compute func() bool) bool {
	if e.redis == nil {
		return compute()
	}
	if cached, err := e.redis.Get(ctx, key).Result(); err == nil {
		return cached == "1"
	} else if err != redis.Nil {
		e.logger.Debug("time-condition cache read failed, computing fresh", zap.String("key", key), zap.Error(err))
	}

	result := compute()
	val := "0"
	if result {
		val = "1"
	}
	if err := e.redis.Set(ctx, key, val, timeConditionCacheTTL).Err(); err != nil {
		e.logger.Debug("time-condition cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result
}

// dayOfWeekKey renders a DayOfWeek condition's day set plus the
// current calendar date into a stable cache key component; it does not
// depend on the time of day. Because the date is part of the key, a new
// day is always computed afresh; within a day each cached answer lasts
// for the 60s TTL.
func dayOfWeekKey(days []time.Weekday, now time.Time) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",") + ":" + now.Format("2006-01-02")
}

// evaluateTimeRange treats end<start as an overnight range crossing
// midnight (§4.5.4, §8 boundary case).
func evaluateTimeRange(c models.AutomationCondition, now time.Time) bool {
	if c.TimeStart == nil || c.TimeEnd == nil {
		return false
	}
	start, ok1 := parseHHMM(*c.TimeStart)
	end, ok2 := parseHHMM(*c.TimeEnd)
	if !ok1 || !ok2 {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if end < start {
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

func parseHHMM(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func (e *Engine) evaluateSunPosition(c models.AutomationCondition, now time.Time) bool {
	if e.sun == nil {
		return false
	}
	times := e.sun.Current()
	isDay := now.After(times.Sunrise) && now.Before(times.Sunset)
	expected := normalizedString(decodeJSON(c.Value)) == "day"
	if c.Operator != nil && *c.Operator == models.OpNotEquals {
		return isDay != expected
	}
	return isDay == expected
}
