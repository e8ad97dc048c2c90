// Package ruleindex maintains a Redis-backed device→rules reverse
// index, adapted from the teacher's populateDeviceRuleAssociations
// (SADD/SMEMBERS/DEL over device:<id>:rules keys). It only ever
// accelerates the automation matcher (§4.5.1); callers fall back to a
// full rule scan on a miss, so the index is never a second source of
// truth.
package ruleindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sdhome/internal/models"
)

const keyPrefix = "device:"
const keySuffix = ":rules"

// Index wraps a redis.Client with the device→rules set operations.
type Index struct {
	redis  *redis.Client
	logger *zap.Logger
}

// New builds an Index over an existing redis client.
func New(redisClient *redis.Client, logger *zap.Logger) *Index {
	return &Index{redis: redisClient, logger: logger.Named("ruleindex")}
}

func deviceKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s", keyPrefix, deviceID, keySuffix)
}

// Rebuild clears and repopulates the whole index from the given rule
// set (§4.5.1 matcher accelerator).
func (idx *Index) Rebuild(ctx context.Context, rules []models.AutomationRule) error {
	keys, err := idx.redis.Keys(ctx, keyPrefix+"*"+keySuffix).Result()
	if err != nil {
		return fmt.Errorf("ruleindex: listing keys: %w", err)
	}
	if len(keys) > 0 {
		if err := idx.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("ruleindex: clearing index: %w", err)
		}
	}

	for _, rule := range rules {
		if !rule.IsEnabled {
			continue
		}
		for _, deviceID := range deviceIDsForRule(rule) {
			if err := idx.redis.SAdd(ctx, deviceKey(deviceID), rule.ID.String()).Err(); err != nil {
				idx.logger.Warn("indexing rule for device failed", zap.String("device", deviceID), zap.String("rule", rule.ID.String()), zap.Error(err))
			}
		}
	}
	return nil
}

// RulesForDevice returns the rule ids indexed against deviceID. An
// empty, error-free result means "no rules currently indexed"; callers
// that need certainty on a cold or inconsistent index should fall back
// to a full scan.
func (idx *Index) RulesForDevice(ctx context.Context, deviceID string) ([]uuid.UUID, error) {
	members, err := idx.redis.SMembers(ctx, deviceKey(deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("ruleindex: reading index for %s: %w", deviceID, err)
	}
	out := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// deviceIDsForRule collects every distinct deviceId referenced by a
// rule's triggers, conditions (recursively through Children), and
// actions.
func deviceIDsForRule(rule models.AutomationRule) []string {
	seen := make(map[string]bool)
	for _, t := range rule.Triggers {
		if t.DeviceID != nil {
			seen[*t.DeviceID] = true
		}
	}
	for _, c := range rule.Conditions {
		collectConditionDevices(c, seen)
	}
	for _, a := range rule.Actions {
		if a.DeviceID != nil {
			seen[*a.DeviceID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

func collectConditionDevices(c models.AutomationCondition, seen map[string]bool) {
	if c.DeviceID != nil {
		seen[*c.DeviceID] = true
	}
	for _, child := range c.Children {
		collectConditionDevices(child, seen)
	}
}
