package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sdhome/internal/models"
)

// executeActions runs rule.Actions in sortOrder, timing each
// independently and never aborting on a single failure (§4.5.5).
func (e *Engine) executeActions(ctx context.Context, rule models.AutomationRule, actions []models.AutomationAction) []models.ActionResult {
	results := make([]models.ActionResult, 0, len(actions))
	for _, action := range actions {
		started := e.clock.Now()
		err := e.executeAction(ctx, action)
		elapsed := e.clock.Now().Sub(started).Milliseconds()

		result := models.ActionResult{ActionID: action.ID, Success: err == nil, DurationMs: elapsed}
		if err != nil {
			msg := err.Error()
			result.Error = &msg
			e.logLive(rule.ID.String(), models.PhaseActionFailed, models.LiveLogError, fmt.Sprintf("action %s failed: %v", action.ActionType, err), nil, &elapsed)
		} else {
			e.logLive(rule.ID.String(), models.PhaseActionCompleted, models.LiveLogSuccess, fmt.Sprintf("action %s completed", action.ActionType), nil, &elapsed)
		}
		results = append(results, result)
	}
	return results
}

func (e *Engine) executeAction(ctx context.Context, action models.AutomationAction) error {
	switch action.ActionType {
	case models.ActionTypeSetDeviceState:
		return e.actionSetDeviceState(action)

	case models.ActionTypeToggleDevice:
		return e.actionToggleDevice(action)

	case models.ActionTypeDelay:
		return e.actionDelay(ctx, action)

	case models.ActionTypeWebhook:
		return e.actionWebhook(ctx, action)

	case models.ActionTypeActivateScene:
		return e.actionActivateScene(ctx, action)

	case models.ActionTypeNotification:
		e.logger.Info("notification action",
			zapStr("title", derefStr(action.NotificationTitle)),
			zapStr("message", derefStr(action.NotificationMessage)))
		return nil

	case models.ActionTypeRunAutomation:
		// §4.5.5 / Open Question decision: treated as a no-op that logs.
		e.logger.Info("run_automation action is a no-op", zapStr("target", derefUUID(action.SceneID)))
		return nil
	}
	return fmt.Errorf("unknown action type %q", action.ActionType)
}

func (e *Engine) actionSetDeviceState(action models.AutomationAction) error {
	if action.DeviceID == nil || action.Property == nil {
		return fmt.Errorf("set_device_state requires deviceId and property")
	}
	value := decodeJSON(action.Value)
	if err := e.publisher.PublishSet(*action.DeviceID, *action.Property, value); err != nil {
		return err
	}
	e.cache.setState(*action.DeviceID, *action.Property, value)
	return nil
}

func (e *Engine) actionToggleDevice(action models.AutomationAction) error {
	if action.DeviceID == nil || action.Property == nil {
		return fmt.Errorf("toggle_device requires deviceId and property")
	}
	current, ok := e.cache.getState(*action.DeviceID, *action.Property)
	var next string
	switch {
	case !ok:
		next = "ON" // §8 boundary case: no cached value defaults to "ON"
	case boolVal(current) != nil:
		if *boolVal(current) {
			next = "OFF"
		} else {
			next = "ON"
		}
	case strings.EqualFold(normalizedString(current), "ON"):
		next = "OFF"
	default:
		next = "ON"
	}
	if err := e.publisher.PublishSet(*action.DeviceID, *action.Property, next); err != nil {
		return err
	}
	e.cache.setState(*action.DeviceID, *action.Property, next)
	return nil
}

func boolVal(v interface{}) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func (e *Engine) actionDelay(ctx context.Context, action models.AutomationAction) error {
	if action.DelaySeconds == nil || *action.DelaySeconds <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(*action.DelaySeconds) * time.Second):
		return nil
	}
}

func (e *Engine) actionWebhook(ctx context.Context, action models.AutomationAction) error {
	if action.WebhookURL == nil {
		return fmt.Errorf("webhook action requires a URL")
	}
	method := "POST"
	if action.WebhookMethod != nil && *action.WebhookMethod != "" {
		method = *action.WebhookMethod
	}
	return e.webhook.Call(ctx, *action.WebhookURL, method, action.WebhookBody)
}

// actionActivateScene applies every (deviceId, property→value) pair in
// the scene, attempting each exactly once regardless of individual
// failures (§8 invariant 7).
func (e *Engine) actionActivateScene(ctx context.Context, action models.AutomationAction) error {
	if action.SceneID == nil {
		return fmt.Errorf("activate_scene requires a sceneId")
	}
	scene, err := e.scenes.GetScene(ctx, *action.SceneID)
	if err != nil {
		return fmt.Errorf("loading scene: %w", err)
	}
	if scene == nil {
		return fmt.Errorf("scene %s not found", *action.SceneID)
	}

	var failures []string
	for deviceID, props := range scene.DeviceStates {
		for property, value := range props {
			if err := e.publisher.PublishSet(deviceID, property, value); err != nil {
				failures = append(failures, fmt.Sprintf("%s.%s: %v", deviceID, property, err))
				continue
			}
			e.cache.setState(deviceID, property, value)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("scene %s: %d device(s) failed: %s", scene.Name, len(failures), strings.Join(failures, "; "))
	}
	return nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefUUID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
