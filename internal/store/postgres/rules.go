package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sdhome/internal/models"
)

// GetRule fetches one rule with its ordered triggers, conditions, and actions.
func (s *Store) GetRule(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	rule, err := s.scanRuleRow(ctx, "WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}
	if err := s.hydrateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListEnabledRules returns every rule with isEnabled=true, hydrated.
func (s *Store) ListEnabledRules(ctx context.Context) ([]models.AutomationRule, error) {
	return s.listRules(ctx, "WHERE is_enabled = true")
}

// ListAllRules returns every rule, hydrated.
func (s *Store) ListAllRules(ctx context.Context) ([]models.AutomationRule, error) {
	return s.listRules(ctx, "")
}

func (s *Store) listRules(ctx context.Context, where string) ([]models.AutomationRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, is_enabled, trigger_mode, condition_mode, cooldown_seconds,
		       last_triggered_at, execution_count
		FROM automation_rules `+where)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing rules: %w", err)
	}
	var rules []models.AutomationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scanning rule: %w", err)
		}
		rules = append(rules, *r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rules {
		if err := s.hydrateRule(ctx, &rules[i]); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func scanRule(row pgx.Row) (*models.AutomationRule, error) {
	var r models.AutomationRule
	var triggerMode, conditionMode string
	if err := row.Scan(&r.ID, &r.Name, &r.IsEnabled, &triggerMode, &conditionMode,
		&r.CooldownSeconds, &r.LastTriggeredAt, &r.ExecutionCount); err != nil {
		return nil, err
	}
	r.TriggerMode = models.TriggerMode(triggerMode)
	r.ConditionMode = models.ConditionMode(conditionMode)
	return &r, nil
}

func (s *Store) scanRuleRow(ctx context.Context, where string, args ...interface{}) (*models.AutomationRule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, is_enabled, trigger_mode, condition_mode, cooldown_seconds,
		       last_triggered_at, execution_count
		FROM automation_rules `+where, args...)
	r, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting rule: %w", err)
	}
	return r, nil
}

func (s *Store) hydrateRule(ctx context.Context, r *models.AutomationRule) error {
	triggers, err := s.loadTriggers(ctx, r.ID)
	if err != nil {
		return err
	}
	conditions, err := s.loadConditions(ctx, r.ID)
	if err != nil {
		return err
	}
	actions, err := s.loadActions(ctx, r.ID)
	if err != nil {
		return err
	}
	r.Triggers, r.Conditions, r.Actions = triggers, conditions, actions
	return nil
}

func (s *Store) loadTriggers(ctx context.Context, ruleID uuid.UUID) ([]models.AutomationTrigger, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, trigger_type, device_id, property, operator, value,
		       time_expression, sun_event, offset_minutes, sort_order
		FROM automation_triggers WHERE rule_id = $1 ORDER BY sort_order`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: loading triggers for rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	var out []models.AutomationTrigger
	for rows.Next() {
		var t models.AutomationTrigger
		var triggerType string
		var operator *string
		if err := rows.Scan(&t.ID, &t.RuleID, &triggerType, &t.DeviceID, &t.Property,
			&operator, &t.Value, &t.TimeExpression, &t.SunEvent, &t.OffsetMinutes, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("postgres: scanning trigger: %w", err)
		}
		t.TriggerType = models.AutomationTriggerType(triggerType)
		if operator != nil {
			op := models.Operator(*operator)
			t.Operator = &op
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) loadConditions(ctx context.Context, ruleID uuid.UUID) ([]models.AutomationCondition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, condition_type, device_id, property, operator, value, value2,
		       time_start, time_end, days_of_week, children, sort_order
		FROM automation_conditions WHERE rule_id = $1 ORDER BY sort_order`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: loading conditions for rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	var out []models.AutomationCondition
	for rows.Next() {
		c, err := scanConditionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning condition: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanConditionRow(row pgx.Row) (*models.AutomationCondition, error) {
	var c models.AutomationCondition
	var conditionType string
	var operator *string
	var daysRaw, childrenRaw []byte
	if err := row.Scan(&c.ID, &c.RuleID, &conditionType, &c.DeviceID, &c.Property,
		&operator, &c.Value, &c.Value2, &c.TimeStart, &c.TimeEnd, &daysRaw, &childrenRaw, &c.SortOrder); err != nil {
		return nil, err
	}
	c.ConditionType = models.AutomationConditionType(conditionType)
	if operator != nil {
		op := models.Operator(*operator)
		c.Operator = &op
	}
	if len(daysRaw) > 0 {
		if err := json.Unmarshal(daysRaw, &c.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("decoding days_of_week: %w", err)
		}
	}
	if len(childrenRaw) > 0 {
		if err := json.Unmarshal(childrenRaw, &c.Children); err != nil {
			return nil, fmt.Errorf("decoding children: %w", err)
		}
	}
	return &c, nil
}

func (s *Store) loadActions(ctx context.Context, ruleID uuid.UUID) ([]models.AutomationAction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, action_type, device_id, property, value, delay_seconds,
		       webhook_url, webhook_method, webhook_body, notification_title,
		       notification_message, scene_id, sort_order
		FROM automation_actions WHERE rule_id = $1 ORDER BY sort_order`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: loading actions for rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	var out []models.AutomationAction
	for rows.Next() {
		var a models.AutomationAction
		var actionType string
		if err := rows.Scan(&a.ID, &a.RuleID, &actionType, &a.DeviceID, &a.Property, &a.Value,
			&a.DelaySeconds, &a.WebhookURL, &a.WebhookMethod, &a.WebhookBody,
			&a.NotificationTitle, &a.NotificationMessage, &a.SceneID, &a.SortOrder); err != nil {
			return nil, fmt.Errorf("postgres: scanning action: %w", err)
		}
		a.ActionType = models.AutomationActionType(actionType)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateRule persists a rule and its owned children in one transaction.
func (s *Store) CreateRule(ctx context.Context, r models.AutomationRule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create-rule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO automation_rules
			(id, name, is_enabled, trigger_mode, condition_mode, cooldown_seconds,
			 last_triggered_at, execution_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.Name, r.IsEnabled, string(r.TriggerMode), string(r.ConditionMode),
		r.CooldownSeconds, r.LastTriggeredAt, r.ExecutionCount); err != nil {
		return fmt.Errorf("postgres: inserting rule: %w", err)
	}

	if err := insertChildren(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateRule replaces a rule's own fields and its owned children.
func (s *Store) UpdateRule(ctx context.Context, r models.AutomationRule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin update-rule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE automation_rules SET name=$1, is_enabled=$2, trigger_mode=$3,
			condition_mode=$4, cooldown_seconds=$5 WHERE id=$6`,
		r.Name, r.IsEnabled, string(r.TriggerMode), string(r.ConditionMode), r.CooldownSeconds, r.ID); err != nil {
		return fmt.Errorf("postgres: updating rule: %w", err)
	}
	for _, table := range []string{"automation_triggers", "automation_conditions", "automation_actions"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE rule_id = $1", r.ID); err != nil {
			return fmt.Errorf("postgres: clearing %s for rule %s: %w", table, r.ID, err)
		}
	}
	if err := insertChildren(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertChildren(ctx context.Context, tx pgx.Tx, r models.AutomationRule) error {
	for _, t := range r.Triggers {
		var operator *string
		if t.Operator != nil {
			op := string(*t.Operator)
			operator = &op
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO automation_triggers
				(id, rule_id, trigger_type, device_id, property, operator, value,
				 time_expression, sun_event, offset_minutes, sort_order)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			t.ID, r.ID, string(t.TriggerType), t.DeviceID, t.Property, operator, t.Value,
			t.TimeExpression, t.SunEvent, t.OffsetMinutes, t.SortOrder); err != nil {
			return fmt.Errorf("postgres: inserting trigger: %w", err)
		}
	}
	for _, c := range r.Conditions {
		if err := insertCondition(ctx, tx, r.ID, c); err != nil {
			return err
		}
	}
	for _, a := range r.Actions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO automation_actions
				(id, rule_id, action_type, device_id, property, value, delay_seconds,
				 webhook_url, webhook_method, webhook_body, notification_title,
				 notification_message, scene_id, sort_order)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			a.ID, r.ID, string(a.ActionType), a.DeviceID, a.Property, a.Value, a.DelaySeconds,
			a.WebhookURL, a.WebhookMethod, a.WebhookBody, a.NotificationTitle,
			a.NotificationMessage, a.SceneID, a.SortOrder); err != nil {
			return fmt.Errorf("postgres: inserting action: %w", err)
		}
	}
	return nil
}

func insertCondition(ctx context.Context, tx pgx.Tx, ruleID uuid.UUID, c models.AutomationCondition) error {
	var operator *string
	if c.Operator != nil {
		op := string(*c.Operator)
		operator = &op
	}
	daysRaw, err := json.Marshal(c.DaysOfWeek)
	if err != nil {
		return fmt.Errorf("postgres: encoding days_of_week: %w", err)
	}
	childrenRaw, err := json.Marshal(c.Children)
	if err != nil {
		return fmt.Errorf("postgres: encoding children: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO automation_conditions
			(id, rule_id, condition_type, device_id, property, operator, value, value2,
			 time_start, time_end, days_of_week, children, sort_order)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, ruleID, string(c.ConditionType), c.DeviceID, c.Property, operator, c.Value, c.Value2,
		c.TimeStart, c.TimeEnd, daysRaw, childrenRaw, c.SortOrder)
	if err != nil {
		return fmt.Errorf("postgres: inserting condition: %w", err)
	}
	return nil
}

// DeleteRule removes a rule; its child tables cascade via FK (§3 Ownership).
func (s *Store) DeleteRule(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM automation_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: deleting rule %s: %w", id, err)
	}
	return nil
}

// RecordExecution appends an execution log row and, when bumpCounters
// is true, atomically advances the rule's ExecutionCount/LastTriggeredAt
// (§3 AutomationRule invariant: "execution count is monotonically
// increasing"; §8 invariant 4).
func (s *Store) RecordExecution(ctx context.Context, log models.AutomationExecutionLog, bumpCounters bool, triggeredAt time.Time) error {
	resultsRaw, err := json.Marshal(log.ActionResults)
	if err != nil {
		return fmt.Errorf("postgres: encoding action_results: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin record-execution tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO automation_execution_logs
			(id, rule_id, executed_at, status, trigger_source, action_results, duration_ms, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		log.ID, log.RuleID, log.ExecutedAt, string(log.Status), log.TriggerSource,
		resultsRaw, log.DurationMs, log.ErrorMessage); err != nil {
		return fmt.Errorf("postgres: inserting execution log: %w", err)
	}

	if bumpCounters {
		if _, err := tx.Exec(ctx, `
			UPDATE automation_rules
			SET execution_count = execution_count + 1, last_triggered_at = $1
			WHERE id = $2`, triggeredAt, log.RuleID); err != nil {
			return fmt.Errorf("postgres: bumping rule counters: %w", err)
		}
	}
	return tx.Commit(ctx)
}
