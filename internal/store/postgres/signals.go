package postgres

import (
	"context"
	"fmt"
	"time"

	"sdhome/internal/models"
	"sdhome/internal/store"
)

// InsertSignalEvent persists the causal anchor row. Callers must do
// this before persisting anything that references its ID (§8 invariant 1).
func (s *Store) InsertSignalEvent(ctx context.Context, event models.SignalEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO signal_events
			(id, timestamp, source, device_id, capability, event_type, event_sub_type,
			 value, raw_topic, raw_payload, device_kind, event_category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		event.ID, event.Timestamp, event.Source, event.DeviceID, event.Capability,
		event.EventType, event.EventSubType, event.Value, event.RawTopic,
		event.RawPayload, string(event.DeviceKind), string(event.EventCategory))
	if err != nil {
		return fmt.Errorf("postgres: inserting signal_event: %w", err)
	}
	return nil
}

// InsertSensorReadings persists zero or more derived readings for one signal.
func (s *Store) InsertSensorReadings(ctx context.Context, readings []models.SensorReading) error {
	if len(readings) == 0 {
		return nil
	}
	batch := make([][]interface{}, 0, len(readings))
	for _, r := range readings {
		batch = append(batch, []interface{}{r.ID, r.SignalEventID, r.Timestamp, r.DeviceID, r.Metric, r.Value, r.Unit})
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin sensor_readings tx: %w", err)
	}
	defer tx.Rollback(ctx)
	for _, row := range batch {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sensor_readings (id, signal_event_id, timestamp, device_id, metric, value, unit)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`, row...); err != nil {
			return fmt.Errorf("postgres: inserting sensor_reading: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit sensor_readings tx: %w", err)
	}
	return nil
}

// InsertTriggerEvent persists the single derived trigger for one signal, if any.
func (s *Store) InsertTriggerEvent(ctx context.Context, event models.TriggerEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trigger_events
			(id, signal_event_id, timestamp, device_id, capability, trigger_type, trigger_sub_type, value)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		event.ID, event.SignalEventID, event.Timestamp, event.DeviceID,
		event.Capability, string(event.TriggerType), event.TriggerSubType, event.Value)
	if err != nil {
		return fmt.Errorf("postgres: inserting trigger_event: %w", err)
	}
	return nil
}

// RecentPayloadsByDevice loads recent raw payloads for cache warm-up
// (§4.5, "initialized on startup by scanning recent persisted signal
// payloads (look-back window ≈ 24 h)").
func (s *Store) RecentPayloadsByDevice(ctx context.Context, since time.Time) (map[string][]store.RawSignal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT timestamp, device_id, capability, event_type, raw_payload
		FROM signal_events
		WHERE timestamp >= $1
		ORDER BY device_id, timestamp ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying recent payloads: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]store.RawSignal)
	for rows.Next() {
		var rs store.RawSignal
		if err := rows.Scan(&rs.Timestamp, &rs.DeviceID, &rs.Capability, &rs.EventType, &rs.RawPayload); err != nil {
			return nil, fmt.Errorf("postgres: scanning recent payload: %w", err)
		}
		out[rs.DeviceID] = append(out[rs.DeviceID], rs)
	}
	return out, rows.Err()
}
