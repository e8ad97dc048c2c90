package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sdhome/internal/models"
)

func scanScene(row pgx.Row) (*models.Scene, error) {
	var sc models.Scene
	var statesRaw []byte
	if err := row.Scan(&sc.ID, &sc.Name, &statesRaw); err != nil {
		return nil, err
	}
	if len(statesRaw) > 0 {
		if err := json.Unmarshal(statesRaw, &sc.DeviceStates); err != nil {
			return nil, fmt.Errorf("decoding device_states: %w", err)
		}
	}
	if sc.DeviceStates == nil {
		sc.DeviceStates = map[string]map[string]interface{}{}
	}
	return &sc, nil
}

// GetScene fetches a Scene by id.
func (s *Store) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	row := s.pool.QueryRow(ctx, "SELECT id, name, device_states FROM scenes WHERE id = $1", id)
	sc, err := scanScene(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting scene %s: %w", id, err)
	}
	return sc, nil
}

// ListScenes returns every scene.
func (s *Store) ListScenes(ctx context.Context) ([]models.Scene, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, device_states FROM scenes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("postgres: listing scenes: %w", err)
	}
	defer rows.Close()

	var out []models.Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning scene: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// UpsertScene creates or fully replaces a scene's device states.
func (s *Store) UpsertScene(ctx context.Context, sc models.Scene) error {
	statesRaw, err := json.Marshal(sc.DeviceStates)
	if err != nil {
		return fmt.Errorf("postgres: encoding device_states: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO scenes (id, name, device_states)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, device_states = EXCLUDED.device_states`,
		sc.ID, sc.Name, statesRaw)
	if err != nil {
		return fmt.Errorf("postgres: upserting scene %s: %w", sc.ID, err)
	}
	return nil
}

// DeleteScene removes a scene. Actions referencing it via SceneID are
// left to fail at execution time with a "scene not found" ActionResult
// rather than being cascade-deleted (§3: actions belong to their rule,
// not to the scene they reference).
func (s *Store) DeleteScene(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM scenes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: deleting scene %s: %w", id, err)
	}
	return nil
}
