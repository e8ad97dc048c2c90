package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sdhome/internal/models"
)

func scanZone(row pgx.Row) (*models.Zone, error) {
	var z models.Zone
	if err := row.Scan(&z.ID, &z.Name, &z.ParentZoneID, &z.Icon, &z.Color, &z.SortOrder); err != nil {
		return nil, err
	}
	return &z, nil
}

const zoneColumns = `id, name, parent_zone_id, icon, color, sort_order`

// GetZone fetches a Zone by id.
func (s *Store) GetZone(ctx context.Context, id int) (*models.Zone, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+zoneColumns+" FROM zones WHERE id = $1", id)
	z, err := scanZone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting zone %d: %w", id, err)
	}
	return z, nil
}

// ListZones returns the whole tree, flat, ordered by sort order.
func (s *Store) ListZones(ctx context.Context) ([]models.Zone, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+zoneColumns+" FROM zones ORDER BY sort_order")
	if err != nil {
		return nil, fmt.Errorf("postgres: listing zones: %w", err)
	}
	defer rows.Close()

	var out []models.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning zone: %w", err)
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

// CreateZone inserts a new zone, rejecting a parent that would create a
// cycle (§3 Zone invariant: "a zone cannot have itself as ancestor").
func (s *Store) CreateZone(ctx context.Context, z models.Zone) (int, error) {
	if z.ParentZoneID != nil {
		if err := s.assertNoCycle(ctx, 0, *z.ParentZoneID); err != nil {
			return 0, err
		}
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO zones (name, parent_zone_id, icon, color, sort_order)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		z.Name, z.ParentZoneID, z.Icon, z.Color, z.SortOrder).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: creating zone: %w", err)
	}
	return id, nil
}

// UpdateZone updates a zone's fields, rejecting a re-parent that would
// create a cycle.
func (s *Store) UpdateZone(ctx context.Context, z models.Zone) error {
	if z.ParentZoneID != nil {
		if err := s.assertNoCycle(ctx, z.ID, *z.ParentZoneID); err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE zones SET name=$1, parent_zone_id=$2, icon=$3, color=$4, sort_order=$5
		WHERE id=$6`, z.Name, z.ParentZoneID, z.Icon, z.Color, z.SortOrder, z.ID)
	if err != nil {
		return fmt.Errorf("postgres: updating zone %d: %w", z.ID, err)
	}
	return nil
}

// assertNoCycle walks up from candidateParent to the root, failing if
// it ever reaches zoneID (or if zoneID == candidateParent).
func (s *Store) assertNoCycle(ctx context.Context, zoneID, candidateParent int) error {
	current := candidateParent
	for {
		if current == zoneID {
			return fmt.Errorf("postgres: zone %d cannot be its own ancestor", zoneID)
		}
		var parent *int
		err := s.pool.QueryRow(ctx, "SELECT parent_zone_id FROM zones WHERE id = $1", current).Scan(&parent)
		if errors.Is(err, pgx.ErrNoRows) || parent == nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("postgres: walking zone ancestry: %w", err)
		}
		current = *parent
	}
}

// DeleteZone removes a zone. Its direct children re-parent to the
// deleted zone's own parent when reparentToGrandparent is true, or
// become roots otherwise; deeper descendants stay under those children
// (§3 Zone lifecycle).
func (s *Store) DeleteZone(ctx context.Context, id int, reparentToGrandparent bool) error {
	var grandparent *int
	if reparentToGrandparent {
		if err := s.pool.QueryRow(ctx, "SELECT parent_zone_id FROM zones WHERE id = $1", id).Scan(&grandparent); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("postgres: reading zone %d before delete: %w", id, err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin delete-zone tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "UPDATE zones SET parent_zone_id = $1 WHERE parent_zone_id = $2", grandparent, id); err != nil {
		return fmt.Errorf("postgres: reparenting zone children of %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM zones WHERE id = $1", id); err != nil {
		return fmt.Errorf("postgres: deleting zone %d: %w", id, err)
	}
	return tx.Commit(ctx)
}
