package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sdhome/internal/models"
)

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device
	var deviceType *string
	var capsRaw, attrsRaw []byte
	err := row.Scan(
		&d.DeviceID, &d.FriendlyName, &d.DisplayName, &d.IEEEAddress, &d.ModelID,
		&d.Manufacturer, &d.Description, &d.PowerSource, &deviceType, &d.ZoneID,
		&capsRaw, &attrsRaw, &d.LastSeen, &d.IsAvailable, &d.LinkQuality)
	if err != nil {
		return nil, err
	}
	if deviceType != nil {
		dt := models.DeviceType(*deviceType)
		d.DeviceType = &dt
	}
	if len(capsRaw) > 0 {
		if err := json.Unmarshal(capsRaw, &d.Capabilities); err != nil {
			return nil, fmt.Errorf("postgres: decoding capabilities: %w", err)
		}
	}
	if len(attrsRaw) > 0 {
		if err := json.Unmarshal(attrsRaw, &d.Attributes); err != nil {
			return nil, fmt.Errorf("postgres: decoding attributes: %w", err)
		}
	}
	if d.Attributes == nil {
		d.Attributes = map[string]interface{}{}
	}
	return &d, nil
}

const deviceColumns = `device_id, friendly_name, display_name, ieee_address, model_id,
	manufacturer, description, power_source, device_type, zone_id,
	capabilities, attributes, last_seen, is_available, link_quality`

// GetDevice fetches a Device by its primary key.
func (s *Store) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+deviceColumns+" FROM devices WHERE device_id = $1", deviceID)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting device %q: %w", deviceID, err)
	}
	return d, nil
}

// GetDeviceByFriendlyName fetches a Device by its friendly name, used
// by the state-sync worker when a topic segment doesn't match a
// device_id directly (§4.4).
func (s *Store) GetDeviceByFriendlyName(ctx context.Context, friendlyName string) (*models.Device, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+deviceColumns+" FROM devices WHERE friendly_name = $1", friendlyName)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting device by friendly name %q: %w", friendlyName, err)
	}
	return d, nil
}

// ListDevices returns every known device.
func (s *Store) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+deviceColumns+" FROM devices")
	if err != nil {
		return nil, fmt.Errorf("postgres: listing devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning device: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpsertDevice creates or last-writer-wins-updates a Device row (§3
// Device invariants: "attributes is last-writer-wins per property").
func (s *Store) UpsertDevice(ctx context.Context, d models.Device) error {
	capsRaw, err := json.Marshal(d.Capabilities)
	if err != nil {
		return fmt.Errorf("postgres: encoding capabilities: %w", err)
	}
	attrsRaw, err := json.Marshal(d.Attributes)
	if err != nil {
		return fmt.Errorf("postgres: encoding attributes: %w", err)
	}
	var deviceType *string
	if d.DeviceType != nil {
		s := string(*d.DeviceType)
		deviceType = &s
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO devices
			(device_id, friendly_name, display_name, ieee_address, model_id, manufacturer,
			 description, power_source, device_type, zone_id, capabilities, attributes,
			 last_seen, is_available, link_quality)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (device_id) DO UPDATE SET
			friendly_name = EXCLUDED.friendly_name,
			display_name = EXCLUDED.display_name,
			ieee_address = EXCLUDED.ieee_address,
			model_id = EXCLUDED.model_id,
			manufacturer = EXCLUDED.manufacturer,
			description = EXCLUDED.description,
			power_source = EXCLUDED.power_source,
			device_type = EXCLUDED.device_type,
			zone_id = EXCLUDED.zone_id,
			capabilities = EXCLUDED.capabilities,
			attributes = EXCLUDED.attributes,
			last_seen = EXCLUDED.last_seen,
			is_available = EXCLUDED.is_available,
			link_quality = EXCLUDED.link_quality`,
		d.DeviceID, d.FriendlyName, d.DisplayName, d.IEEEAddress, d.ModelID, d.Manufacturer,
		d.Description, d.PowerSource, deviceType, d.ZoneID, capsRaw, attrsRaw,
		d.LastSeen, d.IsAvailable, d.LinkQuality)
	if err != nil {
		return fmt.Errorf("postgres: upserting device %q: %w", d.DeviceID, err)
	}
	return nil
}
