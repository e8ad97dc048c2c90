// Package store defines the persistence ports the core depends on
// (Design Notes: "replace [the] ambient EF-style DbContext with
// explicit repository ports taking a unit-of-work per request"). Each
// of SignalsService, Projection, AutomationEngine, and StateSync opens
// its own scope against these interfaces; none hold a shared context
// across goroutines.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sdhome/internal/models"
)

// SignalStore persists SignalEvents and their derived projections.
// Persistence precedes broadcast and automation evaluation for a given
// event (§4.2 Ordering, §8 invariant 1).
type SignalStore interface {
	InsertSignalEvent(ctx context.Context, event models.SignalEvent) error
	InsertSensorReadings(ctx context.Context, readings []models.SensorReading) error
	InsertTriggerEvent(ctx context.Context, event models.TriggerEvent) error

	// RecentPayloadsByDevice returns, for every device, its most recent
	// signal payloads within the lookback window — used by the
	// automation engine to warm its device-state/sensor-reading caches
	// on startup (§4.5, "State it owns").
	RecentPayloadsByDevice(ctx context.Context, since time.Time) (map[string][]RawSignal, error)
}

// RawSignal is a minimal projection of a persisted SignalEvent used
// only for cache warm-up.
type RawSignal struct {
	Timestamp  time.Time
	DeviceID   string
	Capability string
	EventType  string
	RawPayload []byte
}

// DeviceStore persists Device rows.
type DeviceStore interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	GetDeviceByFriendlyName(ctx context.Context, friendlyName string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	UpsertDevice(ctx context.Context, device models.Device) error
}

// ZoneStore persists the Zone tree.
type ZoneStore interface {
	GetZone(ctx context.Context, id int) (*models.Zone, error)
	ListZones(ctx context.Context) ([]models.Zone, error)
	CreateZone(ctx context.Context, zone models.Zone) (int, error)
	UpdateZone(ctx context.Context, zone models.Zone) error
	// DeleteZone removes a zone. If reparentToGrandparent is true,
	// direct children are re-parented to the deleted zone's parent;
	// otherwise they become roots (§3 Zone lifecycle).
	DeleteZone(ctx context.Context, id int, reparentToGrandparent bool) error
}

// RuleStore persists AutomationRules and their owned children, plus
// execution logs (cascade-deleted with the rule, per §3 Ownership).
type RuleStore interface {
	GetRule(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)
	ListEnabledRules(ctx context.Context) ([]models.AutomationRule, error)
	ListAllRules(ctx context.Context) ([]models.AutomationRule, error)
	CreateRule(ctx context.Context, rule models.AutomationRule) error
	UpdateRule(ctx context.Context, rule models.AutomationRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	// RecordExecution persists an execution log row and, for
	// non-cooldown-skip outcomes, atomically bumps ExecutionCount and
	// LastTriggeredAt on the owning rule (§4.5.5, §8 invariant 4).
	RecordExecution(ctx context.Context, log models.AutomationExecutionLog, bumpCounters bool, triggeredAt time.Time) error
}

// SceneStore persists Scenes.
type SceneStore interface {
	GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error)
	ListScenes(ctx context.Context) ([]models.Scene, error)
	UpsertScene(ctx context.Context, scene models.Scene) error
	DeleteScene(ctx context.Context, id uuid.UUID) error
}

// Store aggregates every persistence port the core needs. Components
// take the narrowest interface above that satisfies their needs;
// Store exists only for wiring convenience in cmd/engine.
type Store interface {
	SignalStore
	DeviceStore
	ZoneStore
	RuleStore
	SceneStore
}
