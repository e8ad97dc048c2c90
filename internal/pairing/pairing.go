// Package pairing translates <base>/bridge/event and
// <base>/bridge/response/permit_join broker traffic into a
// user-observable DevicePairingProgress state machine (§4.7).
package pairing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"sdhome/internal/broadcaster"
	"sdhome/internal/clock"
	"sdhome/internal/models"
)

type bridgeEventData struct {
	FriendlyName string `json:"friendly_name"`
	IEEEAddress  string `json:"ieee_address"`
	ModelID      string `json:"modelID"`
	Status       string `json:"status"` // device_interview.status
}

type bridgeEvent struct {
	Type string           `json:"type"`
	Data bridgeEventData  `json:"data"`
}

type permitJoinResponse struct {
	Data struct {
		Value bool `json:"value"`
		Time  int  `json:"time"`
	} `json:"data"`
}

// window is the mutable state of one active pairing session.
type window struct {
	id         string
	state      models.PairingState
	total      int
	discovered []models.DiscoveredDevice
	current    string
	startedAt  time.Time
}

// Machine is the §4.7 pairing state machine. It holds at most one
// active window at a time (a permit_join session), consistent with a
// single broker's pairing mode being either on or off.
type Machine struct {
	mu          sync.Mutex
	active      *window
	broadcaster broadcaster.Broadcaster
	clock       clock.Clock
	logger      *zap.Logger
}

// New builds a Machine.
func New(bc broadcaster.Broadcaster, clk clock.Clock, logger *zap.Logger) *Machine {
	return &Machine{broadcaster: bc, clock: clk, logger: logger.Named("pairing")}
}

// HandleBridgeEvent processes one <base>/bridge/event payload.
func (m *Machine) HandleBridgeEvent(ctx context.Context, payload []byte) {
	var ev bridgeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		m.logger.Debug("discarding malformed bridge event", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case "device_joined":
		if m.active == nil {
			return
		}
		m.active.current = ev.Data.FriendlyName
		m.active.state = models.PairingInterviewing
		m.addDiscovered(ev.Data, models.DiscoveredInterviewing)
		m.emit(ctx, "device joined, interviewing")

	case "device_interview":
		if m.active == nil {
			return
		}
		switch ev.Data.Status {
		case "started":
			m.active.state = models.PairingInterviewing
			m.addDiscovered(ev.Data, models.DiscoveredInterviewing)
			m.emit(ctx, "interview started")
		case "successful":
			m.active.state = models.PairingDevicePaired
			m.updateDiscoveredStatus(ev.Data.IEEEAddress, models.DiscoveredReady)
			m.emit(ctx, "device paired")
			m.active.state = models.PairingActive
		case "failed":
			m.active.state = models.PairingActive
			m.updateDiscoveredStatus(ev.Data.IEEEAddress, models.DiscoveredFailed)
			m.emit(ctx, "interview failed")
		}

	case "device_announce":
		if m.active == nil {
			return
		}
		m.emit(ctx, "device announced")
	}
}

// HandlePermitJoinResponse processes one
// <base>/bridge/response/permit_join payload.
func (m *Machine) HandlePermitJoinResponse(ctx context.Context, payload []byte) {
	var resp permitJoinResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		m.logger.Debug("discarding malformed permit_join response", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if resp.Data.Value {
		m.active = &window{
			id:        newTrackingID(m.clock.Now()),
			state:     models.PairingStarting,
			total:     resp.Data.Time,
			startedAt: m.clock.Now(),
		}
		m.emit(ctx, "pairing window opened")
		m.active.state = models.PairingActive
		m.emit(ctx, "pairing window active")
		return
	}

	if m.active == nil {
		return
	}
	m.active.state = models.PairingStopping
	m.emit(ctx, "pairing window closing")
	m.active.state = models.PairingEnded
	m.emit(ctx, "pairing window ended")
	m.active = nil
}

// Tick emits a CountdownTick snapshot while a window is active; called
// once per second by the caller for the duration of a pairing window.
func (m *Machine) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.state == models.PairingStopping || m.active.state == models.PairingEnded {
		return
	}
	elapsed := int(m.clock.Now().Sub(m.active.startedAt).Seconds())
	remaining := m.active.total - elapsed
	if remaining <= 0 {
		m.active.state = models.PairingEnded
		m.emit(ctx, "pairing window expired")
		m.active = nil
		return
	}
	m.active.state = models.PairingCountdownTick
	m.emit(ctx, "")
	m.active.state = models.PairingActive
}

// Fail transitions the active window (if any) to Failed, a terminal
// error transition reachable from any state (§4.7).
func (m *Machine) Fail(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.active.state = models.PairingFailed
	m.emit(ctx, reason)
	m.active = nil
}

func (m *Machine) addDiscovered(data bridgeEventData, status models.DiscoveredDeviceStatus) {
	for i, d := range m.active.discovered {
		if d.IEEEAddress == data.IEEEAddress {
			m.active.discovered[i].Status = status
			m.active.discovered[i].SeenAt = m.clock.Now()
			return
		}
	}
	m.active.discovered = append(m.active.discovered, models.DiscoveredDevice{
		IEEEAddress:  data.IEEEAddress,
		FriendlyName: data.FriendlyName,
		ModelID:      data.ModelID,
		Status:       status,
		SeenAt:       m.clock.Now(),
	})
}

func (m *Machine) updateDiscoveredStatus(ieeeAddress string, status models.DiscoveredDeviceStatus) {
	for i, d := range m.active.discovered {
		if d.IEEEAddress == ieeeAddress {
			m.active.discovered[i].Status = status
			m.active.discovered[i].SeenAt = m.clock.Now()
			return
		}
	}
}

func (m *Machine) emit(ctx context.Context, message string) {
	if m.active == nil || m.broadcaster == nil {
		return
	}
	elapsed := int(m.clock.Now().Sub(m.active.startedAt).Seconds())
	remaining := m.active.total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	m.broadcaster.BroadcastDevicePairingProgress(ctx, models.DevicePairingProgress{
		ID:               m.active.id,
		Status:           m.active.state,
		Message:          message,
		RemainingSeconds: remaining,
		TotalSeconds:     m.active.total,
		CurrentDevice:    m.active.current,
		Discovered:       append([]models.DiscoveredDevice(nil), m.active.discovered...),
		Timestamp:        m.clock.Now(),
	})
}

func newTrackingID(now time.Time) string {
	return "pairing-" + now.Format("20060102T150405.000000000")
}
