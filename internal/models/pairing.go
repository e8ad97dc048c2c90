package models

import "time"

// PairingState is a state in the §4.7 pairing state machine.
type PairingState string

const (
	PairingStarting      PairingState = "Starting"
	PairingActive        PairingState = "Active"
	PairingInterviewing  PairingState = "Interviewing"
	PairingDevicePaired  PairingState = "DevicePaired"
	PairingCountdownTick PairingState = "CountdownTick"
	PairingStopping      PairingState = "Stopping"
	PairingEnded         PairingState = "Ended"
	PairingFailed        PairingState = "Failed"
)

// DiscoveredDeviceStatus describes one device seen during a pairing window.
type DiscoveredDeviceStatus string

const (
	DiscoveredInterviewing DiscoveredDeviceStatus = "Interviewing"
	DiscoveredReady        DiscoveredDeviceStatus = "Ready"
	DiscoveredFailed       DiscoveredDeviceStatus = "Failed"
)

// DiscoveredDevice is one device that joined during an active pairing window.
type DiscoveredDevice struct {
	IEEEAddress string                 `json:"ieeeAddress"`
	FriendlyName string                `json:"friendlyName,omitempty"`
	ModelID     string                 `json:"modelId,omitempty"`
	Status      DiscoveredDeviceStatus `json:"status"`
	SeenAt      time.Time              `json:"seenAt"`
}

// DevicePairingProgress is one snapshot of a pairing window's state,
// broadcast to the UI layer for the duration of the window (§4.7).
type DevicePairingProgress struct {
	ID               string             `json:"id"`
	Status           PairingState       `json:"status"`
	Message          string             `json:"message,omitempty"`
	RemainingSeconds int                `json:"remainingSeconds"`
	TotalSeconds     int                `json:"totalSeconds"`
	CurrentDevice    string             `json:"currentDevice,omitempty"`
	Discovered       []DiscoveredDevice `json:"discovered"`
	Timestamp        time.Time          `json:"timestamp"`
}
