package rntmodels

import "time"

// DeviceLiveness buckets controller devices by heartbeat staleness.
type DeviceLiveness string

const (
	DeviceConnected DeviceLiveness = "connected"
	DeviceStale     DeviceLiveness = "stale"
	DeviceOffline   DeviceLiveness = "offline"
)

// Device is a controller device known to the registry. Owned exclusively
// by the Device Registry; everything here is a process-local cache
// rebuilt from heartbeats after a restart.
type Device struct {
	ChipID            string    `json:"chip_id"`
	IP                string    `json:"ip,omitempty"`
	RSSI              int       `json:"rssi,omitempty"`
	SystemReady       bool      `json:"system_ready"`
	IsStarted         bool      `json:"is_started"`
	AssignedMachineID string    `json:"assigned_machine_id,omitempty"`
	AssignedRentalID  string    `json:"assigned_rental_id,omitempty"`
	LastHeartbeatAt   time.Time `json:"last_heartbeat_at"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	LastReportStatus  string    `json:"last_report_status,omitempty"`
	LastReportMessage string    `json:"last_report_message,omitempty"`
	LastReportAt      time.Time `json:"last_report_at,omitempty"`
}

// Assigned reports whether the device is bound to a machine.
func (d *Device) Assigned() bool {
	return d.AssignedMachineID != ""
}
