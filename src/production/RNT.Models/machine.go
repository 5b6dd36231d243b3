package rntmodels

import "time"

// MachineStatus is the catalog availability of a machine.
type MachineStatus string

const (
	MachineAvailable   MachineStatus = "available"
	MachineMaintenance MachineStatus = "maintenance"
	MachineInactive    MachineStatus = "inactive"
)

// Machine is a rentable physical machine fitted with a controller device.
type Machine struct {
	ID     string        `json:"id" db:"id"`
	Name   string        `json:"name" db:"name"`
	Type   string        `json:"type" db:"type"`
	Model  string        `json:"model" db:"model"`
	Status MachineStatus `json:"status" db:"status"`

	// AutoShutdown enables the emergency shutdown path when a critical
	// severity is observed on this machine.
	AutoShutdown bool `json:"auto_shutdown" db:"auto_shutdown"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LiveStatus is the latest reading per (machine, sensor type). It is
// overwritten on every new reading, distinct from the append-only
// reading log.
type LiveStatus struct {
	MachineID  string    `json:"machine_id" db:"machine_id"`
	SensorType string    `json:"sensor_type" db:"sensor_type"`
	Value      float64   `json:"value" db:"value"`
	Unit       string    `json:"unit" db:"unit"`
	Severity   Severity  `json:"severity" db:"severity"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
