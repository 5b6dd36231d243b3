package rntmodels

// Typed variants for the pub/sub messages exchanged with controller
// devices. Each topic kind is parsed and validated once at the boundary
// before dispatch.

// Heartbeat is the periodic liveness signal from a controller device on
// device/{chipId}/heartbeat.
type Heartbeat struct {
	ChipID      string `json:"-"`
	MachineID   string `json:"machineId,omitempty"`
	RentalID    string `json:"rentalId,omitempty"`
	IsStarted   bool   `json:"isStarted"`
	SystemReady bool   `json:"systemReady"`
	IP          string `json:"ip,omitempty"`
	RSSI        int    `json:"rssi,omitempty"`
}

// ConnectionStatus is an online/offline transition on
// device/{chipId}/connection.
type ConnectionStatus struct {
	ChipID      string `json:"-"`
	Status      string `json:"status"` // online | offline
	SystemReady bool   `json:"systemReady"`
	IP          string `json:"ip,omitempty"`
	RSSI        int    `json:"rssi,omitempty"`
}

// CommandReport is a device acknowledgement of a start/stop command on
// device/{chipId}/report. Used only for observability, never for
// session state.
type CommandReport struct {
	ChipID    string `json:"-"`
	MachineID string `json:"machineId"`
	RentalID  string `json:"rentalId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// SensorData is one telemetry sample on sensor/{sensorId}/data.
type SensorData struct {
	SensorID   string  `json:"sensorId"`
	MachineID  string  `json:"machineId"`
	RentalID   string  `json:"rentalId,omitempty"`
	SensorType string  `json:"sensorType"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Timestamp  int64   `json:"timestamp,omitempty"`
}

// Command actions published to device/{chipId}/config.
const (
	ActionStartRental  = "startRental"
	ActionStopRental   = "stopRental"
	ActionUpdateRental = "updateRental"
)

// SensorConfig tells the device how to sample while a rental runs.
type SensorConfig struct {
	ReadIntervalMillis int `json:"readInterval"`
}

// CommandEnvelope is the coordinator-to-device command payload.
type CommandEnvelope struct {
	Action       string        `json:"action"`
	MachineID    string        `json:"machineId"`
	RentalID     string        `json:"rentalId"`
	Timestamp    int64         `json:"timestamp"`
	ScheduledEnd int64         `json:"scheduledEnd,omitempty"`
	SensorConfig *SensorConfig `json:"sensorConfig,omitempty"`
}
