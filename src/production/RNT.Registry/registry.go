package registry

import (
	"sort"
	"sync"
	"time"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// Registry is the in-memory directory of known controller devices and
// their liveness/assignment state. It is a process-local cache: after a
// restart it starts empty and re-learns bindings from the next
// heartbeat. It never mutates rental sessions; session status stays
// authoritative in the session store.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*rntmodels.Device

	connectedWindow time.Duration
	staleWindow     time.Duration

	logger *logger.Logger

	// now is swappable for tests
	now func() time.Time
}

func New(cfg config.RegistryConfig, log *logger.Logger) *Registry {
	return &Registry{
		devices:         make(map[string]*rntmodels.Device),
		connectedWindow: cfg.ConnectedWindow,
		staleWindow:     cfg.StaleWindow,
		logger:          log.WithComponent("registry"),
		now:             time.Now,
	}
}

// RecordHeartbeat upserts a device from a heartbeat message.
func (r *Registry) RecordHeartbeat(hb rntmodels.Heartbeat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	device := r.devices[hb.ChipID]
	if device == nil {
		device = &rntmodels.Device{ChipID: hb.ChipID}
		r.devices[hb.ChipID] = device
	}

	device.LastHeartbeatAt = now
	device.LastSeenAt = now
	device.SystemReady = hb.SystemReady
	device.IsStarted = hb.IsStarted
	if hb.IP != "" {
		device.IP = hb.IP
	}
	if hb.RSSI != 0 {
		device.RSSI = hb.RSSI
	}

	// A heartbeat carrying a machineId re-learns a binding lost on
	// restart.
	if hb.MachineID != "" && hb.IsStarted {
		device.AssignedMachineID = hb.MachineID
		device.AssignedRentalID = hb.RentalID
	}
}

// RecordConnectionStatus upserts a device from a connection message. On
// transition to offline the device's assignment is released; the rental
// session itself is left untouched for operator recovery.
func (r *Registry) RecordConnectionStatus(cs rntmodels.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	device := r.devices[cs.ChipID]
	if device == nil {
		device = &rntmodels.Device{ChipID: cs.ChipID}
		r.devices[cs.ChipID] = device
	}

	device.LastSeenAt = now
	if cs.IP != "" {
		device.IP = cs.IP
	}
	if cs.RSSI != 0 {
		device.RSSI = cs.RSSI
	}

	if cs.Status == "online" {
		device.SystemReady = cs.SystemReady
		device.LastHeartbeatAt = now
		return
	}

	device.SystemReady = false
	device.IsStarted = false
	if device.Assigned() {
		r.logger.Warn("device went offline while assigned to machine " + device.AssignedMachineID)
		device.AssignedMachineID = ""
		device.AssignedRentalID = ""
	}
}

// RecordCommandReport stamps the device with the outcome of its last
// config command. Observability only; assignment state is untouched.
func (r *Registry) RecordCommandReport(report rntmodels.CommandReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device := r.devices[report.ChipID]
	if device == nil {
		device = &rntmodels.Device{ChipID: report.ChipID}
		r.devices[report.ChipID] = device
	}

	device.LastSeenAt = r.now()
	device.LastReportStatus = report.Status
	device.LastReportMessage = report.Message
	device.LastReportAt = device.LastSeenAt
}

// FindAvailable returns devices that are system-ready, unassigned and
// still connected, best signal first.
func (r *Registry) FindAvailable() []rntmodels.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	available := make([]rntmodels.Device, 0)
	for _, device := range r.devices {
		if device.SystemReady && !device.Assigned() && r.liveness(device) == rntmodels.DeviceConnected {
			available = append(available, *device)
		}
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].RSSI > available[j].RSSI
	})
	return available
}

// Assign binds a device to a machine and rental. Fails when the device
// is unknown or already bound elsewhere.
func (r *Registry) Assign(chipID, machineID, rentalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device := r.devices[chipID]
	if device == nil {
		return rntmodels.NotFoundf("device %s not known to registry", chipID)
	}
	if device.Assigned() && device.AssignedMachineID != machineID {
		return rntmodels.Conflictf("device %s already assigned to machine %s", chipID, device.AssignedMachineID)
	}

	device.AssignedMachineID = machineID
	device.AssignedRentalID = rentalID
	return nil
}

// Release clears a device's assignment.
func (r *Registry) Release(chipID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if device := r.devices[chipID]; device != nil {
		device.AssignedMachineID = ""
		device.AssignedRentalID = ""
	}
}

// FindByMachine returns the device currently bound to the machine.
func (r *Registry) FindByMachine(machineID string) (rntmodels.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, device := range r.devices {
		if device.AssignedMachineID == machineID {
			return *device, true
		}
	}
	return rntmodels.Device{}, false
}

// Liveness buckets a device by heartbeat staleness: connected if seen
// under the connected window ago, stale under the stale window, offline
// otherwise (or when unknown).
func (r *Registry) Liveness(chipID string) rntmodels.DeviceLiveness {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device := r.devices[chipID]
	if device == nil {
		return rntmodels.DeviceOffline
	}
	return r.liveness(device)
}

// IsOnline reports whether the device has been seen recently enough to
// be trusted with a command.
func (r *Registry) IsOnline(chipID string) bool {
	return r.Liveness(chipID) != rntmodels.DeviceOffline
}

// Snapshot returns a copy of every known device for observability.
func (r *Registry) Snapshot() []rntmodels.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]rntmodels.Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, *device)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ChipID < devices[j].ChipID
	})
	return devices
}

func (r *Registry) liveness(device *rntmodels.Device) rntmodels.DeviceLiveness {
	age := r.now().Sub(device.LastSeenAt)
	switch {
	case age < r.connectedWindow:
		return rntmodels.DeviceConnected
	case age < r.staleWindow:
		return rntmodels.DeviceStale
	default:
		return rntmodels.DeviceOffline
	}
}
