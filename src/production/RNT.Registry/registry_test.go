package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

func newTestRegistry() *Registry {
	return New(config.RegistryConfig{
		ConnectedWindow: 2 * time.Minute,
		StaleWindow:     5 * time.Minute,
	}, logger.NewNop())
}

func heartbeat(chipID string, ready bool, rssi int) rntmodels.Heartbeat {
	return rntmodels.Heartbeat{ChipID: chipID, SystemReady: ready, RSSI: rssi, IP: "10.0.0.1"}
}

func TestHeartbeatRegistersDevice(t *testing.T) {
	r := newTestRegistry()

	r.RecordHeartbeat(heartbeat("chip-1", true, -40))

	devices := r.Snapshot()
	require.Len(t, devices, 1)
	assert.Equal(t, "chip-1", devices[0].ChipID)
	assert.True(t, devices[0].SystemReady)
	assert.Equal(t, rntmodels.DeviceConnected, r.Liveness("chip-1"))
}

func TestHeartbeatRelearnsBindingAfterRestart(t *testing.T) {
	r := newTestRegistry()

	r.RecordHeartbeat(rntmodels.Heartbeat{
		ChipID:      "chip-1",
		MachineID:   "m-1",
		RentalID:    "r-1",
		IsStarted:   true,
		SystemReady: true,
	})

	device, ok := r.FindByMachine("m-1")
	require.True(t, ok)
	assert.Equal(t, "chip-1", device.ChipID)
	assert.Equal(t, "r-1", device.AssignedRentalID)
}

func TestFindAvailableExcludesAssignedAndNotReady(t *testing.T) {
	r := newTestRegistry()

	r.RecordHeartbeat(heartbeat("chip-free", true, -60))
	r.RecordHeartbeat(heartbeat("chip-strong", true, -30))
	r.RecordHeartbeat(heartbeat("chip-notready", false, -20))
	r.RecordHeartbeat(heartbeat("chip-bound", true, -10))
	require.NoError(t, r.Assign("chip-bound", "m-1", "r-1"))

	available := r.FindAvailable()
	require.Len(t, available, 2)
	// Best signal first.
	assert.Equal(t, "chip-strong", available[0].ChipID)
	assert.Equal(t, "chip-free", available[1].ChipID)
}

func TestFindAvailableExcludesStaleDevices(t *testing.T) {
	r := newTestRegistry()
	base := time.Now()
	r.now = func() time.Time { return base }

	r.RecordHeartbeat(heartbeat("chip-1", true, -40))

	r.now = func() time.Time { return base.Add(3 * time.Minute) }
	assert.Empty(t, r.FindAvailable())
	assert.Equal(t, rntmodels.DeviceStale, r.Liveness("chip-1"))

	r.now = func() time.Time { return base.Add(6 * time.Minute) }
	assert.Equal(t, rntmodels.DeviceOffline, r.Liveness("chip-1"))
	assert.False(t, r.IsOnline("chip-1"))
}

func TestAssignConflicts(t *testing.T) {
	r := newTestRegistry()
	r.RecordHeartbeat(heartbeat("chip-1", true, -40))

	require.NoError(t, r.Assign("chip-1", "m-1", "r-1"))

	err := r.Assign("chip-1", "m-2", "r-2")
	require.Error(t, err)
	assert.True(t, rntmodels.IsConflict(err))

	err = r.Assign("chip-unknown", "m-1", "r-1")
	require.Error(t, err)
	assert.True(t, rntmodels.IsNotFound(err))

	// Re-assigning the same machine is idempotent.
	assert.NoError(t, r.Assign("chip-1", "m-1", "r-1"))
}

func TestReleaseFreesDevice(t *testing.T) {
	r := newTestRegistry()
	r.RecordHeartbeat(heartbeat("chip-1", true, -40))
	require.NoError(t, r.Assign("chip-1", "m-1", "r-1"))

	r.Release("chip-1")

	_, ok := r.FindByMachine("m-1")
	assert.False(t, ok)
	assert.Len(t, r.FindAvailable(), 1)
}

func TestOfflineTransitionReleasesAssignment(t *testing.T) {
	r := newTestRegistry()
	r.RecordHeartbeat(heartbeat("chip-1", true, -40))
	require.NoError(t, r.Assign("chip-1", "m-1", "r-1"))

	r.RecordConnectionStatus(rntmodels.ConnectionStatus{ChipID: "chip-1", Status: "offline"})

	_, ok := r.FindByMachine("m-1")
	assert.False(t, ok)

	devices := r.Snapshot()
	require.Len(t, devices, 1)
	assert.False(t, devices[0].SystemReady)
	assert.False(t, devices[0].IsStarted)
}

func TestOnlineTransitionMarksReady(t *testing.T) {
	r := newTestRegistry()

	r.RecordConnectionStatus(rntmodels.ConnectionStatus{ChipID: "chip-1", Status: "online", SystemReady: true, RSSI: -50})

	assert.Equal(t, rntmodels.DeviceConnected, r.Liveness("chip-1"))
	assert.Len(t, r.FindAvailable(), 1)
}

func TestCommandReportStampsDevice(t *testing.T) {
	r := newTestRegistry()
	r.RecordHeartbeat(heartbeat("chip-1", true, -40))

	r.RecordCommandReport(rntmodels.CommandReport{
		ChipID:  "chip-1",
		Status:  "started",
		Message: "relay engaged",
	})

	devices := r.Snapshot()
	require.Len(t, devices, 1)
	assert.Equal(t, "started", devices[0].LastReportStatus)
	assert.Equal(t, "relay engaged", devices[0].LastReportMessage)
	assert.False(t, devices[0].LastReportAt.IsZero())
}
