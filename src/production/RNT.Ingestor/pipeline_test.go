package ingestor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	registry "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Registry"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
	thresholds "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Thresholds"
)

type recordingReadingRepo struct {
	readings []rntmodels.SensorReading
}

func (r *recordingReadingRepo) CreateReading(ctx context.Context, reading rntmodels.SensorReading) error {
	r.readings = append(r.readings, reading)
	return nil
}

func (r *recordingReadingRepo) ValidValuesSince(ctx context.Context, sensorType, machineID string, since time.Time) ([]float64, error) {
	return nil, nil
}

func (r *recordingReadingRepo) LatestReadings(ctx context.Context, query interfaces.ReadingQuery) ([]rntmodels.SensorReading, error) {
	return r.readings, nil
}

type stubMachineRepo struct {
	machine  *rntmodels.Machine
	statuses []rntmodels.LiveStatus
}

func (s *stubMachineRepo) GetMachine(ctx context.Context, id string) (*rntmodels.Machine, error) {
	return s.machine, nil
}

func (s *stubMachineRepo) ListMachines(ctx context.Context) ([]rntmodels.Machine, error) {
	return nil, nil
}

func (s *stubMachineRepo) UpsertLiveStatus(ctx context.Context, status rntmodels.LiveStatus) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *stubMachineRepo) GetLiveStatus(ctx context.Context, machineID string) ([]rntmodels.LiveStatus, error) {
	return s.statuses, nil
}

type stubRentalRepo struct {
	started *rntmodels.Rental
}

func (s *stubRentalRepo) CreateRental(ctx context.Context, rental rntmodels.Rental) error { return nil }

func (s *stubRentalRepo) GetRental(ctx context.Context, id string) (*rntmodels.Rental, error) {
	return s.started, nil
}

func (s *stubRentalRepo) ListRentals(ctx context.Context) ([]rntmodels.Rental, error) {
	return nil, nil
}

func (s *stubRentalRepo) ListRentalsByStatus(ctx context.Context, status rntmodels.RentalStatus) ([]rntmodels.Rental, error) {
	return nil, nil
}

func (s *stubRentalRepo) UpdateRental(ctx context.Context, rental rntmodels.Rental) error {
	return nil
}

func (s *stubRentalRepo) FindStartedByMachine(ctx context.Context, machineID string) (*rntmodels.Rental, error) {
	return s.started, nil
}

func (s *stubRentalRepo) FindEndingSoon(ctx context.Context, now time.Time, lead time.Duration) ([]rntmodels.Rental, error) {
	return nil, nil
}

type recordingNotifier struct {
	calls []rntmodels.Severity
}

func (r *recordingNotifier) Notify(ctx context.Context, machine rntmodels.Machine, rental rntmodels.Rental, sensorType string, value float64, unit string, severity rntmodels.Severity, profile rntmodels.ThresholdProfile) error {
	r.calls = append(r.calls, severity)
	return nil
}

type pipelineHarness struct {
	pipeline *Pipeline
	registry *registry.Registry
	readings *recordingReadingRepo
	machines *stubMachineRepo
	rentals  *stubRentalRepo
	notifier *recordingNotifier
}

func newPipelineHarness() *pipelineHarness {
	reg := registry.New(config.RegistryConfig{ConnectedWindow: 2 * time.Minute, StaleWindow: 5 * time.Minute}, logger.NewNop())
	readings := &recordingReadingRepo{}
	machines := &stubMachineRepo{machine: &rntmodels.Machine{ID: "m-1", Name: "Oven Hardening A", AutoShutdown: true}}
	rentals := &stubRentalRepo{started: &rntmodels.Rental{ID: "r-1", MachineID: "m-1", UserID: "u-1", Status: rntmodels.RentalStarted, IsStarted: true}}
	notifier := &recordingNotifier{}
	engine := thresholds.NewEngine(config.ThresholdsConfig{
		HistoryWindow: 30 * 24 * time.Hour,
		MinSamples:    20,
		CacheTTL:      time.Minute,
	}, readings, logger.NewNop())

	return &pipelineHarness{
		pipeline: NewPipeline(reg, readings, machines, rentals, engine, notifier, logger.NewNop()),
		registry: reg,
		readings: readings,
		machines: machines,
		rentals:  rentals,
		notifier: notifier,
	}
}

func sensorEvent(value float64) *Event {
	return &Event{
		Kind:  KindSensorData,
		Topic: "sensor/s-1/data",
		SensorData: &rntmodels.SensorData{
			SensorID:   "s-1",
			MachineID:  "m-1",
			SensorType: "suhu",
			Value:      value,
		},
	}
}

func TestHeartbeatEventFeedsRegistry(t *testing.T) {
	h := newPipelineHarness()

	err := h.pipeline.Handle(context.Background(), &Event{
		Kind:      KindHeartbeat,
		Heartbeat: &rntmodels.Heartbeat{ChipID: "chip-1", SystemReady: true},
	})
	require.NoError(t, err)

	assert.Len(t, h.registry.Snapshot(), 1)
}

func TestSensorDataDroppedWithoutActiveRental(t *testing.T) {
	h := newPipelineHarness()
	h.rentals.started = nil

	require.NoError(t, h.pipeline.Handle(context.Background(), sensorEvent(820)))

	assert.Empty(t, h.readings.readings)
	assert.Empty(t, h.notifier.calls)
}

func TestSensorDataPersistedAndClassified(t *testing.T) {
	h := newPipelineHarness()

	require.NoError(t, h.pipeline.Handle(context.Background(), sensorEvent(930)))

	require.Len(t, h.readings.readings, 1)
	reading := h.readings.readings[0]
	assert.Equal(t, "r-1", reading.RentalID)
	assert.True(t, reading.IsValid)
	assert.Equal(t, "°C", reading.Unit)

	require.Len(t, h.machines.statuses, 1)
	assert.Equal(t, rntmodels.SeverityWarning, h.machines.statuses[0].Severity)

	require.Len(t, h.notifier.calls, 1)
	assert.Equal(t, rntmodels.SeverityWarning, h.notifier.calls[0])
}

func TestImplausibleSensorDataPersistedButNotClassified(t *testing.T) {
	h := newPipelineHarness()

	// 1200 °C is outside the plausibility bounds for suhu.
	require.NoError(t, h.pipeline.Handle(context.Background(), sensorEvent(1200)))

	require.Len(t, h.readings.readings, 1)
	assert.False(t, h.readings.readings[0].IsValid)
	assert.Empty(t, h.machines.statuses)
	assert.Empty(t, h.notifier.calls)
}

func TestSensorReadingTaggedWithBoundChip(t *testing.T) {
	h := newPipelineHarness()
	h.registry.RecordHeartbeat(rntmodels.Heartbeat{ChipID: "chip-9", SystemReady: true})
	require.NoError(t, h.registry.Assign("chip-9", "m-1", "r-1"))

	require.NoError(t, h.pipeline.Handle(context.Background(), sensorEvent(820)))

	require.Len(t, h.readings.readings, 1)
	assert.Equal(t, "chip-9", h.readings.readings[0].ChipID)
}
