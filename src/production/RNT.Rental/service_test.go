package rental

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alerts "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Alerts"
	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	registry "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Registry"
)

type memRentalRepo struct {
	mu      sync.Mutex
	rentals map[string]rntmodels.Rental
}

func newMemRentalRepo() *memRentalRepo {
	return &memRentalRepo{rentals: make(map[string]rntmodels.Rental)}
}

func (m *memRentalRepo) CreateRental(ctx context.Context, rental rntmodels.Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rentals[rental.ID] = rental
	return nil
}

func (m *memRentalRepo) GetRental(ctx context.Context, id string) (*rntmodels.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rental, ok := m.rentals[id]; ok {
		return &rental, nil
	}
	return nil, nil
}

func (m *memRentalRepo) ListRentals(ctx context.Context) ([]rntmodels.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rntmodels.Rental, 0, len(m.rentals))
	for _, rental := range m.rentals {
		out = append(out, rental)
	}
	return out, nil
}

func (m *memRentalRepo) ListRentalsByStatus(ctx context.Context, status rntmodels.RentalStatus) ([]rntmodels.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rntmodels.Rental, 0)
	for _, rental := range m.rentals {
		if rental.Status == status {
			out = append(out, rental)
		}
	}
	return out, nil
}

func (m *memRentalRepo) UpdateRental(ctx context.Context, rental rntmodels.Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rentals[rental.ID]; !ok {
		return rntmodels.NotFoundf("rental %s not found", rental.ID)
	}
	m.rentals[rental.ID] = rental
	return nil
}

func (m *memRentalRepo) FindStartedByMachine(ctx context.Context, machineID string) (*rntmodels.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rental := range m.rentals {
		if rental.MachineID == machineID && rental.Status == rntmodels.RentalStarted {
			return &rental, nil
		}
	}
	return nil, nil
}

func (m *memRentalRepo) FindEndingSoon(ctx context.Context, now time.Time, lead time.Duration) ([]rntmodels.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rntmodels.Rental, 0)
	for _, rental := range m.rentals {
		if rental.Status == rntmodels.RentalStarted &&
			rental.ScheduledEnd.After(now) && !rental.ScheduledEnd.After(now.Add(lead)) {
			out = append(out, rental)
		}
	}
	return out, nil
}

type memMachineRepo struct {
	machines map[string]rntmodels.Machine
}

func (m *memMachineRepo) GetMachine(ctx context.Context, id string) (*rntmodels.Machine, error) {
	if machine, ok := m.machines[id]; ok {
		return &machine, nil
	}
	return nil, nil
}

func (m *memMachineRepo) ListMachines(ctx context.Context) ([]rntmodels.Machine, error) {
	return nil, nil
}

func (m *memMachineRepo) UpsertLiveStatus(ctx context.Context, status rntmodels.LiveStatus) error {
	return nil
}

func (m *memMachineRepo) GetLiveStatus(ctx context.Context, machineID string) ([]rntmodels.LiveStatus, error) {
	return nil, nil
}

type memUserRepo struct {
	users     map[string]rntmodels.User
	operators []rntmodels.User
}

func (m *memUserRepo) GetUser(ctx context.Context, id string) (*rntmodels.User, error) {
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (m *memUserRepo) ListOperators(ctx context.Context) ([]rntmodels.User, error) {
	return m.operators, nil
}

type fakePublisher struct {
	mu          sync.Mutex
	bindCalls   int
	bindErr     error
	chipID      string
	stopCalls   []string
	updateCalls []string
}

func (f *fakePublisher) BindDeviceToSession(machineID, rentalID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindCalls++
	if f.bindErr != nil {
		return "", f.bindErr
	}
	return f.chipID, nil
}

func (f *fakePublisher) PublishStop(chipID, machineID, rentalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls = append(f.stopCalls, rentalID)
	return nil
}

func (f *fakePublisher) PublishUpdate(chipID, machineID, rentalID string, scheduledEnd time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, rentalID)
	return nil
}

type captureSink struct {
	mu       sync.Mutex
	sent     []alerts.DeliveryRequest
	failures int
}

func (c *captureSink) Send(ctx context.Context, req alerts.DeliveryRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("delivery unavailable")
	}
	c.sent = append(c.sent, req)
	return nil
}

type harness struct {
	service   *Service
	rentals   *memRentalRepo
	machines  *memMachineRepo
	users     *memUserRepo
	registry  *registry.Registry
	publisher *fakePublisher
	sink      *captureSink
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	rentals := newMemRentalRepo()
	machines := &memMachineRepo{machines: map[string]rntmodels.Machine{
		"m-1": {ID: "m-1", Name: "Oven Hardening A", Status: rntmodels.MachineAvailable, AutoShutdown: true},
	}}
	users := &memUserRepo{
		users: map[string]rntmodels.User{
			"u-1": {ID: "u-1", Name: "Renter", Role: rntmodels.RoleRenter, PushToken: "tok-1"},
		},
		operators: []rntmodels.User{{ID: "u-op", Role: rntmodels.RoleOperator, PushToken: "tok-op"}},
	}
	reg := registry.New(config.RegistryConfig{ConnectedWindow: 2 * time.Minute, StaleWindow: 5 * time.Minute}, logger.NewNop())
	publisher := &fakePublisher{chipID: "chip-1"}
	sink := &captureSink{}

	service := NewService(config.RentalConfig{
		StartGrace:             15 * time.Minute,
		ExtendAllowedMinutes:   []int{5, 10, 15},
		DefaultDurationMinutes: 60,
	}, rentals, machines, users, reg, publisher, sink, logger.NewNop())

	h := &harness{
		service:   service,
		rentals:   rentals,
		machines:  machines,
		users:     users,
		registry:  reg,
		publisher: publisher,
		sink:      sink,
		now:       time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	service.now = func() time.Time { return h.now }
	return h
}

func (h *harness) approvedRental(t *testing.T, start, end time.Time) *rntmodels.Rental {
	t.Helper()
	ctx := context.Background()
	created, err := h.service.CreateRental(ctx, "m-1", "u-1", start, end)
	require.NoError(t, err)
	approved, err := h.service.Approve(ctx, created.ID)
	require.NoError(t, err)
	return approved
}

func TestCreateRentalValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.CreateRental(ctx, "", "u-1", h.now, h.now.Add(time.Hour))
	assert.True(t, rntmodels.IsValidation(err))

	_, err = h.service.CreateRental(ctx, "m-1", "u-1", h.now.Add(time.Hour), h.now)
	assert.True(t, rntmodels.IsValidation(err))

	_, err = h.service.CreateRental(ctx, "m-unknown", "u-1", h.now, h.now.Add(time.Hour))
	assert.True(t, rntmodels.IsNotFound(err))
}

func TestCreateRentalRejectsUnavailableMachine(t *testing.T) {
	h := newHarness(t)
	h.machines.machines["m-1"] = rntmodels.Machine{ID: "m-1", Status: rntmodels.MachineMaintenance}

	_, err := h.service.CreateRental(context.Background(), "m-1", "u-1", h.now, h.now.Add(time.Hour))
	assert.True(t, rntmodels.IsConflict(err))
}

func TestDecideOnlyFromPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.service.CreateRental(ctx, "m-1", "u-1", h.now, h.now.Add(time.Hour))
	require.NoError(t, err)

	approved, err := h.service.Approve(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, rntmodels.RentalApproved, approved.Status)

	_, err = h.service.Reject(ctx, created.ID)
	assert.True(t, rntmodels.IsConflict(err))
}

func TestStartInsideWindow(t *testing.T) {
	h := newHarness(t)
	rental := h.approvedRental(t, h.now.Add(10*time.Minute), h.now.Add(70*time.Minute))

	result, err := h.service.StartRental(context.Background(), rental.ID)
	require.NoError(t, err)

	assert.True(t, result.Rental.IsStarted)
	assert.Equal(t, rntmodels.RentalStarted, result.Rental.Status)
	require.NotNil(t, result.Rental.ActualStart)
	assert.Equal(t, h.now, *result.Rental.ActualStart)
	assert.Equal(t, "chip-1", result.BoundChipID)
	assert.Empty(t, result.TransportWarning)
}

func TestStartRejectedOutsideWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	early := h.approvedRental(t, h.now.Add(30*time.Minute), h.now.Add(90*time.Minute))
	_, err := h.service.StartRental(ctx, early.ID)
	assert.True(t, rntmodels.IsConflict(err))

	late := h.approvedRental(t, h.now.Add(-2*time.Hour), h.now.Add(-time.Hour))
	_, err = h.service.StartRental(ctx, late.ID)
	assert.True(t, rntmodels.IsConflict(err))
}

func TestStartWithinGraceBeforeScheduledStart(t *testing.T) {
	h := newHarness(t)
	rental := h.approvedRental(t, h.now.Add(14*time.Minute), h.now.Add(74*time.Minute))

	_, err := h.service.StartRental(context.Background(), rental.ID)
	assert.NoError(t, err)
}

func TestDuplicateStartConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rental := h.approvedRental(t, h.now, h.now.Add(time.Hour))

	_, err := h.service.StartRental(ctx, rental.ID)
	require.NoError(t, err)

	_, err = h.service.StartRental(ctx, rental.ID)
	assert.True(t, rntmodels.IsConflict(err))
	assert.Equal(t, 1, h.publisher.bindCalls)
}

func TestSecondRentalOnBusyMachineConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.approvedRental(t, h.now, h.now.Add(time.Hour))
	_, err := h.service.StartRental(ctx, first.ID)
	require.NoError(t, err)

	second := h.approvedRental(t, h.now, h.now.Add(time.Hour))
	_, err = h.service.StartRental(ctx, second.ID)
	assert.True(t, rntmodels.IsConflict(err))
}

func TestStartCommitsDespiteTransportFailure(t *testing.T) {
	h := newHarness(t)
	h.publisher.bindErr = rntmodels.Transportf(nil, "no ready device available")
	rental := h.approvedRental(t, h.now, h.now.Add(time.Hour))

	result, err := h.service.StartRental(context.Background(), rental.ID)
	require.NoError(t, err)

	assert.True(t, result.Rental.IsStarted)
	assert.NotEmpty(t, result.TransportWarning)

	stored, err := h.rentals.GetRental(context.Background(), rental.ID)
	require.NoError(t, err)
	assert.Equal(t, rntmodels.RentalStarted, stored.Status)
}

func TestExtendRentalAllowList(t *testing.T) {
	h := newHarness(t)
	rental := h.approvedRental(t, h.now, h.now.Add(time.Hour))

	_, err := h.service.ExtendRental(context.Background(), rental.ID, 20)
	assert.True(t, rntmodels.IsValidation(err))

	_, err = h.service.ExtendRental(context.Background(), rental.ID, 0)
	assert.True(t, rntmodels.IsValidation(err))
}

func TestExtendRentalAddsMinutes(t *testing.T) {
	h := newHarness(t)
	end := h.now.Add(time.Hour)
	rental := h.approvedRental(t, h.now, end)

	updated, err := h.service.ExtendRental(context.Background(), rental.ID, 10)
	require.NoError(t, err)

	assert.Equal(t, end.Add(10*time.Minute), updated.ScheduledEnd)
	assert.Equal(t, 10, updated.TotalExtended)
	require.Len(t, updated.Extensions, 1)
	assert.Equal(t, end, updated.Extensions[0].OldEnd)
	assert.False(t, updated.Extensions[0].Synthesized)
}

func TestExtendSynthesizesMissingEnd(t *testing.T) {
	h := newHarness(t)
	rental := h.approvedRental(t, h.now, h.now.Add(time.Hour))

	// Corrupt the stored end time.
	stored, err := h.rentals.GetRental(context.Background(), rental.ID)
	require.NoError(t, err)
	stored.ScheduledEnd = time.Time{}
	require.NoError(t, h.rentals.UpdateRental(context.Background(), *stored))

	updated, err := h.service.ExtendRental(context.Background(), rental.ID, 5)
	require.NoError(t, err)

	// Base is the scheduled start: synthesized to +60m, then +5m.
	assert.Equal(t, h.now.Add(65*time.Minute), updated.ScheduledEnd)
	require.Len(t, updated.Extensions, 2)
	assert.True(t, updated.Extensions[0].Synthesized)
	assert.Equal(t, 5, updated.Extensions[1].Minutes)
	assert.Equal(t, 5, updated.TotalExtended)
}

func TestExtendTerminalRentalConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.service.CreateRental(ctx, "m-1", "u-1", h.now, h.now.Add(time.Hour))
	require.NoError(t, err)
	_, err = h.service.Reject(ctx, created.ID)
	require.NoError(t, err)

	_, err = h.service.ExtendRental(ctx, created.ID, 5)
	assert.True(t, rntmodels.IsConflict(err))
}

func TestEndRentalStopsDeviceAndReleases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.registry.RecordHeartbeat(rntmodels.Heartbeat{ChipID: "chip-1", SystemReady: true})
	require.NoError(t, h.registry.Assign("chip-1", "m-1", ""))

	rental := h.approvedRental(t, h.now, h.now.Add(time.Hour))
	_, err := h.service.StartRental(ctx, rental.ID)
	require.NoError(t, err)

	h.now = h.now.Add(30 * time.Minute)
	result, err := h.service.EndRental(ctx, rental.ID)
	require.NoError(t, err)

	assert.Equal(t, rntmodels.RentalHalted, result.Rental.Status)
	require.NotNil(t, result.Rental.ActualEnd)
	assert.Equal(t, 30, result.Rental.ActualDurationMinutes())
	assert.Equal(t, []string{rental.ID}, h.publisher.stopCalls)

	_, bound := h.registry.FindByMachine("m-1")
	assert.False(t, bound)
}

func TestEndRequiresStarted(t *testing.T) {
	h := newHarness(t)
	rental := h.approvedRental(t, h.now, h.now.Add(time.Hour))

	_, err := h.service.EndRental(context.Background(), rental.ID)
	assert.True(t, rntmodels.IsConflict(err))
}

func TestEmergencyShutdown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.registry.RecordHeartbeat(rntmodels.Heartbeat{ChipID: "chip-1", SystemReady: true})
	require.NoError(t, h.registry.Assign("chip-1", "m-1", ""))

	rental := h.approvedRental(t, h.now, h.now.Add(time.Hour))
	_, err := h.service.StartRental(ctx, rental.ID)
	require.NoError(t, err)

	// Even a session only minutes old can be shut down.
	h.now = h.now.Add(2 * time.Minute)
	reason := "Auto shutdown: sensor suhu reached critical threshold (960°C)"
	require.NoError(t, h.service.EmergencyShutdown(ctx, rental.ID, reason))

	stored, err := h.rentals.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, rntmodels.RentalHalted, stored.Status)
	assert.Equal(t, reason, stored.ShutdownReason)
	require.NotNil(t, stored.ActualEnd)

	assert.Equal(t, []string{rental.ID}, h.publisher.stopCalls)

	// Renter and operator both notified.
	require.Len(t, h.sink.sent, 2)
	assert.Equal(t, "tok-1", h.sink.sent[0].RecipientRef)
	assert.Equal(t, "tok-op", h.sink.sent[1].RecipientRef)

	// A second shutdown is a conflict.
	err = h.service.EmergencyShutdown(ctx, rental.ID, reason)
	assert.True(t, rntmodels.IsConflict(err))
}

func TestMonitorNotifiesOncePerRental(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rental := h.approvedRental(t, h.now, h.now.Add(10*time.Minute))
	_, err := h.service.StartRental(ctx, rental.ID)
	require.NoError(t, err)

	monitor := NewMonitor(config.RentalConfig{
		EndingSoonLead:  3 * time.Minute,
		MonitorInterval: time.Minute,
	}, h.rentals, h.users, h.sink, logger.NewNop())

	// Too early: nothing in the window.
	monitor.now = func() time.Time { return h.now.Add(5 * time.Minute) }
	monitor.Sweep(ctx)
	assert.Empty(t, h.sink.sent)

	monitor.now = func() time.Time { return h.now.Add(8 * time.Minute) }
	monitor.Sweep(ctx)
	require.Len(t, h.sink.sent, 1)
	assert.Equal(t, "tok-1", h.sink.sent[0].RecipientRef)

	// Repeated sweeps stay quiet.
	monitor.Sweep(ctx)
	assert.Len(t, h.sink.sent, 1)
}

func TestMonitorRetriesAfterDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rental := h.approvedRental(t, h.now, h.now.Add(10*time.Minute))
	_, err := h.service.StartRental(ctx, rental.ID)
	require.NoError(t, err)

	monitor := NewMonitor(config.RentalConfig{
		EndingSoonLead:  3 * time.Minute,
		MonitorInterval: time.Minute,
	}, h.rentals, h.users, h.sink, logger.NewNop())
	monitor.now = func() time.Time { return h.now.Add(8 * time.Minute) }

	h.sink.failures = 1
	monitor.Sweep(ctx)
	assert.Empty(t, h.sink.sent)

	// The failed delivery must not consume the one-shot notice.
	monitor.Sweep(ctx)
	require.Len(t, h.sink.sent, 1)
	assert.Equal(t, "RENTAL_ENDING_SOON", h.sink.sent[0].Data["type"])

	monitor.Sweep(ctx)
	assert.Len(t, h.sink.sent, 1)
}
