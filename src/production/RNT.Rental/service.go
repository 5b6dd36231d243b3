package rental

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	alerts "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Alerts"
	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	registry "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Registry"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
)

// CommandPublisher is the device-command surface the state machine
// needs. Satisfied by commander.Publisher and by fakes in tests.
type CommandPublisher interface {
	BindDeviceToSession(machineID, rentalID string) (string, error)
	PublishStop(chipID, machineID, rentalID string) error
	PublishUpdate(chipID, machineID, rentalID string, scheduledEnd time.Time) error
}

// StartResult reports a committed start and whether device binding
// failed. A transport failure does not roll the session back; the rental
// is started even if no device acknowledged.
type StartResult struct {
	Rental           *rntmodels.Rental
	TransportWarning string
	BoundChipID      string
}

// Service is the rental session state machine: Pending → {Approved,
// Rejected}; Approved → Started; Started → Halted. Rejected, Halted and
// a naturally-ended session are terminal.
type Service struct {
	rentals   interfaces.RentalRepository
	machines  interfaces.MachineRepository
	users     interfaces.UserRepository
	registry  *registry.Registry
	publisher CommandPublisher
	sink      alerts.NotificationSink
	logger    *logger.Logger

	startGrace      time.Duration
	allowedExtend   map[int]bool
	defaultDuration time.Duration

	// mu serializes check-and-set transitions so a duplicate concurrent
	// start yields exactly one success and one conflict.
	mu sync.Mutex

	now func() time.Time
}

func NewService(
	cfg config.RentalConfig,
	rentals interfaces.RentalRepository,
	machines interfaces.MachineRepository,
	users interfaces.UserRepository,
	reg *registry.Registry,
	publisher CommandPublisher,
	sink alerts.NotificationSink,
	log *logger.Logger,
) *Service {
	allowed := make(map[int]bool, len(cfg.ExtendAllowedMinutes))
	for _, minutes := range cfg.ExtendAllowedMinutes {
		allowed[minutes] = true
	}

	return &Service{
		rentals:         rentals,
		machines:        machines,
		users:           users,
		registry:        reg,
		publisher:       publisher,
		sink:            sink,
		logger:          log.WithComponent("rental"),
		startGrace:      cfg.StartGrace,
		allowedExtend:   allowed,
		defaultDuration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
		now:             time.Now,
	}
}

// CreateRental books a machine for a user across a scheduled window. The
// session starts Pending until an operator decides.
func (s *Service) CreateRental(ctx context.Context, machineID, userID string, scheduledStart, scheduledEnd time.Time) (*rntmodels.Rental, error) {
	if machineID == "" || userID == "" {
		return nil, rntmodels.Validationf("machineId and userId are required")
	}
	if scheduledStart.IsZero() || scheduledEnd.IsZero() || !scheduledEnd.After(scheduledStart) {
		return nil, rntmodels.Validationf("scheduled window must have start before end")
	}

	machine, err := s.machines.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if machine == nil {
		return nil, rntmodels.NotFoundf("machine %s not found", machineID)
	}
	if machine.Status != rntmodels.MachineAvailable {
		return nil, rntmodels.Conflictf("machine %s is %s", machineID, machine.Status)
	}

	rental := rntmodels.Rental{
		ID:             uuid.NewString(),
		MachineID:      machineID,
		UserID:         userID,
		ScheduledStart: scheduledStart,
		ScheduledEnd:   scheduledEnd,
		Status:         rntmodels.RentalPending,
		CreatedAt:      s.now(),
	}
	if err := s.rentals.CreateRental(ctx, rental); err != nil {
		return nil, err
	}
	return &rental, nil
}

// Approve moves a Pending session to Approved.
func (s *Service) Approve(ctx context.Context, id string) (*rntmodels.Rental, error) {
	return s.decide(ctx, id, rntmodels.RentalApproved)
}

// Reject moves a Pending session to Rejected, a terminal state.
func (s *Service) Reject(ctx context.Context, id string) (*rntmodels.Rental, error) {
	return s.decide(ctx, id, rntmodels.RentalRejected)
}

func (s *Service) decide(ctx context.Context, id string, decision rntmodels.RentalStatus) (*rntmodels.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rental, err := s.getRental(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.Status != rntmodels.RentalPending {
		return nil, rntmodels.Conflictf("rental %s is %s, only Pending rentals can be decided", id, rental.Status)
	}

	rental.Status = decision
	if err := s.rentals.UpdateRental(ctx, *rental); err != nil {
		return nil, err
	}
	return rental, nil
}

// StartRental transitions an Approved session to Started and binds a
// controller device. The transition commits before the device command
// goes out: publish failure is logged and surfaced as a transport
// warning, never rolled back.
func (s *Service) StartRental(ctx context.Context, id string) (*StartResult, error) {
	s.mu.Lock()
	rental, err := s.getRental(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := s.now()
	if err := s.startable(ctx, rental, now); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	rental.IsStarted = true
	rental.Status = rntmodels.RentalStarted
	rental.ActualStart = &now
	if err := s.rentals.UpdateRental(ctx, *rental); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	result := &StartResult{Rental: rental}
	chipID, err := s.publisher.BindDeviceToSession(rental.MachineID, rental.ID)
	if err != nil {
		s.logger.ErrorWithError(err, "device binding failed for rental "+rental.ID)
		result.TransportWarning = err.Error()
		return result, nil
	}
	result.BoundChipID = chipID
	return result, nil
}

func (s *Service) startable(ctx context.Context, rental *rntmodels.Rental, now time.Time) error {
	if rental.IsStarted {
		return rntmodels.Conflictf("rental %s already started", rental.ID)
	}
	if rental.Status != rntmodels.RentalApproved {
		return rntmodels.Conflictf("rental %s is %s, must be Approved to start", rental.ID, rental.Status)
	}
	if now.Before(rental.ScheduledStart.Add(-s.startGrace)) {
		return rntmodels.Conflictf("rental %s cannot start before %s", rental.ID, rental.ScheduledStart.Add(-s.startGrace).Format(time.RFC3339))
	}
	if now.After(rental.ScheduledEnd) {
		return rntmodels.Conflictf("rental %s scheduled window ended at %s", rental.ID, rental.ScheduledEnd.Format(time.RFC3339))
	}

	// At most one Started session per machine.
	active, err := s.rentals.FindStartedByMachine(ctx, rental.MachineID)
	if err != nil {
		return err
	}
	if active != nil && active.ID != rental.ID {
		return rntmodels.Conflictf("machine %s already has started rental %s", rental.MachineID, active.ID)
	}
	return nil
}

// ExtendRental pushes a session's scheduled end out by an allow-listed
// number of minutes. Tolerates missing or corrupted end timestamps by
// synthesizing one from the best available base time, and records that
// correction in the extension log.
func (s *Service) ExtendRental(ctx context.Context, id string, minutes int) (*rntmodels.Rental, error) {
	if !s.allowedExtend[minutes] {
		return nil, rntmodels.Validationf("extension of %d minutes not allowed, choose one of 5, 10, 15", minutes)
	}

	s.mu.Lock()
	rental, err := s.getRental(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if rental.Status.Terminal() {
		s.mu.Unlock()
		return nil, rntmodels.Conflictf("rental %s is %s and cannot be extended", id, rental.Status)
	}

	now := s.now()
	base := s.baseTime(rental)

	// A missing or corrupted end timestamp is synthesized before
	// extending, and the correction shows up in the log.
	if rental.ScheduledEnd.IsZero() || !rental.ScheduledEnd.After(base) {
		oldEnd := rental.ScheduledEnd
		rental.ScheduledEnd = base.Add(s.defaultDuration)
		rental.Extensions = append(rental.Extensions, rntmodels.RentalExtension{
			At:          now,
			Minutes:     0,
			OldEnd:      oldEnd,
			NewEnd:      rental.ScheduledEnd,
			Synthesized: true,
		})
	}

	oldEnd := rental.ScheduledEnd
	rental.ScheduledEnd = oldEnd.Add(time.Duration(minutes) * time.Minute)
	rental.Extensions = append(rental.Extensions, rntmodels.RentalExtension{
		At:      now,
		Minutes: minutes,
		OldEnd:  oldEnd,
		NewEnd:  rental.ScheduledEnd,
	})
	rental.TotalExtended += minutes

	if err := s.rentals.UpdateRental(ctx, *rental); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	// Best-effort re-publish of the updated window to the bound device.
	if device, ok := s.registry.FindByMachine(rental.MachineID); ok {
		if err := s.publisher.PublishUpdate(device.ChipID, rental.MachineID, rental.ID, rental.ScheduledEnd); err != nil {
			s.logger.ErrorWithError(err, "failed to publish updated window for rental "+rental.ID)
		}
	}

	return rental, nil
}

// baseTime resolves the reference point for end-time synthesis, in
// priority order: actual start, scheduled start, session creation time.
func (s *Service) baseTime(rental *rntmodels.Rental) time.Time {
	if rental.ActualStart != nil && !rental.ActualStart.IsZero() {
		return *rental.ActualStart
	}
	if !rental.ScheduledStart.IsZero() {
		return rental.ScheduledStart
	}
	return rental.CreatedAt
}

// EndRental finishes a started session: records the actual end, publishes
// the stop command and releases the device.
func (s *Service) EndRental(ctx context.Context, id string) (*StartResult, error) {
	s.mu.Lock()
	rental, err := s.getRental(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !rental.IsStarted || rental.Status != rntmodels.RentalStarted {
		s.mu.Unlock()
		return nil, rntmodels.Conflictf("rental %s is not started", id)
	}

	now := s.now()
	rental.ActualEnd = &now
	rental.Status = rntmodels.RentalHalted
	if err := s.rentals.UpdateRental(ctx, *rental); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	result := &StartResult{Rental: rental}
	s.stopDevice(rental, &result.TransportWarning)

	s.logger.WithField("rental_id", rental.ID).
		WithField("actual_minutes", rental.ActualDurationMinutes()).
		Info("rental ended")
	return result, nil
}

// EmergencyShutdown short-circuits an active session directly to Halted,
// regardless of elapsed duration, records the reason and alerts the
// renter and all operators. This is the sole path allowed to end a
// session from inside the telemetry pipeline.
func (s *Service) EmergencyShutdown(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	rental, err := s.getRental(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if rental.Status.Terminal() {
		s.mu.Unlock()
		return rntmodels.Conflictf("rental %s is already %s", id, rental.Status)
	}
	if !rental.IsStarted {
		s.mu.Unlock()
		return rntmodels.Conflictf("rental %s is not active", id)
	}

	now := s.now()
	rental.Status = rntmodels.RentalHalted
	rental.ActualEnd = &now
	rental.ShutdownReason = reason
	if err := s.rentals.UpdateRental(ctx, *rental); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	var transportWarning string
	s.stopDevice(rental, &transportWarning)

	s.logger.WithField("rental_id", rental.ID).
		WithField("reason", reason).
		Warn("emergency shutdown executed")

	s.notifyShutdown(ctx, rental, reason)
	return nil
}

// stopDevice publishes stop to the bound device and releases it in the
// registry. Best-effort: a publish failure only sets the warning.
func (s *Service) stopDevice(rental *rntmodels.Rental, warning *string) {
	device, ok := s.registry.FindByMachine(rental.MachineID)
	if !ok {
		*warning = fmt.Sprintf("no bound device for machine %s", rental.MachineID)
		s.logger.Warn(*warning)
		return
	}

	if err := s.publisher.PublishStop(device.ChipID, rental.MachineID, rental.ID); err != nil {
		*warning = err.Error()
		s.logger.ErrorWithError(err, "stop command failed for rental "+rental.ID)
	}
	s.registry.Release(device.ChipID)
}

// notifyShutdown fans the shutdown notice out to the renter and every
// operator.
func (s *Service) notifyShutdown(ctx context.Context, rental *rntmodels.Rental, reason string) {
	machineName := rental.MachineID
	if machine, err := s.machines.GetMachine(ctx, rental.MachineID); err == nil && machine != nil {
		machineName = machine.Name
	}

	req := alerts.DeliveryRequest{
		Title: fmt.Sprintf("Emergency shutdown: %s", machineName),
		Body:  reason,
		Data: map[string]string{
			"type":      "EMERGENCY_SHUTDOWN",
			"machineId": rental.MachineID,
			"rentalId":  rental.ID,
		},
	}

	recipients := make([]rntmodels.User, 0, 4)
	if renter, err := s.users.GetUser(ctx, rental.UserID); err == nil && renter != nil {
		recipients = append(recipients, *renter)
	}
	operators, err := s.users.ListOperators(ctx)
	if err != nil {
		s.logger.ErrorWithError(err, "failed to list operators for shutdown notice")
	}
	for _, operator := range operators {
		if operator.ID == rental.UserID {
			continue
		}
		recipients = append(recipients, operator)
	}

	for _, recipient := range recipients {
		delivery := req
		delivery.RecipientRef = recipient.PushToken
		if delivery.RecipientRef == "" {
			delivery.RecipientRef = recipient.ID
		}
		if err := s.sink.Send(ctx, delivery); err != nil {
			s.logger.ErrorWithError(err, "shutdown notice delivery failed for user "+recipient.ID)
		}
	}
}

// GetRental returns one session.
func (s *Service) GetRental(ctx context.Context, id string) (*rntmodels.Rental, error) {
	return s.getRental(ctx, id)
}

// ListRentals returns all sessions, newest first.
func (s *Service) ListRentals(ctx context.Context) ([]rntmodels.Rental, error) {
	return s.rentals.ListRentals(ctx)
}

// ListRentalsByStatus returns sessions in one lifecycle state.
func (s *Service) ListRentalsByStatus(ctx context.Context, status rntmodels.RentalStatus) ([]rntmodels.Rental, error) {
	return s.rentals.ListRentalsByStatus(ctx, status)
}

func (s *Service) getRental(ctx context.Context, id string) (*rntmodels.Rental, error) {
	rental, err := s.rentals.GetRental(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental == nil {
		return nil, rntmodels.NotFoundf("rental %s not found", id)
	}
	return rental, nil
}
