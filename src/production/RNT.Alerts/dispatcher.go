package alerts

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
)

// ShutdownFunc ends a session from the telemetry path. Wired to the
// rental service's EmergencyShutdown; kept as a function value to avoid
// a package cycle.
type ShutdownFunc func(ctx context.Context, rentalID, reason string) error

// Dispatcher deduplicates and emits alert requests. It is the only
// component allowed to trigger an emergency shutdown from inside the
// telemetry pipeline.
type Dispatcher struct {
	cooldown *CooldownCache
	sink     NotificationSink
	alerts   interfaces.AlertRepository
	users    interfaces.UserRepository
	shutdown ShutdownFunc
	logger   *logger.Logger

	now func() time.Time
}

func NewDispatcher(
	cooldown *CooldownCache,
	sink NotificationSink,
	alertRepo interfaces.AlertRepository,
	userRepo interfaces.UserRepository,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		cooldown: cooldown,
		sink:     sink,
		alerts:   alertRepo,
		users:    userRepo,
		logger:   log.WithComponent("alerts"),
		now:      time.Now,
	}
}

// SetShutdownFunc wires the emergency shutdown path. Must be called
// before the dispatcher sees critical readings on auto-shutdown
// machines.
func (d *Dispatcher) SetShutdownFunc(fn ShutdownFunc) {
	d.shutdown = fn
}

// Notify handles one classified reading. Normal severity clears the
// cooldown for the key and emits nothing; anything above normal is
// deduplicated, delivered to the renter and all operators, and recorded.
func (d *Dispatcher) Notify(ctx context.Context, machine rntmodels.Machine, rental rntmodels.Rental, sensorType string, value float64, unit string, severity rntmodels.Severity, profile rntmodels.ThresholdProfile) error {
	if severity == rntmodels.SeverityNormal {
		d.cooldown.Clear(machine.ID, sensorType)
		return nil
	}

	if !d.cooldown.ShouldSend(machine.ID, sensorType, severity) {
		d.logger.WithField("machine_id", machine.ID).
			WithField("sensor_type", sensorType).
			WithField("severity", string(severity)).
			Debug("alert suppressed by cooldown")
		return nil
	}
	d.cooldown.MarkSent(machine.ID, sensorType, severity)

	title, body := alertContent(machine, sensorType, value, unit, severity, profile)
	data := map[string]string{
		"type":        "MACHINE_ALERT",
		"machineId":   machine.ID,
		"machineName": machine.Name,
		"sensorType":  sensorType,
		"value":       strconv.FormatFloat(value, 'f', -1, 64),
		"severity":    string(severity),
		"basis":       profile.Basis,
	}

	recipients := d.recipients(ctx, rental.UserID)
	for _, recipient := range recipients {
		d.deliver(ctx, recipient, title, body, data)
		d.record(ctx, recipient.ID, machine, sensorType, value, unit, severity, title, body)
	}

	if severity == rntmodels.SeverityCritical && machine.AutoShutdown && d.shutdown != nil {
		reason := fmt.Sprintf("Auto shutdown: sensor %s reached critical threshold (%s%s)",
			sensorType, strconv.FormatFloat(value, 'f', -1, 64), unit)
		if err := d.shutdown(ctx, rental.ID, reason); err != nil {
			d.logger.ErrorWithError(err, "emergency shutdown failed for rental "+rental.ID)
		}
	}

	return nil
}

// recipients resolves the renter plus every operator. A missing renter
// row degrades to operator-only delivery.
func (d *Dispatcher) recipients(ctx context.Context, renterID string) []rntmodels.User {
	recipients := make([]rntmodels.User, 0, 4)

	renter, err := d.users.GetUser(ctx, renterID)
	if err != nil {
		d.logger.ErrorWithError(err, "failed to resolve renter "+renterID)
	} else if renter != nil {
		recipients = append(recipients, *renter)
	}

	operators, err := d.users.ListOperators(ctx)
	if err != nil {
		d.logger.ErrorWithError(err, "failed to list operators")
		return recipients
	}
	for _, operator := range operators {
		if operator.ID == renterID {
			continue
		}
		recipients = append(recipients, operator)
	}
	return recipients
}

func (d *Dispatcher) deliver(ctx context.Context, recipient rntmodels.User, title, body string, data map[string]string) {
	req := DeliveryRequest{
		Title:        title,
		Body:         body,
		RecipientRef: recipient.PushToken,
		Data:         data,
	}
	if req.RecipientRef == "" {
		req.RecipientRef = recipient.ID
	}
	if err := d.sink.Send(ctx, req); err != nil {
		d.logger.ErrorWithError(err, "alert delivery failed for user "+recipient.ID)
	}
}

func (d *Dispatcher) record(ctx context.Context, userID string, machine rntmodels.Machine, sensorType string, value float64, unit string, severity rntmodels.Severity, title, body string) {
	alert := rntmodels.Alert{
		ID:         uuid.NewString(),
		UserID:     userID,
		MachineID:  machine.ID,
		SensorType: sensorType,
		Severity:   severity,
		Title:      title,
		Body:       body,
		Priority:   rntmodels.AlertPriority(severity),
		Value:      value,
		Unit:       unit,
		CreatedAt:  d.now(),
	}
	if err := d.alerts.CreateAlert(ctx, alert); err != nil {
		d.logger.ErrorWithError(err, "failed to persist alert audit record")
	}
}

func alertContent(machine rntmodels.Machine, sensorType string, value float64, unit string, severity rntmodels.Severity, profile rntmodels.ThresholdProfile) (title, body string) {
	reading := fmt.Sprintf("%s %s%s", sensorType, strconv.FormatFloat(value, 'f', -1, 64), unit)

	switch severity {
	case rntmodels.SeverityCaution:
		title = fmt.Sprintf("Caution: %s", machine.Name)
		body = fmt.Sprintf("%s - approaching the safe limit (warning at %g%s)", reading, profile.Warning, unit)
	case rntmodels.SeverityWarning:
		title = fmt.Sprintf("Warning: %s", machine.Name)
		body = fmt.Sprintf("%s - above the warning limit (%g%s)", reading, profile.Warning, unit)
	case rntmodels.SeverityCritical:
		title = fmt.Sprintf("CRITICAL: %s", machine.Name)
		body = fmt.Sprintf("%s - above the critical limit (%g%s), stop the machine", reading, profile.Critical, unit)
	default:
		title = fmt.Sprintf("Info: %s", machine.Name)
		body = reading
	}
	return title, body
}
