package ingestor

import (
	"context"
	"time"

	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	registry "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Registry"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
	thresholds "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Thresholds"
)

// AlertNotifier is the escalation surface the pipeline drives. Satisfied
// by alerts.Dispatcher.
type AlertNotifier interface {
	Notify(ctx context.Context, machine rntmodels.Machine, rental rntmodels.Rental, sensorType string, value float64, unit string, severity rntmodels.Severity, profile rntmodels.ThresholdProfile) error
}

// Pipeline routes parsed events: liveness and command reports into the
// registry, sensor samples through persistence, classification and
// alerting.
type Pipeline struct {
	registry *registry.Registry
	readings interfaces.ReadingRepository
	machines interfaces.MachineRepository
	rentals  interfaces.RentalRepository
	engine   *thresholds.Engine
	notifier AlertNotifier
	logger   *logger.Logger

	now func() time.Time
}

func NewPipeline(
	reg *registry.Registry,
	readings interfaces.ReadingRepository,
	machines interfaces.MachineRepository,
	rentals interfaces.RentalRepository,
	engine *thresholds.Engine,
	notifier AlertNotifier,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		registry: reg,
		readings: readings,
		machines: machines,
		rentals:  rentals,
		engine:   engine,
		notifier: notifier,
		logger:   log.WithComponent("pipeline"),
		now:      time.Now,
	}
}

// Handle processes one event. Errors are reported, never fatal: a bad
// message must not take the consumer down.
func (p *Pipeline) Handle(ctx context.Context, event *Event) error {
	switch event.Kind {
	case KindHeartbeat:
		p.registry.RecordHeartbeat(*event.Heartbeat)
		return nil

	case KindConnection:
		p.registry.RecordConnectionStatus(*event.Connection)
		return nil

	case KindReport:
		p.registry.RecordCommandReport(*event.Report)
		p.logger.WithField("chip_id", event.Report.ChipID).
			WithField("status", event.Report.Status).
			WithField("message", event.Report.Message).
			Info("device command report")
		return nil

	case KindSensorData:
		return p.handleSensorData(ctx, event)
	}

	return rntmodels.Validationf("unhandled event kind %q", event.Kind)
}

// handleSensorData persists one sample and, when it is plausible and
// belongs to an active session, classifies it and drives alerting.
// Samples without a started session are dropped before persistence.
func (p *Pipeline) handleSensorData(ctx context.Context, event *Event) error {
	data := event.SensorData

	rental, err := p.rentals.FindStartedByMachine(ctx, data.MachineID)
	if err != nil {
		return err
	}
	if rental == nil {
		p.logger.WithField("machine_id", data.MachineID).
			WithField("sensor_id", data.SensorID).
			Debug("dropping sensor data without an active rental")
		return nil
	}

	unit := data.Unit
	if unit == "" {
		unit = rntmodels.DefaultUnit(data.SensorType)
	}

	reading := rntmodels.SensorReading{
		MachineID:       data.MachineID,
		RentalID:        rental.ID,
		SensorID:        data.SensorID,
		SensorType:      data.SensorType,
		Value:           data.Value,
		Unit:            unit,
		Topic:           event.Topic,
		DeviceTimestamp: data.Timestamp,
		IngestedAt:      p.now(),
		IsValid:         rntmodels.Plausible(data.SensorType, data.Value),
	}
	if device, ok := p.registry.FindByMachine(data.MachineID); ok {
		reading.ChipID = device.ChipID
	}

	if err := p.readings.CreateReading(ctx, reading); err != nil {
		return err
	}

	if !reading.IsValid {
		p.logger.WithField("machine_id", data.MachineID).
			WithField("sensor_type", data.SensorType).
			WithField("value", data.Value).
			Warn("implausible sensor value recorded, skipping classification")
		return nil
	}

	machine, err := p.machines.GetMachine(ctx, data.MachineID)
	if err != nil {
		return err
	}
	if machine == nil {
		return rntmodels.NotFoundf("machine %s not found for sensor data", data.MachineID)
	}

	machineType := thresholds.MachineTypeFor(*machine)
	severity, profile := p.engine.Classify(ctx, machineType, data.SensorType, data.MachineID, data.Value)

	status := rntmodels.LiveStatus{
		MachineID:  data.MachineID,
		SensorType: data.SensorType,
		Value:      data.Value,
		Unit:       unit,
		Severity:   severity,
		UpdatedAt:  reading.IngestedAt,
	}
	if err := p.machines.UpsertLiveStatus(ctx, status); err != nil {
		p.logger.ErrorWithError(err, "live status upsert failed for machine "+data.MachineID)
	}

	return p.notifier.Notify(ctx, *machine, *rental, data.SensorType, data.Value, unit, severity, profile)
}
