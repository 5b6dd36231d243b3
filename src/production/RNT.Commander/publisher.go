package commander

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	registry "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Registry"
)

// MessagePublisher is the broker-facing surface the commander needs.
// Satisfied by PahoPublisher in production and by fakes in tests.
type MessagePublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// PahoPublisher adapts a connected paho client.
type PahoPublisher struct {
	Client mqtt.Client
}

func (p *PahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if p.Client == nil || !p.Client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	token := p.Client.Publish(topic, qos, retained, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Publisher sends configuration/start/stop commands to controller
// devices. Delivery is at-most-once, best-effort: no retry, failures are
// reported to the caller and logged.
type Publisher struct {
	mq       MessagePublisher
	registry *registry.Registry
	logger   *logger.Logger

	readIntervalMillis int
}

func NewPublisher(mq MessagePublisher, reg *registry.Registry, log *logger.Logger) *Publisher {
	return &Publisher{
		mq:                 mq,
		registry:           reg,
		logger:             log.WithComponent("commander"),
		readIntervalMillis: 1000,
	}
}

func commandTopic(chipID string) string {
	return fmt.Sprintf("device/%s/config", chipID)
}

// Publish marshals the envelope and sends it on the device's command
// channel.
func (p *Publisher) Publish(chipID string, envelope rntmodels.CommandEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := commandTopic(chipID)
	if err := p.mq.Publish(topic, 1, false, payload); err != nil {
		return rntmodels.Transportf(err, "publish to %s failed", topic)
	}

	p.logger.WithField("topic", topic).
		WithField("action", envelope.Action).
		Info("command published")
	return nil
}

// BindDeviceToSession selects exactly one available device, publishes
// the start command to it and records the binding only on a confirmed
// publish. Returns the bound chip id.
func (p *Publisher) BindDeviceToSession(machineID, rentalID string) (string, error) {
	available := p.registry.FindAvailable()
	if len(available) == 0 {
		return "", rntmodels.Transportf(nil, "no available controller device for machine %s", machineID)
	}

	device := available[0]
	envelope := rntmodels.CommandEnvelope{
		Action:    rntmodels.ActionStartRental,
		MachineID: machineID,
		RentalID:  rentalID,
		Timestamp: time.Now().UnixMilli(),
		SensorConfig: &rntmodels.SensorConfig{
			ReadIntervalMillis: p.readIntervalMillis,
		},
	}

	if err := p.Publish(device.ChipID, envelope); err != nil {
		return "", err
	}

	if err := p.registry.Assign(device.ChipID, machineID, rentalID); err != nil {
		// The command is already out; surface the conflict but leave
		// recovery to the next heartbeat.
		p.logger.ErrorWithError(err, "device assignment failed after publish")
		return "", err
	}

	return device.ChipID, nil
}

// PublishStop sends the stop command to the bound device.
func (p *Publisher) PublishStop(chipID, machineID, rentalID string) error {
	return p.Publish(chipID, rntmodels.CommandEnvelope{
		Action:    rntmodels.ActionStopRental,
		MachineID: machineID,
		RentalID:  rentalID,
		Timestamp: time.Now().UnixMilli(),
	})
}

// PublishUpdate re-publishes the session window to the bound device
// after an extension.
func (p *Publisher) PublishUpdate(chipID, machineID, rentalID string, scheduledEnd time.Time) error {
	return p.Publish(chipID, rntmodels.CommandEnvelope{
		Action:       rntmodels.ActionUpdateRental,
		MachineID:    machineID,
		RentalID:     rentalID,
		Timestamp:    time.Now().UnixMilli(),
		ScheduledEnd: scheduledEnd.UnixMilli(),
	})
}
