package ingestor

import (
	"encoding/json"
	"strings"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// EventKind identifies which topic family a message arrived on.
type EventKind string

const (
	KindHeartbeat  EventKind = "heartbeat"
	KindConnection EventKind = "connection"
	KindReport     EventKind = "report"
	KindSensorData EventKind = "sensor_data"
)

// Event is one parsed inbound message. Exactly one of the payload
// fields is set, matching Kind.
type Event struct {
	Kind       EventKind
	Topic      string
	Heartbeat  *rntmodels.Heartbeat
	Connection *rntmodels.ConnectionStatus
	Report     *rntmodels.CommandReport
	SensorData *rntmodels.SensorData
}

// ParseMessage maps a topic and payload onto a typed event.
//
// Topic families:
//
//	device/{chipId}/heartbeat
//	device/{chipId}/connection
//	device/{chipId}/report
//	sensor/{sensorId}/data
func ParseMessage(topic string, payload []byte) (*Event, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return nil, rntmodels.Validationf("unrecognized topic %q", topic)
	}

	switch {
	case parts[0] == "device" && parts[2] == "heartbeat":
		var hb rntmodels.Heartbeat
		if err := json.Unmarshal(payload, &hb); err != nil {
			return nil, rntmodels.Validationf("malformed heartbeat on %s: %v", topic, err)
		}
		hb.ChipID = parts[1]
		return &Event{Kind: KindHeartbeat, Topic: topic, Heartbeat: &hb}, nil

	case parts[0] == "device" && parts[2] == "connection":
		var cs rntmodels.ConnectionStatus
		if err := json.Unmarshal(payload, &cs); err != nil {
			return nil, rntmodels.Validationf("malformed connection status on %s: %v", topic, err)
		}
		if cs.Status != "online" && cs.Status != "offline" {
			return nil, rntmodels.Validationf("connection status %q on %s is neither online nor offline", cs.Status, topic)
		}
		cs.ChipID = parts[1]
		return &Event{Kind: KindConnection, Topic: topic, Connection: &cs}, nil

	case parts[0] == "device" && parts[2] == "report":
		var report rntmodels.CommandReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, rntmodels.Validationf("malformed command report on %s: %v", topic, err)
		}
		report.ChipID = parts[1]
		return &Event{Kind: KindReport, Topic: topic, Report: &report}, nil

	case parts[0] == "sensor" && parts[2] == "data":
		var data rntmodels.SensorData
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, rntmodels.Validationf("malformed sensor data on %s: %v", topic, err)
		}
		// The topic segment is authoritative for the sensor identity.
		data.SensorID = parts[1]
		if data.SensorType == "" {
			return nil, rntmodels.Validationf("sensor data on %s missing sensorType", topic)
		}
		if data.MachineID == "" {
			return nil, rntmodels.Validationf("sensor data on %s missing machineId", topic)
		}
		return &Event{Kind: KindSensorData, Topic: topic, SensorData: &data}, nil
	}

	return nil, rntmodels.Validationf("unrecognized topic %q", topic)
}
