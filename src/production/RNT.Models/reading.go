package rntmodels

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SensorReading is one device emission, appended to the reading log.
// Readings outside plausibility bounds are still persisted with
// IsValid=false; they are excluded from threshold statistics and never
// trigger alerts.
type SensorReading struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	MachineID       string             `bson:"machine_id" json:"machine_id"`
	RentalID        string             `bson:"rental_id,omitempty" json:"rental_id,omitempty"`
	ChipID          string             `bson:"chip_id,omitempty" json:"chip_id,omitempty"`
	SensorID        string             `bson:"sensor_id" json:"sensor_id"`
	SensorType      string             `bson:"sensor_type" json:"sensor_type"`
	Value           float64            `bson:"value" json:"value"`
	Unit            string             `bson:"unit" json:"unit"`
	Topic           string             `bson:"mqtt_topic,omitempty" json:"mqtt_topic,omitempty"`
	DeviceTimestamp int64              `bson:"device_timestamp,omitempty" json:"device_timestamp,omitempty"`
	IngestedAt      time.Time          `bson:"ingested_at" json:"ingested_at"`
	IsValid         bool               `bson:"is_valid" json:"is_valid"`
}

// DefaultUnit returns the display unit for a sensor type.
func DefaultUnit(sensorType string) string {
	switch sensorType {
	case "suhu":
		return "°C"
	case "kelembaban":
		return "%"
	case "tekanan":
		return "bar"
	case "getaran":
		return "mm/s"
	case "current":
		return "A"
	default:
		return ""
	}
}

// PlausibilityBounds returns the physical plausibility range for a sensor
// type. Sensor types without known bounds accept any value.
func PlausibilityBounds(sensorType string) (min, max float64, known bool) {
	switch sensorType {
	case "suhu":
		return -50, 1000, true
	case "kelembaban":
		return 0, 100, true
	case "tekanan":
		return 0, 15, true
	case "getaran":
		return 0, 50, true
	case "current":
		return 0, 100, true
	default:
		return 0, 0, false
	}
}

// Plausible reports whether value is within the physical bounds for the
// sensor type.
func Plausible(sensorType string, value float64) bool {
	min, max, known := PlausibilityBounds(sensorType)
	if !known {
		return true
	}
	return value >= min && value <= max
}
