package interfaces

import (
	"context"
	"time"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// ReadingQuery filters the append-only reading log.
type ReadingQuery struct {
	MachineID  string
	SensorType string
	Since      time.Time
	Limit      int
}

type ReadingRepository interface {
	// CreateReading appends one reading. Implausible readings are
	// appended too, marked invalid.
	CreateReading(ctx context.Context, reading rntmodels.SensorReading) error

	// ValidValuesSince returns the values of valid readings for the
	// sensor type since the given time, optionally scoped to one
	// machine. Feeds the threshold statistics.
	ValidValuesSince(ctx context.Context, sensorType, machineID string, since time.Time) ([]float64, error)

	// LatestReadings returns the newest readings matching the query.
	LatestReadings(ctx context.Context, query ReadingQuery) ([]rntmodels.SensorReading, error)
}
