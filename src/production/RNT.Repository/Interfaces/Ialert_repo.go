package interfaces

import (
	"context"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

type AlertRepository interface {
	CreateAlert(ctx context.Context, alert rntmodels.Alert) error

	// ListAlerts returns alerts newest first, optionally filtered to one
	// machine when machineID is non-empty.
	ListAlerts(ctx context.Context, machineID string, limit int) ([]rntmodels.Alert, error)
}
