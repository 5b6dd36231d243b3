package interfaces

import (
	"context"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

type MachineRepository interface {
	// Catalog reads (catalog mutation is owned by an external service)
	GetMachine(ctx context.Context, id string) (*rntmodels.Machine, error)
	ListMachines(ctx context.Context) ([]rntmodels.Machine, error)

	// Live status snapshot, last-write-wins per (machine, sensor type)
	UpsertLiveStatus(ctx context.Context, status rntmodels.LiveStatus) error
	GetLiveStatus(ctx context.Context, machineID string) ([]rntmodels.LiveStatus, error)
}
