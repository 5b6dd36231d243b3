package interfaces

import (
	"context"
	"time"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// Rental Repository (durable, authoritative session state)
// ├── CreateRental() - Insert a Pending booking
// ├── GetRental() - Single rental lookup
// ├── ListRentals() - All rentals, newest first
// ├── ListRentalsByStatus() - Filtered by lifecycle status
// ├── UpdateRental() - Persist a state transition
// ├── FindStartedByMachine() - The one Started session for a machine
// └── FindEndingSoon() - Started sessions whose scheduled end is near

type RentalRepository interface {
	CreateRental(ctx context.Context, rental rntmodels.Rental) error
	GetRental(ctx context.Context, id string) (*rntmodels.Rental, error)
	ListRentals(ctx context.Context) ([]rntmodels.Rental, error)
	ListRentalsByStatus(ctx context.Context, status rntmodels.RentalStatus) ([]rntmodels.Rental, error)
	UpdateRental(ctx context.Context, rental rntmodels.Rental) error

	// FindStartedByMachine returns the single Started session for the
	// machine, or nil when none exists.
	FindStartedByMachine(ctx context.Context, machineID string) (*rntmodels.Rental, error)

	// FindEndingSoon returns Started sessions whose scheduled end falls
	// within (now, now+lead].
	FindEndingSoon(ctx context.Context, now time.Time, lead time.Duration) ([]rntmodels.Rental, error)
}
