package interfaces

import (
	"context"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// UserRepository resolves alert recipients. Account management itself is
// external; only identity, role and push token live here.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*rntmodels.User, error)
	ListOperators(ctx context.Context) ([]rntmodels.User, error)
}
