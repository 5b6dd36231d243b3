package implementation

import (
	"database/sql"
	"time"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

// ensureExtensionsNotNull ensures the extension log marshals as [] rather
// than null.
func ensureExtensionsNotNull(extensions []rntmodels.RentalExtension) []rntmodels.RentalExtension {
	if extensions == nil {
		return []rntmodels.RentalExtension{}
	}
	return extensions
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}
