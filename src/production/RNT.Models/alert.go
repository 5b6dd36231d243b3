package rntmodels

import "time"

// Alert is the audit record of one emitted alert.
type Alert struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	MachineID  string    `json:"machine_id" db:"machine_id"`
	SensorType string    `json:"sensor_type" db:"sensor_type"`
	Severity   Severity  `json:"severity" db:"severity"`
	Title      string    `json:"title" db:"title"`
	Body       string    `json:"body" db:"body"`
	Priority   string    `json:"priority" db:"priority"`
	Value      float64   `json:"value" db:"value"`
	Unit       string    `json:"unit" db:"unit"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AlertPriority maps a severity tier to a delivery priority.
func AlertPriority(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "urgent"
	case SeverityWarning:
		return "high"
	case SeverityCaution:
		return "medium"
	default:
		return "low"
	}
}
