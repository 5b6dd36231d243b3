package implementation

import (
	"context"
	"database/sql"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

const alertColumns = `id, user_id, machine_id, sensor_type, severity, title, body, priority, value, unit, created_at`

type PostgresAlertRepository struct {
	db *sql.DB
}

func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

func (r *PostgresAlertRepository) CreateAlert(ctx context.Context, alert rntmodels.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.UserID, alert.MachineID, alert.SensorType,
		string(alert.Severity), alert.Title, alert.Body, alert.Priority,
		alert.Value, alert.Unit, alert.CreatedAt,
	)
	return err
}

func (r *PostgresAlertRepository) ListAlerts(ctx context.Context, machineID string, limit int) ([]rntmodels.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts WHERE ($1 = '' OR machine_id = $1) ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, machineID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]rntmodels.Alert, 0)
	for rows.Next() {
		var alert rntmodels.Alert
		var severity string
		if err := rows.Scan(
			&alert.ID, &alert.UserID, &alert.MachineID, &alert.SensorType,
			&severity, &alert.Title, &alert.Body, &alert.Priority,
			&alert.Value, &alert.Unit, &alert.CreatedAt,
		); err != nil {
			return nil, err
		}
		alert.Severity = rntmodels.Severity(severity)
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
