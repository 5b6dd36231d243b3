package implementation

import (
	"context"
	"database/sql"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

type PostgresMachineRepository struct {
	db *sql.DB
}

func NewPostgresMachineRepository(db *sql.DB) *PostgresMachineRepository {
	return &PostgresMachineRepository{db: db}
}

func (r *PostgresMachineRepository) GetMachine(ctx context.Context, id string) (*rntmodels.Machine, error) {
	query := `SELECT id, name, type, COALESCE(model, ''), status, auto_shutdown, created_at FROM machines WHERE id = $1`

	var machine rntmodels.Machine
	var status string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&machine.ID, &machine.Name, &machine.Type, &machine.Model,
		&status, &machine.AutoShutdown, &machine.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	machine.Status = rntmodels.MachineStatus(status)
	return &machine, nil
}

func (r *PostgresMachineRepository) ListMachines(ctx context.Context) ([]rntmodels.Machine, error) {
	query := `SELECT id, name, type, COALESCE(model, ''), status, auto_shutdown, created_at FROM machines ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	machines := make([]rntmodels.Machine, 0)
	for rows.Next() {
		var machine rntmodels.Machine
		var status string
		if err := rows.Scan(
			&machine.ID, &machine.Name, &machine.Type, &machine.Model,
			&status, &machine.AutoShutdown, &machine.CreatedAt,
		); err != nil {
			return nil, err
		}
		machine.Status = rntmodels.MachineStatus(status)
		machines = append(machines, machine)
	}
	return machines, rows.Err()
}

// UpsertLiveStatus overwrites the snapshot for (machine, sensor type).
// Last write wins.
func (r *PostgresMachineRepository) UpsertLiveStatus(ctx context.Context, status rntmodels.LiveStatus) error {
	query := `
		INSERT INTO machine_status (machine_id, sensor_type, value, unit, severity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (machine_id, sensor_type)
		DO UPDATE SET value = EXCLUDED.value, unit = EXCLUDED.unit,
			severity = EXCLUDED.severity, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		status.MachineID, status.SensorType, status.Value,
		status.Unit, string(status.Severity), status.UpdatedAt,
	)
	return err
}

func (r *PostgresMachineRepository) GetLiveStatus(ctx context.Context, machineID string) ([]rntmodels.LiveStatus, error) {
	query := `
		SELECT machine_id, sensor_type, value, unit, severity, updated_at
		FROM machine_status WHERE machine_id = $1 ORDER BY sensor_type
	`

	rows, err := r.db.QueryContext(ctx, query, machineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]rntmodels.LiveStatus, 0)
	for rows.Next() {
		var status rntmodels.LiveStatus
		var severity string
		if err := rows.Scan(
			&status.MachineID, &status.SensorType, &status.Value,
			&status.Unit, &severity, &status.UpdatedAt,
		); err != nil {
			return nil, err
		}
		status.Severity = rntmodels.Severity(severity)
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}
