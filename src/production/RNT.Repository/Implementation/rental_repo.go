package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
)

type PostgresRentalRepository struct {
	db *sql.DB
}

func NewPostgresRentalRepository(db *sql.DB) *PostgresRentalRepository {
	return &PostgresRentalRepository{db: db}
}

const rentalColumns = `id, machine_id, user_id, scheduled_start, scheduled_end, status, is_started,
		actual_start, actual_end, extensions, total_extended_minutes, shutdown_reason, created_at`

func (r *PostgresRentalRepository) CreateRental(ctx context.Context, rental rntmodels.Rental) error {
	query := `
		INSERT INTO rentals (` + rentalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	extensionsJSON, err := json.Marshal(ensureExtensionsNotNull(rental.Extensions))
	if err != nil {
		return fmt.Errorf("failed to marshal extensions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		rental.ID, rental.MachineID, rental.UserID,
		rental.ScheduledStart, rental.ScheduledEnd,
		string(rental.Status), rental.IsStarted,
		nullableTime(rental.ActualStart), nullableTime(rental.ActualEnd),
		extensionsJSON, rental.TotalExtended,
		nullableString(rental.ShutdownReason), rental.CreatedAt,
	)
	return err
}

func (r *PostgresRentalRepository) GetRental(ctx context.Context, id string) (*rntmodels.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRentalRepository) ListRentals(ctx context.Context) ([]rntmodels.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *PostgresRentalRepository) ListRentalsByStatus(ctx context.Context, status rntmodels.RentalStatus) ([]rntmodels.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE status = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *PostgresRentalRepository) UpdateRental(ctx context.Context, rental rntmodels.Rental) error {
	query := `
		UPDATE rentals SET
			machine_id = $2, user_id = $3, scheduled_start = $4, scheduled_end = $5,
			status = $6, is_started = $7, actual_start = $8, actual_end = $9,
			extensions = $10, total_extended_minutes = $11, shutdown_reason = $12
		WHERE id = $1
	`

	extensionsJSON, err := json.Marshal(ensureExtensionsNotNull(rental.Extensions))
	if err != nil {
		return fmt.Errorf("failed to marshal extensions: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		rental.ID, rental.MachineID, rental.UserID,
		rental.ScheduledStart, rental.ScheduledEnd,
		string(rental.Status), rental.IsStarted,
		nullableTime(rental.ActualStart), nullableTime(rental.ActualEnd),
		extensionsJSON, rental.TotalExtended,
		nullableString(rental.ShutdownReason),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("rental %s not found", rental.ID)
	}
	return nil
}

func (r *PostgresRentalRepository) FindStartedByMachine(ctx context.Context, machineID string) (*rntmodels.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE machine_id = $1 AND status = $2 LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, machineID, string(rntmodels.RentalStarted)))
}

func (r *PostgresRentalRepository) FindEndingSoon(ctx context.Context, now time.Time, lead time.Duration) ([]rntmodels.Rental, error) {
	query := `
		SELECT ` + rentalColumns + ` FROM rentals
		WHERE status = $1 AND scheduled_end > $2 AND scheduled_end <= $3
		ORDER BY scheduled_end ASC
	`
	rows, err := r.db.QueryContext(ctx, query, string(rntmodels.RentalStarted), now, now.Add(lead))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresRentalRepository) scan(row rowScanner) (*rntmodels.Rental, error) {
	var rental rntmodels.Rental
	var status string
	var actualStart, actualEnd sql.NullTime
	var shutdownReason sql.NullString
	var extensionsJSON []byte

	err := row.Scan(
		&rental.ID, &rental.MachineID, &rental.UserID,
		&rental.ScheduledStart, &rental.ScheduledEnd,
		&status, &rental.IsStarted,
		&actualStart, &actualEnd,
		&extensionsJSON, &rental.TotalExtended,
		&shutdownReason, &rental.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rental.Status = rntmodels.RentalStatus(status)
	rental.ActualStart = timePtr(actualStart)
	rental.ActualEnd = timePtr(actualEnd)
	rental.ShutdownReason = shutdownReason.String

	if len(extensionsJSON) > 0 {
		if err := json.Unmarshal(extensionsJSON, &rental.Extensions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extensions: %w", err)
		}
	}

	return &rental, nil
}

func (r *PostgresRentalRepository) scanOne(row *sql.Row) (*rntmodels.Rental, error) {
	rental, err := r.scan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rental, nil
}

func (r *PostgresRentalRepository) scanAll(rows *sql.Rows) ([]rntmodels.Rental, error) {
	rentals := make([]rntmodels.Rental, 0)
	for rows.Next() {
		rental, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rental)
	}
	return rentals, rows.Err()
}
