package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
)

// ConnectPostgresWithTimeout opens the PostgreSQL connection and verifies
// it within the timeout.
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping PostgreSQL: %v", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// CreateTables creates the required tables if they don't exist.
func CreateTables(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createUsersTable := `
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			role        TEXT NOT NULL,
			push_token  TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createMachinesTable := `
		CREATE TABLE IF NOT EXISTS machines (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			type          TEXT NOT NULL,
			model         TEXT,
			status        TEXT NOT NULL DEFAULT 'available',
			auto_shutdown BOOLEAN NOT NULL DEFAULT false,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createRentalsTable := `
		CREATE TABLE IF NOT EXISTS rentals (
			id                     TEXT PRIMARY KEY,
			machine_id             TEXT NOT NULL REFERENCES machines(id),
			user_id                TEXT NOT NULL REFERENCES users(id),
			scheduled_start        TIMESTAMPTZ NOT NULL,
			scheduled_end          TIMESTAMPTZ NOT NULL,
			status                 TEXT NOT NULL DEFAULT 'Pending',
			is_started             BOOLEAN NOT NULL DEFAULT false,
			actual_start           TIMESTAMPTZ,
			actual_end             TIMESTAMPTZ,
			extensions             JSONB NOT NULL DEFAULT '[]'::jsonb,
			total_extended_minutes INTEGER NOT NULL DEFAULT 0,
			shutdown_reason        TEXT,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createAlertsTable := `
		CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			machine_id  TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			severity    TEXT NOT NULL,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL,
			priority    TEXT NOT NULL,
			value       DOUBLE PRECISION NOT NULL,
			unit        TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createMachineStatusTable := `
		CREATE TABLE IF NOT EXISTS machine_status (
			machine_id  TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			value       DOUBLE PRECISION NOT NULL,
			unit        TEXT,
			severity    TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (machine_id, sensor_type)
		);
	`

	// A machine may carry at most one Started session.
	createIndexes := `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_rentals_one_started_per_machine
			ON rentals (machine_id) WHERE status = 'Started';
		CREATE INDEX IF NOT EXISTS idx_rentals_status ON rentals (status);
		CREATE INDEX IF NOT EXISTS idx_rentals_machine ON rentals (machine_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_machine_created ON alerts (machine_id, created_at DESC);
	`

	queries := []string{
		createUsersTable,
		createMachinesTable,
		createRentalsTable,
		createAlertsTable,
		createMachineStatusTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %v", err)
		}
	}

	return nil
}
