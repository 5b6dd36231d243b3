package implementation

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var machineColumnList = []string{"id", "name", "type", "model", "status", "auto_shutdown", "created_at"}

// Machines are seeded out of band and may carry a NULL model, so the
// queries must coalesce it before scanning into a string.
func TestGetMachineCoalescesNullModel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresMachineRepository(db)

	rows := sqlmock.NewRows(machineColumnList).
		AddRow("m-1", "Oven Hardening", "oven", "", "available", true, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, type, COALESCE(model, ''), status, auto_shutdown, created_at FROM machines WHERE id = $1`)).
		WithArgs("m-1").
		WillReturnRows(rows)

	machine, err := repo.GetMachine(context.Background(), "m-1")
	require.NoError(t, err)
	require.NotNil(t, machine)
	assert.Equal(t, "", machine.Model)
	assert.True(t, machine.AutoShutdown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMachinesCoalescesNullModel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresMachineRepository(db)

	rows := sqlmock.NewRows(machineColumnList).
		AddRow("m-1", "Oven Hardening", "oven", "", "available", true, time.Now()).
		AddRow("m-2", "Pneumatic Trainer", "pneumatic", "PT-200", "available", false, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, type, COALESCE(model, ''), status, auto_shutdown, created_at FROM machines ORDER BY name`)).
		WillReturnRows(rows)

	machines, err := repo.ListMachines(context.Background())
	require.NoError(t, err)
	require.Len(t, machines, 2)
	assert.Equal(t, "", machines[0].Model)
	assert.Equal(t, "PT-200", machines[1].Model)
	assert.NoError(t, mock.ExpectationsWereMet())
}
