package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS instances`).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/001_init.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Failure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))

	_, err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_init.sql")
}

func TestMigrationsDeclareActiveSessionGuard(t *testing.T) {
	body, err := migrationFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "sessions_one_active_per_team")
	assert.Contains(t, string(body), "WHERE remaining_seconds > 0")
}
