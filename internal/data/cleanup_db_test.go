package data_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsweeper/dbsweeper/internal/data"
)

const deleteStmt = "DELETE FROM events WHERE created_at < DATE_SUB(NOW(), INTERVAL 30 DAY) LIMIT 1000"

func TestCleanupDB_ExecuteQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(deleteStmt)).
		WillReturnResult(sqlmock.NewResult(0, 42))

	cdb := data.NewCleanupDB(db, nil)
	rows, elapsed, err := cdb.ExecuteQuery(context.Background(), deleteStmt)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), rows)
	assert.GreaterOrEqual(t, elapsed, 0.0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupDB_ExecuteQuery_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(deleteStmt)).
		WillReturnError(errors.New("lock wait timeout exceeded"))

	cdb := data.NewCleanupDB(db, nil)
	_, _, err = cdb.ExecuteQuery(context.Background(), deleteStmt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock wait timeout")
}

func TestCleanupDB_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	cdb := data.NewCleanupDB(db, nil)
	assert.NoError(t, cdb.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
