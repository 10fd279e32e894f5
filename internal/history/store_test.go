// File: internal/history/store_test.go
package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campusdaily/internal/routine"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func sampleEntries() []routine.RecordEntry {
	at := time.Date(2026, 3, 1, 11, 30, 0, 0, time.Local)
	return []routine.RecordEntry{
		{Username: "20230001", School: "Demo University", Subject: "Daily Health Report", Outcome: routine.OutcomeOK, At: at},
		{Username: "20230001", School: "Demo University", Subject: "Travel Survey", Outcome: routine.OutcomeMisbehaved, At: at},
	}
}

func TestNew_PingFailure(t *testing.T) {
	pool := newMockPool(t)
	pingErr := errors.New("database unavailable")
	pool.ExpectPing().WillReturnError(pingErr)

	_, err := New(context.Background(), pool, zap.NewNop())
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectPing()
	pool.ExpectExec("CREATE TABLE IF NOT EXISTS submission_history").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store, err := New(context.Background(), pool, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRecord(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectPing()
	pool.ExpectBegin()
	pool.ExpectCopyFrom(pgx.Identifier{"submission_history"}, historyColumns).
		WillReturnResult(2)
	pool.ExpectCommit()
	pool.ExpectRollback() // deferred rollback after commit is a no-op

	store, err := New(context.Background(), pool, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), sampleEntries()))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRecord_CopyCountMismatch(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectPing()
	pool.ExpectBegin()
	pool.ExpectCopyFrom(pgx.Identifier{"submission_history"}, historyColumns).
		WillReturnResult(1)
	pool.ExpectRollback()

	store, err := New(context.Background(), pool, zap.NewNop())
	require.NoError(t, err)
	err = store.Record(context.Background(), sampleEntries())
	assert.ErrorContains(t, err, "copied 1 of 2")
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRecord_Empty(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectPing()

	store, err := New(context.Background(), pool, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), nil))
	assert.NoError(t, pool.ExpectationsWereMet())
}
