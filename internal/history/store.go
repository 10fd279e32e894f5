// File: internal/history/store.go

// Package history persists per-form run outcomes to PostgreSQL so operators
// can audit what was submitted for whom, and when.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"campusdaily/internal/routine"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS submission_history (
		id          UUID PRIMARY KEY,
		username    TEXT NOT NULL,
		school      TEXT NOT NULL,
		subject     TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	);
`

var historyColumns = []string{"id", "username", "school", "subject", "outcome", "recorded_at"}

// DBPool abstracts pgxpool.Pool for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL implementation of routine.Recorder.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New verifies the connection and returns a store.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("history: pinging database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("history"),
	}, nil
}

// EnsureSchema creates the history table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("history: ensuring schema: %w", err)
	}
	return nil
}

// Record batch-inserts one run's entries in a single transaction.
func (s *Store) Record(ctx context.Context, entries []routine.RecordEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("history: beginning transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{
			uuid.NewString(), e.Username, e.School,
			e.Subject, string(e.Outcome), e.At.UTC(),
		}
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"submission_history"}, historyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("history: copying entries: %w", err)
	}
	if int(copied) != len(entries) {
		return fmt.Errorf("history: copied %d of %d entries", copied, len(entries))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("history: committing transaction: %w", err)
	}
	s.log.Debug("Run history recorded", zap.Int("entries", len(entries)))
	return nil
}
