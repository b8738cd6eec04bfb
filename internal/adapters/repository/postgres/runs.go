package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcanvas/flowcanvas/internal/core/run"
	"github.com/flowcanvas/flowcanvas/pkg/serialization"
)

// RunStore implements run.Recorder for PostgreSQL
type RunStore struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewRunStore creates a new PostgreSQL run store
func NewRunStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *RunStore {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &RunStore{
		pool:       pool,
		serializer: serializer,
		tableName:  DefaultRunTable,
	}
}

// WithTableName overrides the default table name. Unsafe identifiers are
// ignored.
func (s *RunStore) WithTableName(name string) *RunStore {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

// CreateTables creates the run table
func (s *RunStore) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			workflow_id VARCHAR(100) NOT NULL,
			record BYTEA NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			executed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_%s_workflow_id ON %s (workflow_id);
		CREATE INDEX IF NOT EXISTS idx_%s_started_at ON %s (started_at);
	`, s.tableName, s.tableName, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Save stores a run record
func (s *RunStore) Save(ctx context.Context, rec *run.Record) error {
	if rec == nil {
		return run.ErrInvalidRunID
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := s.serializer.Serialize(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, workflow_id, record, started_at, finished_at, executed, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			record = EXCLUDED.record,
			finished_at = EXCLUDED.finished_at,
			executed = EXCLUDED.executed,
			failed = EXCLUDED.failed
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.WorkflowID, data, rec.StartedAt, rec.FinishedAt, rec.Metadata.Executed, rec.Metadata.Failed)
	if err != nil {
		return fmt.Errorf("%w: %v", run.ErrSaveFailed, err)
	}
	return nil
}

// Load retrieves a run record by id
func (s *RunStore) Load(ctx context.Context, id string) (*run.Record, error) {
	if id == "" {
		return nil, run.ErrInvalidRunID
	}
	var data []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT record FROM %s WHERE id = $1", s.tableName), id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, run.ErrRunNotFound
		}
		return nil, fmt.Errorf("%w: %v", run.ErrLoadFailed, err)
	}
	return s.decode(data)
}

// List retrieves run records newest first
func (s *RunStore) List(ctx context.Context, filter run.Filter) ([]*run.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*run.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		rec, err := s.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a run record by id
func (s *RunStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return run.ErrInvalidRunID
	}
	result, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName), id)
	if err != nil {
		return fmt.Errorf("%w: %v", run.ErrDeleteFailed, err)
	}
	if result.RowsAffected() == 0 {
		return run.ErrRunNotFound
	}
	return nil
}

// buildListQuery constructs the SQL query for listing runs
func (s *RunStore) buildListQuery(filter run.Filter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT record FROM %s WHERE 1=1", s.tableName)
	args := make([]interface{}, 0)
	argCount := 0

	if filter.WorkflowID != "" {
		argCount++
		query += fmt.Sprintf(" AND workflow_id = $%d", argCount)
		args = append(args, filter.WorkflowID)
	}

	if filter.Since != nil {
		argCount++
		query += fmt.Sprintf(" AND started_at >= $%d", argCount)
		args = append(args, *filter.Since)
	}

	if filter.Before != nil {
		argCount++
		query += fmt.Sprintf(" AND started_at < $%d", argCount)
		args = append(args, *filter.Before)
	}

	query += " ORDER BY started_at DESC, id DESC"

	if filter.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	return query, args
}

func (s *RunStore) decode(data []byte) (*run.Record, error) {
	var rec run.Record
	if err := s.serializer.Deserialize(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &rec, nil
}
