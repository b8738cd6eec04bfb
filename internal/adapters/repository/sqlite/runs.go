package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flowcanvas/flowcanvas/internal/core/run"
	"github.com/flowcanvas/flowcanvas/pkg/serialization"
)

// RunStore implements run.Recorder for SQLite
type RunStore struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// NewRunStore creates a new SQLite run store
func NewRunStore(db *sql.DB, serializer *serialization.Serializer) *RunStore {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &RunStore{
		db:         db,
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
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			record BLOB NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			executed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_%s_workflow_id ON %s (workflow_id);
		CREATE INDEX IF NOT EXISTS idx_%s_started_at ON %s (started_at);
	`, s.tableName, s.tableName, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
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
		INSERT OR REPLACE INTO %s (id, workflow_id, record, started_at, finished_at, executed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.WorkflowID, data, rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
		rec.Metadata.Executed, rec.Metadata.Failed)
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
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT record FROM %s WHERE id = ?", s.tableName), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName), id)
	if err != nil {
		return fmt.Errorf("%w: %v", run.ErrDeleteFailed, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return run.ErrRunNotFound
	}
	return nil
}

// buildListQuery constructs the SQL query for listing runs
func (s *RunStore) buildListQuery(filter run.Filter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT record FROM %s WHERE 1=1", s.tableName)
	args := make([]interface{}, 0)

	if filter.WorkflowID != "" {
		query += " AND workflow_id = ?"
		args = append(args, filter.WorkflowID)
	}

	if filter.Since != nil {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	if filter.Before != nil {
		query += " AND started_at < ?"
		args = append(args, filter.Before.UnixNano())
	}

	query += " ORDER BY started_at DESC, id DESC"

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = -1
		}
		query += " LIMIT ?"
		args = append(args, limit)
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
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
