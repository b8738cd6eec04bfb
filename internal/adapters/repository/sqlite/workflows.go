package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/pkg/serialization"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// WorkflowStore implements the workflow repository for SQLite
type WorkflowStore struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
	now        func() time.Time
}

// NewWorkflowStore creates a new SQLite workflow store
func NewWorkflowStore(db *sql.DB, serializer *serialization.Serializer) *WorkflowStore {
	if serializer == nil {
		serializer = serialization.DocumentSerializer(nil)
	}
	return &WorkflowStore{
		db:         db,
		serializer: serializer,
		tableName:  DefaultWorkflowTable,
		now:        time.Now,
	}
}

// WithTableName overrides the default table name. Unsafe identifiers are
// ignored.
func (s *WorkflowStore) WithTableName(name string) *WorkflowStore {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

// CreateTables creates the workflow table
func (s *WorkflowStore) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			document BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Save validates and upserts g, keeping created_at from an earlier version
func (s *WorkflowStore) Save(ctx context.Context, g *graph.Graph) error {
	if err := validation.ValidateGraph(g); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	doc := g.Clone()
	now := s.now()
	doc.UpdatedAt = now
	doc.CreatedAt = now

	var created int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT created_at FROM %s WHERE id = ?", s.tableName), doc.ID).Scan(&created)
	switch {
	case err == nil:
		doc.CreatedAt = time.Unix(0, created)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	data, err := s.serializer.Serialize(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize workflow: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.Name, data, doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// Get retrieves a workflow by id
func (s *WorkflowStore) Get(ctx context.Context, id string) (*graph.Graph, error) {
	if id == "" {
		return nil, graph.ErrInvalidGraphID
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT document FROM %s WHERE id = ?", s.tableName), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, graph.ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	return s.decode(data)
}

// List returns every workflow ordered by id
func (s *WorkflowStore) List(ctx context.Context) ([]*graph.Graph, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT document FROM %s ORDER BY id", s.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []*graph.Graph
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}
		g, err := s.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Delete removes a workflow by id
func (s *WorkflowStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return graph.ErrInvalidGraphID
	}
	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName), id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return graph.ErrGraphNotFound
	}
	return nil
}

func (s *WorkflowStore) decode(data []byte) (*graph.Graph, error) {
	var g graph.Graph
	if err := s.serializer.Deserialize(data, &g); err != nil {
		return nil, fmt.Errorf("failed to deserialize workflow: %w", err)
	}
	return &g, nil
}
