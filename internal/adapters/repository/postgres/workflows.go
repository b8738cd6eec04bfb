package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/pkg/serialization"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// WorkflowStore implements the workflow repository for PostgreSQL
type WorkflowStore struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
	now        func() time.Time
}

// NewWorkflowStore creates a new PostgreSQL workflow store
func NewWorkflowStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *WorkflowStore {
	if serializer == nil {
		serializer = serialization.DocumentSerializer(nil)
	}
	return &WorkflowStore{
		pool:       pool,
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
			id VARCHAR(100) PRIMARY KEY,
			name VARCHAR(200) NOT NULL DEFAULT '',
			document BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Save validates and upserts g. The document keeps the created_at of the
// first version.
func (s *WorkflowStore) Save(ctx context.Context, g *graph.Graph) error {
	if err := validation.ValidateGraph(g); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	doc := g.Clone()
	now := s.now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now

	var created time.Time
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT created_at FROM %s WHERE id = $1", s.tableName), doc.ID).Scan(&created)
	switch {
	case err == nil:
		doc.CreatedAt = created
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	data, err := s.serializer.Serialize(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize workflow: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query, doc.ID, doc.Name, data, doc.CreatedAt, doc.UpdatedAt); err != nil {
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
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT document FROM %s WHERE id = $1", s.tableName), id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, graph.ErrGraphNotFound
		}
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	return s.decode(data)
}

// List returns every workflow ordered by id
func (s *WorkflowStore) List(ctx context.Context) ([]*graph.Graph, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT document FROM %s ORDER BY id", s.tableName))
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
	result, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName), id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
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
