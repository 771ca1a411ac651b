// Package postgresql provides a PostgreSQL graph store. One row per
// workflow; the graph document is stored as JSONB with the workflow id as
// join key.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/carbonlens/carbonflow/pkg/models"
	"github.com/carbonlens/carbonflow/pkg/persistence"
)

// Store implements persistence.GraphStore on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to PostgreSQL and runs migrations.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:     database,
		logger: logger.With("module", "postgres_graph_store"),
	}

	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS carbonflow_graphs (
			workflow_id TEXT PRIMARY KEY,
			graph       JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Graph schema ensured")

	return nil
}

// Load reads the graph for a workflow id.
func (s *Store) Load(ctx context.Context, workflowID string) (*models.WorkflowGraph, error) {
	const query = `SELECT graph FROM carbonflow_graphs WHERE workflow_id = $1`

	var raw []byte

	err := s.db.QueryRowContext(ctx, query, workflowID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("Load", workflowID, persistence.ErrGraphNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("Load", workflowID, err)
	}

	graph := &models.WorkflowGraph{}
	if err := json.Unmarshal(raw, graph); err != nil {
		return nil, persistence.NewStoreError("Load", workflowID,
			fmt.Errorf("%w: %v", persistence.ErrCorruptGraph, err))
	}

	return graph, nil
}

// Save upserts the graph for a workflow id.
func (s *Store) Save(ctx context.Context, workflowID string, graph *models.WorkflowGraph) error {
	raw, err := json.Marshal(graph)
	if err != nil {
		return persistence.NewStoreError("Save", workflowID, err)
	}

	const query = `
		INSERT INTO carbonflow_graphs (workflow_id, graph, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (workflow_id)
		DO UPDATE SET graph = EXCLUDED.graph, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, workflowID, raw); err != nil {
		return persistence.NewStoreError("Save", workflowID, err)
	}

	return nil
}

// Delete removes the graph row for a workflow id.
func (s *Store) Delete(ctx context.Context, workflowID string) error {
	const query = `DELETE FROM carbonflow_graphs WHERE workflow_id = $1`

	result, err := s.db.ExecContext(ctx, query, workflowID)
	if err != nil {
		return persistence.NewStoreError("Delete", workflowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", workflowID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Delete", workflowID, persistence.ErrGraphNotFound)
	}

	return nil
}

// List returns stored workflow ids ordered by last update.
func (s *Store) List(ctx context.Context) ([]string, error) {
	const query = `SELECT workflow_id FROM carbonflow_graphs ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow graphs: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workflow id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow graphs: %w", err)
	}

	return ids, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
