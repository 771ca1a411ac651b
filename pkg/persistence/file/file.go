// Package file provides a file-based graph store, one JSON document per
// workflow. Suited for development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbonlens/carbonflow/pkg/models"
	"github.com/carbonlens/carbonflow/pkg/persistence"
)

const graphFileMode = 0o600

// Store implements persistence.GraphStore on the local file system.
type Store struct {
	root string
}

// NewStore creates a file store rooted at the given directory.
func NewStore(root string) (*Store, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	if err := os.MkdirAll(cleanRoot, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store root %s: %w", cleanRoot, err)
	}

	return &Store{root: cleanRoot}, nil
}

func (s *Store) path(workflowID string) string {
	return filepath.Join(s.root, workflowID+".json")
}

// Load reads the graph for a workflow id.
func (s *Store) Load(_ context.Context, workflowID string) (*models.WorkflowGraph, error) {
	data, err := os.ReadFile(s.path(workflowID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStoreError("Load", workflowID, persistence.ErrGraphNotFound)
		}

		return nil, persistence.NewStoreError("Load", workflowID, err)
	}

	graph := &models.WorkflowGraph{}
	if err := json.Unmarshal(data, graph); err != nil {
		return nil, persistence.NewStoreError("Load", workflowID,
			fmt.Errorf("%w: %v", persistence.ErrCorruptGraph, err))
	}

	return graph, nil
}

// Save writes the graph atomically (write temp file, rename over).
func (s *Store) Save(_ context.Context, workflowID string, graph *models.WorkflowGraph) error {
	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return persistence.NewStoreError("Save", workflowID, err)
	}

	tmp := s.path(workflowID) + ".tmp"
	if err := os.WriteFile(tmp, data, graphFileMode); err != nil {
		return persistence.NewStoreError("Save", workflowID, err)
	}

	if err := os.Rename(tmp, s.path(workflowID)); err != nil {
		return persistence.NewStoreError("Save", workflowID, err)
	}

	return nil
}

// Delete removes the graph for a workflow id.
func (s *Store) Delete(_ context.Context, workflowID string) error {
	err := os.Remove(s.path(workflowID))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewStoreError("Delete", workflowID, persistence.ErrGraphNotFound)
	}

	if err != nil {
		return persistence.NewStoreError("Delete", workflowID, err)
	}

	return nil
}

// List returns all stored workflow ids.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list store root %s: %w", s.root, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

// HealthCheck verifies the root directory is reachable.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); err != nil {
		return err
	}

	return nil
}

// Close is a no-op for the file store.
func (s *Store) Close(_ context.Context) error {
	return nil
}
