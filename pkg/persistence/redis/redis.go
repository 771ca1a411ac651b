// Package redis provides a Redis-backed graph store, one JSON value per
// workflow key. Useful when the graph is hot shared state in front of a
// slower system of record.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/carbonlens/carbonflow/pkg/models"
	"github.com/carbonlens/carbonflow/pkg/persistence"
)

const keyPrefix = "carbonflow:graph:"

// Store implements persistence.GraphStore on Redis.
type Store struct {
	client *goredis.Client
}

// NewStore connects to Redis using the given URL
// (redis://[user:pass@]host:port/db).
func NewStore(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

func key(workflowID string) string {
	return keyPrefix + workflowID
}

// Load reads the graph for a workflow id.
func (s *Store) Load(ctx context.Context, workflowID string) (*models.WorkflowGraph, error) {
	raw, err := s.client.Get(ctx, key(workflowID)).Bytes()
	if errors.Is(err, goredis.Nil) {
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

// Save writes the graph for a workflow id.
func (s *Store) Save(ctx context.Context, workflowID string, graph *models.WorkflowGraph) error {
	raw, err := json.Marshal(graph)
	if err != nil {
		return persistence.NewStoreError("Save", workflowID, err)
	}

	if err := s.client.Set(ctx, key(workflowID), raw, 0).Err(); err != nil {
		return persistence.NewStoreError("Save", workflowID, err)
	}

	return nil
}

// Delete removes the graph for a workflow id.
func (s *Store) Delete(ctx context.Context, workflowID string) error {
	deleted, err := s.client.Del(ctx, key(workflowID)).Result()
	if err != nil {
		return persistence.NewStoreError("Delete", workflowID, err)
	}

	if deleted == 0 {
		return persistence.NewStoreError("Delete", workflowID, persistence.ErrGraphNotFound)
	}

	return nil
}

// List returns all stored workflow ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan graph keys: %w", err)
		}

		for _, k := range keys {
			ids = append(ids, k[len(keyPrefix):])
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return ids, nil
}

// HealthCheck verifies the Redis connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the Redis client.
func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}
