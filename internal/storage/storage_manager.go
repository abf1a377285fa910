/**
 * Storage Manager for the text annotation worker
 *
 * Coordinates the document object store (filesystem or PostgreSQL) and the
 * optional PostgreSQL job records behind one handle owned by the process.
 */

package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Object store backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// StorageConfig selects and configures the storage backends
type StorageConfig struct {
	Backend     string // "file" or "postgres"
	Root        string // root directory for the file backend
	DatabaseURL string // enables job records; required for the postgres backend
}

// StorageManager coordinates object and job storage
type StorageManager struct {
	objects  ObjectStore
	postgres *PostgresClient
}

// NewStorageManager creates a new storage manager
func NewStorageManager(ctx context.Context, cfg *StorageConfig) (*StorageManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	var postgres *PostgresClient
	if cfg.DatabaseURL != "" {
		client, err := NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
		}
		if err := client.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, err
		}
		postgres = client
	}

	sm := &StorageManager{postgres: postgres}

	switch cfg.Backend {
	case BackendFile, "":
		store, err := NewFileObjectStore(cfg.Root)
		if err != nil {
			sm.Close()
			return nil, err
		}
		sm.objects = store
	case BackendPostgres:
		if postgres == nil {
			return nil, fmt.Errorf("postgres object store requires DATABASE_URL")
		}
		sm.objects = NewPostgresObjectStore(postgres)
	default:
		sm.Close()
		return nil, fmt.Errorf("unknown object store backend: %s", cfg.Backend)
	}

	return sm, nil
}

// NewStorageManagerWithStore wraps an existing object store without job records
func NewStorageManagerWithStore(objects ObjectStore) *StorageManager {
	return &StorageManager{objects: objects}
}

// Get reads a document object
func (sm *StorageManager) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	return sm.objects.Get(ctx, bucket, key)
}

// Put writes a document object
func (sm *StorageManager) Put(ctx context.Context, bucket, key string, body []byte) error {
	return sm.objects.Put(ctx, bucket, key, body)
}

// UpdateJobStatus records the job status. Without a database it is a no-op.
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if sm.postgres == nil {
		return nil
	}
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (*JobRecord, error) {
	if sm.postgres == nil {
		return nil, fmt.Errorf("job records are not enabled")
	}
	return sm.postgres.GetJobByID(ctx, jobID)
}

// Ping checks the database when job records are enabled
func (sm *StorageManager) Ping(ctx context.Context) error {
	if sm.postgres == nil {
		return nil
	}
	return sm.postgres.Ping(ctx)
}

// GetStats returns connection pool statistics
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"object_store": fmt.Sprintf("%T", sm.objects),
	}
	if sm.postgres != nil {
		pgStats := sm.postgres.GetStats()
		stats["postgres"] = map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		}
	}
	return stats, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL: %w", err)
		}
	}
	return nil
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences PostgreSQL JSONB rejects.
// \u0000 is dropped, other control characters become a space.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
