/**
 * PostgreSQL Client for the text annotation worker
 *
 * Handles job persistence and, when configured, document object storage.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Bucket           string
	SourceKey        string
	DestinationKey   string
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	UnitErrors       []string
	Metadata         map[string]interface{}
}

// JobRecord is a stored job row
type JobRecord struct {
	ID               string
	Status           string
	Bucket           string
	SourceKey        string
	DestinationKey   string
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	UnitErrors       []string
	Metadata         map[string]interface{}
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS textannotate;

	CREATE TABLE IF NOT EXISTS textannotate.jobs (
		id                 UUID PRIMARY KEY,
		status             TEXT NOT NULL,
		bucket             TEXT,
		source_key         TEXT,
		destination_key    TEXT,
		processing_time_ms BIGINT,
		error_code         TEXT,
		error_message      TEXT,
		unit_errors        TEXT[] NOT NULL DEFAULT '{}',
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS textannotate.objects (
		id         UUID PRIMARY KEY,
		bucket     TEXT NOT NULL,
		key        TEXT NOT NULL,
		body       BYTEA NOT NULL,
		size       BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (bucket, key)
	);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the worker's tables if missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row. Empty fields keep their stored value.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)
	unitErrors := update.UnitErrors
	if unitErrors == nil {
		unitErrors = []string{}
	}

	query := `
		INSERT INTO textannotate.jobs (
			id, status, bucket, source_key, destination_key,
			processing_time_ms, error_code, error_message, unit_errors, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			NULLIF($6, 0), NULLIF($7, ''), NULLIF($8, ''), $9,
			COALESCE(NULLIF($10, 'null')::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			bucket = COALESCE(EXCLUDED.bucket, textannotate.jobs.bucket),
			source_key = COALESCE(EXCLUDED.source_key, textannotate.jobs.source_key),
			destination_key = COALESCE(EXCLUDED.destination_key, textannotate.jobs.destination_key),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, textannotate.jobs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			unit_errors = EXCLUDED.unit_errors,
			metadata = textannotate.jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.Status,           // $2
		update.Bucket,           // $3
		update.SourceKey,        // $4
		update.DestinationKey,   // $5
		update.ProcessingTimeMs, // $6
		update.ErrorCode,        // $7
		update.ErrorMessage,     // $8
		pq.Array(unitErrors),    // $9
		string(metadataJSON),    // $10
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, status, bucket, source_key, destination_key,
			processing_time_ms, error_code, error_message, unit_errors,
			metadata, created_at, updated_at
		FROM textannotate.jobs
		WHERE id = $1::uuid
	`

	var (
		rec                        JobRecord
		bucket, sourceKey, destKey sql.NullString
		errorCode, errorMessage    sql.NullString
		processingTimeMs           sql.NullInt64
		unitErrors                 pq.StringArray
		metadataJSON               []byte
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&rec.ID, &rec.Status, &bucket, &sourceKey, &destKey,
		&processingTimeMs, &errorCode, &errorMessage, &unitErrors,
		&metadataJSON, &rec.CreatedAt, &rec.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	rec.Bucket = bucket.String
	rec.SourceKey = sourceKey.String
	rec.DestinationKey = destKey.String
	rec.ProcessingTimeMs = processingTimeMs.Int64
	rec.ErrorCode = errorCode.String
	rec.ErrorMessage = errorMessage.String
	rec.UnitErrors = []string(unitErrors)

	return &rec, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}

// PostgresObjectStore keeps document objects in textannotate.objects
type PostgresObjectStore struct {
	client *PostgresClient
}

// NewPostgresObjectStore creates an object store on an existing client
func NewPostgresObjectStore(client *PostgresClient) *PostgresObjectStore {
	return &PostgresObjectStore{client: client}
}

// Get reads an object body
func (s *PostgresObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var body []byte
	err := s.client.db.QueryRowContext(ctx,
		`SELECT body FROM textannotate.objects WHERE bucket = $1 AND key = $2`,
		bucket, key,
	).Scan(&body)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return body, nil
}

// Put writes or replaces an object body
func (s *PostgresObjectStore) Put(ctx context.Context, bucket, key string, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	_, err := s.client.db.ExecContext(ctx, `
		INSERT INTO textannotate.objects (id, bucket, key, body, size, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, NOW())
		ON CONFLICT (bucket, key) DO UPDATE SET
			body = EXCLUDED.body,
			size = EXCLUDED.size,
			updated_at = NOW()
	`, uuid.New().String(), bucket, key, body, int64(len(body)))

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("failed to write object %s/%s (pq %s): %w", bucket, key, pqErr.Code, err)
		}
		return fmt.Errorf("failed to write object %s/%s: %w", bucket, key, err)
	}
	return nil
}
