/**
 * Named parameters
 *
 * Bucket name and key prefixes are resolved once per process, from the
 * environment or from a Redis hash shared by all workers, and cached.
 */

package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Parameter names
const (
	ParamBucketName           = "BUCKET_NAME"
	ParamRawFilesPrefix       = "RAW_FILES_PREFIX"
	ParamProcessedFilesPrefix = "PROCESSED_FILES_PREFIX"
)

// Parameters are the resolved named parameters
type Parameters struct {
	BucketName           string
	RawFilesPrefix       string
	ProcessedFilesPrefix string
}

// ParameterSource looks up one named parameter
type ParameterSource interface {
	Lookup(ctx context.Context, name string) (string, bool, error)
}

// EnvParameterSource reads parameters from environment variables
type EnvParameterSource struct{}

// Lookup returns the environment value for name
func (EnvParameterSource) Lookup(ctx context.Context, name string) (string, bool, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// RedisParameterSource reads parameters from fields of a Redis hash
type RedisParameterSource struct {
	client *redis.Client
	hash   string
}

// NewRedisParameterSource creates a source reading hash on client
func NewRedisParameterSource(client *redis.Client, hash string) *RedisParameterSource {
	return &RedisParameterSource{client: client, hash: hash}
}

// Lookup returns the hash field for name
func (s *RedisParameterSource) Lookup(ctx context.Context, name string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.hash, name).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read parameter %s from %s: %w", name, s.hash, err)
	}
	return value, value != "", nil
}

// ParameterStore resolves the named parameters once and caches them.
// A failed resolution is not cached.
type ParameterStore struct {
	source   ParameterSource
	defaults Parameters

	mu     sync.Mutex
	cached *Parameters
}

// DefaultParameters are used for names the source does not define
var DefaultParameters = Parameters{
	RawFilesPrefix:       "raw/",
	ProcessedFilesPrefix: "processed/",
}

// NewParameterStore creates a store over source
func NewParameterStore(source ParameterSource, defaults Parameters) *ParameterStore {
	return &ParameterStore{source: source, defaults: defaults}
}

// Resolve returns the cached parameters, loading them on first use
func (s *ParameterStore) Resolve(ctx context.Context) (*Parameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		p := *s.cached
		return &p, nil
	}

	p := s.defaults
	fields := []struct {
		name string
		dst  *string
	}{
		{ParamBucketName, &p.BucketName},
		{ParamRawFilesPrefix, &p.RawFilesPrefix},
		{ParamProcessedFilesPrefix, &p.ProcessedFilesPrefix},
	}
	for _, f := range fields {
		value, ok, err := s.source.Lookup(ctx, f.name)
		if err != nil {
			return nil, err
		}
		if ok {
			*f.dst = value
		}
	}

	if p.ProcessedFilesPrefix == "" {
		return nil, fmt.Errorf("parameter %s is required", ParamProcessedFilesPrefix)
	}

	s.cached = &p
	out := p
	return &out, nil
}
