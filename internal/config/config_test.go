package config

import (
	"context"
	"errors"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("OBJECT_STORE", "")
	t.Setenv("OCR_ENGINE", "")
	t.Setenv("LEGACY_SPECIAL_CHARS", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.QueueBackend != "redis" || cfg.ObjectStore != "file" || cfg.OCREngine != "tesseract" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.LegacySpecialChars {
		t.Error("LEGACY_SPECIAL_CHARS=true not applied")
	}
	if cfg.Timeout().Seconds() != 300 {
		t.Errorf("Timeout() = %v, want 5m", cfg.Timeout())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RedisURL:            "redis://localhost:6379",
			QueueBackend:        "redis",
			QueueName:           "q",
			WorkerConcurrency:   2,
			ProcessingTimeout:   60000,
			ObjectStore:         "file",
			ObjectStoreRoot:     "/tmp/x",
			MaxFileSize:         1 << 20,
			OCREngine:           "tesseract",
			EntityClassifierURL: "http://entities",
			ParameterSource:     "env",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown queue backend", func(c *Config) { c.QueueBackend = "kafka" }, true},
		{"concurrency too high", func(c *Config) { c.WorkerConcurrency = 500 }, true},
		{"timeout too small", func(c *Config) { c.ProcessingTimeout = 10 }, true},
		{"postgres store without database", func(c *Config) { c.ObjectStore = "postgres" }, true},
		{"postgres store with database", func(c *Config) {
			c.ObjectStore = "postgres"
			c.DatabaseURL = "postgres://localhost/db"
		}, false},
		{"remote ocr without url", func(c *Config) { c.OCREngine = "remote" }, true},
		{"missing classifier", func(c *Config) { c.EntityClassifierURL = "" }, true},
		{"unknown parameter source", func(c *Config) { c.ParameterSource = "ssm" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

type countingSource struct {
	values map[string]string
	calls  int
	err    error
}

func (s *countingSource) Lookup(ctx context.Context, name string) (string, bool, error) {
	s.calls++
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.values[name]
	return v, ok, nil
}

func TestParameterStoreCaches(t *testing.T) {
	src := &countingSource{values: map[string]string{
		ParamBucketName:     "docs",
		ParamRawFilesPrefix: "incoming/",
	}}
	store := NewParameterStore(src, DefaultParameters)

	p, err := store.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.BucketName != "docs" || p.RawFilesPrefix != "incoming/" || p.ProcessedFilesPrefix != "processed/" {
		t.Errorf("Resolve() = %+v", p)
	}

	calls := src.calls
	if _, err := store.Resolve(context.Background()); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if src.calls != calls {
		t.Errorf("second Resolve() hit the source again (%d -> %d calls)", calls, src.calls)
	}
}

func TestParameterStoreDoesNotCacheFailure(t *testing.T) {
	src := &countingSource{err: errors.New("redis down")}
	store := NewParameterStore(src, DefaultParameters)

	if _, err := store.Resolve(context.Background()); err == nil {
		t.Fatal("expected error from failing source")
	}

	src.err = nil
	src.values = map[string]string{ParamBucketName: "docs"}
	p, err := store.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() after recovery error = %v", err)
	}
	if p.BucketName != "docs" {
		t.Errorf("BucketName = %q, want docs", p.BucketName)
	}
}

func TestEnvParameterSource(t *testing.T) {
	t.Setenv(ParamBucketName, "env-bucket")
	t.Setenv(ParamProcessedFilesPrefix, "")

	src := EnvParameterSource{}
	if v, ok, _ := src.Lookup(context.Background(), ParamBucketName); !ok || v != "env-bucket" {
		t.Errorf("Lookup(bucket) = %q, %v", v, ok)
	}
	if _, ok, _ := src.Lookup(context.Background(), ParamProcessedFilesPrefix); ok {
		t.Error("empty variable reported as set")
	}
}
