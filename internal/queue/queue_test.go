package queue

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/textannotate-worker/internal/processor"
)

func TestJobPayloadUnmarshal(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantKey    string
		wantBucket string
		wantEvent  string
	}{
		{
			name:       "plain form",
			input:      `{"jobId":"j1","bucket":"docs","key":"raw/report.txt"}`,
			wantKey:    "raw/report.txt",
			wantBucket: "docs",
		},
		{
			name: "storage event with encoded key",
			input: `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"inbox"},` +
				`"object":{"key":"raw/annual+report%20v2.pdf","size":42}}}]}`,
			wantKey:    "raw/annual report v2.pdf",
			wantBucket: "inbox",
			wantEvent:  "ObjectCreated:Put",
		},
		{
			name: "explicit bucket wins over event bucket",
			input: `{"bucket":"override","Records":[{"s3":{"bucket":{"name":"inbox"},` +
				`"object":{"key":"raw/a.txt"}}}]}`,
			wantKey:    "raw/a.txt",
			wantBucket: "override",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p JobPayload
			if err := json.Unmarshal([]byte(tt.input), &p); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if p.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", p.Key, tt.wantKey)
			}
			if p.Bucket != tt.wantBucket {
				t.Errorf("Bucket = %q, want %q", p.Bucket, tt.wantBucket)
			}
			if tt.wantEvent != "" && p.Metadata["eventName"] != tt.wantEvent {
				t.Errorf("eventName = %v, want %q", p.Metadata["eventName"], tt.wantEvent)
			}
		})
	}
}

func TestJobPayloadUnmarshalMissingKey(t *testing.T) {
	inputs := []string{
		`{"jobId":"j1","bucket":"docs"}`,
		`{"Records":[]}`,
		`{"key":"   "}`,
	}
	for _, input := range inputs {
		var p JobPayload
		if err := json.Unmarshal([]byte(input), &p); err == nil {
			t.Errorf("Unmarshal(%s) expected error", input)
		}
	}
}

func TestRedisJobDataCarriesPayload(t *testing.T) {
	raw := `{"id":"q-1","type":"annotate","payload":{"key":"raw/x.txt"},"attempts":1,"maxRetries":3}`

	var job RedisJobData
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if job.Payload.Key != "raw/x.txt" || job.Attempts != 1 || job.MaxRetries != 3 {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestNormalizeJobID(t *testing.T) {
	id := uuid.New().String()
	if got := NormalizeJobID(id); got != id {
		t.Errorf("NormalizeJobID(uuid) = %q, want %q", got, id)
	}

	first := NormalizeJobID("queue-42")
	second := NormalizeJobID("queue-42")
	if first != second {
		t.Errorf("NormalizeJobID not deterministic: %q vs %q", first, second)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("NormalizeJobID(queue-42) = %q, not a UUID", first)
	}
	if first == NormalizeJobID("queue-43") {
		t.Error("distinct ids mapped to the same UUID")
	}

	if _, err := uuid.Parse(NormalizeJobID("")); err != nil {
		t.Error("NormalizeJobID(\"\") did not produce a UUID")
	}
}

func TestToRequestFallbackID(t *testing.T) {
	p := &JobPayload{Bucket: "docs", Key: "raw/a.txt"}
	req := p.ToRequest("task-7")

	if req.JobID != NormalizeJobID("task-7") {
		t.Errorf("JobID = %q, want id derived from fallback", req.JobID)
	}
	if req.Bucket != "docs" || req.Key != "raw/a.txt" {
		t.Errorf("unexpected request: %+v", req)
	}

	own := uuid.New().String()
	p.JobID = own
	if got := p.ToRequest("task-7").JobID; got != own {
		t.Errorf("JobID = %q, want payload id %q", got, own)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		attempts   int
		maxRetries int
		want       bool
	}{
		{"unsupported input never retried", http.StatusBadRequest, 1, 3, false},
		{"server failure with attempts left", http.StatusInternalServerError, 1, 3, true},
		{"server failure exhausted", http.StatusInternalServerError, 3, 3, false},
		{"no retries configured", http.StatusInternalServerError, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &processor.InvocationResult{StatusCode: tt.status}
			if got := shouldRetry(res, tt.attempts, tt.maxRetries); got != tt.want {
				t.Errorf("shouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultError(t *testing.T) {
	if err := resultError("j", &processor.InvocationResult{StatusCode: http.StatusOK}); err != nil {
		t.Errorf("resultError(200) = %v, want nil", err)
	}

	err := resultError("j", &processor.InvocationResult{StatusCode: http.StatusBadRequest, Body: "unsupported"})
	if !stderrors.Is(err, asynq.SkipRetry) {
		t.Errorf("resultError(400) = %v, want SkipRetry", err)
	}

	err = resultError("j", &processor.InvocationResult{StatusCode: http.StatusInternalServerError, Body: "boom"})
	if err == nil || stderrors.Is(err, asynq.SkipRetry) {
		t.Errorf("resultError(500) = %v, want retryable error", err)
	}
}

func TestNewAnnotateTask(t *testing.T) {
	task, err := NewAnnotateTask(&JobPayload{JobID: "j1", Key: "raw/a.txt"}, 2)
	if err != nil {
		t.Fatalf("NewAnnotateTask() error = %v", err)
	}
	if task.Type() != TaskTypeAnnotateDocument {
		t.Errorf("Type() = %q", task.Type())
	}

	var back JobPayload
	if err := json.Unmarshal(task.Payload(), &back); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if back.Key != "raw/a.txt" || back.JobID != "j1" {
		t.Errorf("decoded payload = %+v", back)
	}
}

func TestNewConsumerValidation(t *testing.T) {
	if _, err := NewConsumer(&ConsumerConfig{QueueName: "q"}); err == nil {
		t.Error("expected error without RedisURL")
	}
	if _, err := NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379"}); err == nil {
		t.Error("expected error without QueueName")
	}
	if _, err := NewRedisConsumer(&RedisConsumerConfig{}); err == nil {
		t.Error("expected error without Redis client")
	}
}
