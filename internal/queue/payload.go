package queue

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/adverant/nexus/textannotate-worker/internal/processor"
)

// JobPayload names the object to annotate
type JobPayload struct {
	JobID    string                 `json:"jobId"`
	Bucket   string                 `json:"bucket,omitempty"`
	Key      string                 `json:"key"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// s3Event is the storage notification shape: Records[0].s3.{bucket.name,object.key}
type s3Event struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// UnmarshalJSON accepts either the plain {jobId, bucket, key} form or a
// storage event notification. Event keys arrive URL-encoded.
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		*Alias
		s3Event
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if p.Key == "" && len(aux.Records) > 0 {
		rec := aux.Records[0]
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return fmt.Errorf("invalid object key %q in event: %w", rec.S3.Object.Key, err)
		}
		p.Key = key
		if p.Bucket == "" {
			p.Bucket = rec.S3.Bucket.Name
		}
		if p.Metadata == nil {
			p.Metadata = map[string]interface{}{}
		}
		if rec.EventName != "" {
			p.Metadata["eventName"] = rec.EventName
		}
		if rec.S3.Object.Size > 0 {
			p.Metadata["size"] = rec.S3.Object.Size
		}
	}

	if strings.TrimSpace(p.Key) == "" {
		return fmt.Errorf("job payload has no object key")
	}
	return nil
}

// ToRequest converts the payload into a processor request
func (p *JobPayload) ToRequest(fallbackID string) *processor.ProcessRequest {
	id := p.JobID
	if id == "" {
		id = fallbackID
	}
	return &processor.ProcessRequest{
		JobID:    NormalizeJobID(id),
		Bucket:   p.Bucket,
		Key:      p.Key,
		Metadata: p.Metadata,
	}
}

// NormalizeJobID returns id when it is a UUID. Other ids map to a stable
// name-based UUID so job records can key on them; empty ids get a new one.
func NormalizeJobID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}
