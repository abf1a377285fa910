/**
 * Entity Client - Remote entity classification
 *
 * Sends one unit of text per request to the entity detection service and
 * maps the response into processor entities. The client never retries; a
 * failed unit is the annotator's concern.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adverant/nexus/textannotate-worker/internal/logging"
	"github.com/adverant/nexus/textannotate-worker/internal/processor"
)

// EntityClient handles communication with the entity detection service
type EntityClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// DetectEntitiesRequest is the classifier request body
type DetectEntitiesRequest struct {
	Text         string `json:"Text"`
	LanguageCode string `json:"LanguageCode"`
}

// DetectEntitiesResponse is the classifier response body
type DetectEntitiesResponse struct {
	Entities []EntityResult `json:"Entities"`
}

// EntityResult is one entity as returned by the service
type EntityResult struct {
	Type        string  `json:"Type"`
	Text        string  `json:"Text"`
	BeginOffset int     `json:"BeginOffset"`
	EndOffset   int     `json:"EndOffset"`
	Score       float64 `json:"Score"`
}

// NewEntityClient creates a new entity detection client
func NewEntityClient(baseURL string) *EntityClient {
	return &EntityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NewLogger("EntityClient"),
	}
}

// DetectEntities classifies text and returns entities with offsets local to text
func (c *EntityClient) DetectEntities(ctx context.Context, text string, languageCode string) ([]processor.Entity, error) {
	endpoint := fmt.Sprintf("%s/detect-entities", c.baseURL)

	var resp DetectEntitiesResponse
	if err := postJSON(ctx, c.httpClient, endpoint, &DetectEntitiesRequest{
		Text:         text,
		LanguageCode: languageCode,
	}, &resp); err != nil {
		return nil, fmt.Errorf("entity detection failed: %w", err)
	}

	entities := make([]processor.Entity, len(resp.Entities))
	for i, e := range resp.Entities {
		entities[i] = processor.Entity{
			Type:        processor.EntityType(strings.ToUpper(e.Type)),
			Text:        e.Text,
			BeginOffset: e.BeginOffset,
			EndOffset:   e.EndOffset,
			Score:       e.Score,
		}
	}

	c.logger.Debug("Entity detection complete", "textLength", len(text), "entities", len(entities))
	return entities, nil
}

// HealthCheck checks if the entity detection service is healthy
func (c *EntityClient) HealthCheck(ctx context.Context) error {
	return getHealth(ctx, c.httpClient, fmt.Sprintf("%s/health", c.baseURL))
}

// postJSON sends body as JSON and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, endpoint string, body, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "textannotate-worker")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned error status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func getHealth(ctx context.Context, client *http.Client, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
