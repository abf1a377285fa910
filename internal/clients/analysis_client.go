/**
 * Analysis Client - Remote document analysis
 *
 * Asks the analysis service to OCR a stored object by bucket and key. The
 * service reads the object itself, so no file bytes cross this client.
 */

package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adverant/nexus/textannotate-worker/internal/logging"
	"github.com/adverant/nexus/textannotate-worker/internal/processor"
)

// AnalysisClient handles communication with the document analysis service
type AnalysisClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// AnalyzeDocumentRequest is the analysis request body
type AnalyzeDocumentRequest struct {
	Document     DocumentLocation `json:"Document"`
	FeatureTypes []string         `json:"FeatureTypes"`
}

// DocumentLocation references a stored object
type DocumentLocation struct {
	S3Object S3Object `json:"S3Object"`
}

// S3Object is a bucket/key pair
type S3Object struct {
	Bucket string `json:"Bucket"`
	Name   string `json:"Name"`
}

// AnalyzeDocumentResponse is the analysis response body
type AnalyzeDocumentResponse struct {
	Blocks []Block `json:"Blocks"`
}

// Block is one analysis block
type Block struct {
	BlockType  string   `json:"BlockType"`
	Text       string   `json:"Text"`
	Confidence float64  `json:"Confidence"`
	Geometry   Geometry `json:"Geometry"`
}

// Geometry wraps the block's bounding box
type Geometry struct {
	BoundingBox struct {
		Left   float64 `json:"Left"`
		Top    float64 `json:"Top"`
		Width  float64 `json:"Width"`
		Height float64 `json:"Height"`
	} `json:"BoundingBox"`
}

// NewAnalysisClient creates a new analysis client
func NewAnalysisClient(baseURL string) *AnalysisClient {
	return &AnalysisClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // multi-page PDFs take a while
		},
		logger: logging.NewLogger("AnalysisClient"),
	}
}

// AnalyzeDocument runs OCR on the referenced object
func (c *AnalysisClient) AnalyzeDocument(ctx context.Context, req *processor.AnalyzeRequest) (*processor.AnalyzeResult, error) {
	startTime := time.Now()
	c.logger.Info("Requesting document analysis", "bucket", req.Bucket, "key", req.Key)

	features := req.FeatureTypes
	if len(features) == 0 {
		features = processor.DefaultFeatureTypes
	}

	var resp AnalyzeDocumentResponse
	if err := postJSON(ctx, c.httpClient, fmt.Sprintf("%s/analyze-document", c.baseURL), &AnalyzeDocumentRequest{
		Document:     DocumentLocation{S3Object: S3Object{Bucket: req.Bucket, Name: req.Key}},
		FeatureTypes: features,
	}, &resp); err != nil {
		return nil, fmt.Errorf("document analysis failed: %w", err)
	}

	blocks := make([]processor.OcrBlock, len(resp.Blocks))
	for i, b := range resp.Blocks {
		bb := b.Geometry.BoundingBox
		blocks[i] = processor.OcrBlock{
			Type: processor.BlockType(b.BlockType),
			Text: b.Text,
			BoundingBox: processor.BoundingBox{
				Left:   bb.Left,
				Top:    bb.Top,
				Width:  bb.Width,
				Height: bb.Height,
			},
			Confidence: b.Confidence / 100,
		}
	}

	c.logger.Info("Document analysis complete", "blocks", len(blocks), "duration", time.Since(startTime))
	return &processor.AnalyzeResult{
		Blocks:   blocks,
		Engine:   "remote",
		Duration: time.Since(startTime),
	}, nil
}

// HealthCheck checks if the analysis service is healthy
func (c *AnalysisClient) HealthCheck(ctx context.Context) error {
	return getHealth(ctx, c.httpClient, fmt.Sprintf("%s/health", c.baseURL))
}
