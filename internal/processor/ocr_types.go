/**
 * OCR Types - Shared data structures for document analysis
 *
 * Common types used by the Tesseract analyzer and the remote analysis client
 */

package processor

import (
	"context"
	"time"
)

// BlockType classifies an analysis block
type BlockType string

const (
	BlockPage BlockType = "PAGE"
	BlockLine BlockType = "LINE"
	BlockWord BlockType = "WORD"
)

// BoundingBox is a region in page coordinates normalized to 0-1
type BoundingBox struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// OcrBlock is one recognized element with its position on the page
type OcrBlock struct {
	Type        BlockType
	Text        string
	BoundingBox BoundingBox
	Confidence  float64
}

// AnalyzeRequest references a stored page image or PDF
type AnalyzeRequest struct {
	Bucket       string
	Key          string
	FeatureTypes []string
}

// AnalyzeResult represents the result of document analysis
type AnalyzeResult struct {
	Blocks   []OcrBlock
	Engine   string // "tesseract" or the remote service name
	Duration time.Duration
}

// DocumentAnalyzer turns a stored document into OCR blocks
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResult, error)
}

// DefaultFeatureTypes are requested on every analysis call
var DefaultFeatureTypes = []string{"TABLES", "FORMS"}
