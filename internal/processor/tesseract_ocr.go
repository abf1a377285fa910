/**
 * Tesseract Analyzer - Local line-level OCR
 *
 * Offline OCR using Tesseract. Produces LINE blocks with bounding boxes
 * normalized to the page size, the same shape the remote analysis service
 * returns, so the column layout works on either engine.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/adverant/nexus/textannotate-worker/internal/storage"
)

// TesseractAnalyzer runs Tesseract on images loaded from the object store
type TesseractAnalyzer struct {
	store       storage.ObjectStore
	language    string
	maxFileSize int64
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Store       storage.ObjectStore
	Language    string
	MaxFileSize int64 // 0 disables the limit
}

// NewTesseractAnalyzer creates a new Tesseract analyzer
func NewTesseractAnalyzer(cfg *TesseractConfig) (*TesseractAnalyzer, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}

	return &TesseractAnalyzer{
		store:       cfg.Store,
		language:    cfg.Language,
		maxFileSize: cfg.MaxFileSize,
	}, nil
}

// Ready checks that the Tesseract library and language data load
func (t *TesseractAnalyzer) Ready(ctx context.Context) error {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("tesseract not available: %w", err)
	}
	for _, wanted := range strings.Split(t.language, "+") {
		found := false
		for _, l := range langs {
			if l == wanted {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("tesseract language data %q not installed", wanted)
		}
	}
	return nil
}

// AnalyzeDocument performs OCR on the stored page image
func (t *TesseractAnalyzer) AnalyzeDocument(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResult, error) {
	startTime := time.Now()

	fileData, err := t.store.Get(ctx, req.Bucket, req.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", req.Key, err)
	}
	if t.maxFileSize > 0 && int64(len(fileData)) > t.maxFileSize {
		return nil, fmt.Errorf("file size %d exceeds limit %d", len(fileData), t.maxFileSize)
	}

	mime := detectMimeTypeFromMagicBytes(fileData)
	if mime == "application/pdf" {
		return nil, fmt.Errorf("tesseract cannot rasterize PDF input %s, use the remote analysis engine", req.Key)
	}

	// Geometry is reported in pixels; the page size turns it into 0-1 values
	cfg, _, err := image.DecodeConfig(bytes.NewReader(fileData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header (mime: %s): %w", mime, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("image %s has zero size", req.Key)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(fileData); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return &AnalyzeResult{
		Blocks:   linesToBlocks(boxes, cfg.Width, cfg.Height),
		Engine:   "tesseract",
		Duration: time.Since(startTime),
	}, nil
}

// linesToBlocks converts Tesseract line boxes into normalized LINE blocks
func linesToBlocks(boxes []gosseract.BoundingBox, width, height int) []OcrBlock {
	w, h := float64(width), float64(height)
	blocks := make([]OcrBlock, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		blocks = append(blocks, OcrBlock{
			Type: BlockLine,
			Text: text,
			BoundingBox: BoundingBox{
				Left:   float64(b.Box.Min.X) / w,
				Top:    float64(b.Box.Min.Y) / h,
				Width:  float64(b.Box.Dx()) / w,
				Height: float64(b.Box.Dy()) / h,
			},
			Confidence: b.Confidence / 100,
		})
	}
	return blocks
}

// detectMimeTypeFromMagicBytes identifies the image formats the OCR path accepts
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF87a / GIF89a
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF: little-endian or big-endian byte order mark
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	return ""
}
