/**
 * Document Processor for the text annotation worker
 *
 * Runs one document through the fixed pipeline:
 * - OCR analysis and column-aware line ordering (images and PDFs)
 * - Heading tagging, boilerplate removal, line reflow
 * - Per-line normalization
 * - Entity annotation (always last: it depends on stable offsets)
 * and writes the annotated text under the processed prefix.
 */

package processor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adverant/nexus/textannotate-worker/internal/config"
	"github.com/adverant/nexus/textannotate-worker/internal/errors"
	"github.com/adverant/nexus/textannotate-worker/internal/logging"
	"github.com/adverant/nexus/textannotate-worker/internal/storage"
	"github.com/adverant/nexus/textannotate-worker/internal/textproc"
)

// Job statuses recorded for each document
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// textExtensions are decoded directly; ocrExtensions go through the analyzer
var (
	textExtensions = map[string]bool{".txt": true}
	ocrExtensions  = map[string]bool{
		".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
	}
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	Handle(ctx context.Context, req *ProcessRequest) *InvocationResult
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// JobStore records job status
type JobStore interface {
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// ParameterResolver supplies the named parameters
type ParameterResolver interface {
	Resolve(ctx context.Context) (*config.Parameters, error)
}

// ProcessorConfig holds the processor's collaborators
type ProcessorConfig struct {
	Objects            storage.ObjectStore
	Jobs               JobStore // optional
	Analyzer           DocumentAnalyzer
	Classifier         EntityClassifier
	Parameters         ParameterResolver
	LanguageCode       string
	LegacySpecialChars bool
	MaxFileSize        int64
	Logger             *logging.Logger
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID    string
	Bucket   string // overrides the configured bucket when set
	Key      string
	Metadata map[string]interface{}
}

// ProcessResult represents the processing result
type ProcessResult struct {
	StatusCode       int
	Body             string
	Bucket           string
	DestinationKey   string
	Engine           string // "text" for decoded .txt input
	TextLength       int
	Annotation       *AnnotationStats
	ProcessingTimeMs int64
}

// InvocationResult is what the trigger receives
type InvocationResult struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	config     *ProcessorConfig
	objects    storage.ObjectStore
	jobs       JobStore
	analyzer   DocumentAnalyzer
	parameters ParameterResolver
	logger     *logging.Logger

	layout     *ColumnLayout
	headings   *textproc.HeadingDetector
	redundant  *textproc.RedundantTextFilter
	normalizer *textproc.LineNormalizer
	annotator  *EntityAnnotator
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("document analyzer is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("entity classifier is required")
	}
	if cfg.Parameters == nil {
		return nil, fmt.Errorf("parameter resolver is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("DocumentProcessor")
	}

	return &DocumentProcessor{
		config:     cfg,
		objects:    cfg.Objects,
		jobs:       cfg.Jobs,
		analyzer:   cfg.Analyzer,
		parameters: cfg.Parameters,
		logger:     logger,
		layout:     NewColumnLayout(),
		headings:   textproc.NewHeadingDetector(),
		redundant:  textproc.NewRedundantTextFilter(),
		normalizer: textproc.NewLineNormalizer(textproc.LineNormalizerOptions{
			LegacySpecialChars: cfg.LegacySpecialChars,
		}),
		annotator: NewEntityAnnotator(cfg.Classifier, cfg.LanguageCode, logger),
	}, nil
}

// Ready resolves the parameters and checks that the analyzer and classifier
// are usable, so a misconfigured worker fails at startup.
func (p *DocumentProcessor) Ready(ctx context.Context) error {
	if _, err := p.parameters.Resolve(ctx); err != nil {
		return fmt.Errorf("parameters not available: %w", err)
	}
	if r, ok := p.analyzer.(interface{ Ready(context.Context) error }); ok {
		if err := r.Ready(ctx); err != nil {
			return fmt.Errorf("document analyzer not ready: %w", err)
		}
	}
	if h, ok := p.config.Classifier.(interface{ HealthCheck(context.Context) error }); ok {
		if err := h.HealthCheck(ctx); err != nil {
			return fmt.Errorf("entity classifier not ready: %w", err)
		}
	}
	return nil
}

// Handle processes a document and records the job, returning the
// status/body pair reported to the trigger
func (p *DocumentProcessor) Handle(ctx context.Context, req *ProcessRequest) *InvocationResult {
	p.recordStatus(ctx, &storage.JobUpdate{
		JobID:     req.JobID,
		Status:    StatusProcessing,
		Bucket:    req.Bucket,
		SourceKey: req.Key,
		Metadata:  req.Metadata,
	})

	result, err := p.ProcessDocument(ctx, req)
	if err != nil {
		update := &storage.JobUpdate{
			JobID:        req.JobID,
			Status:       StatusFailed,
			SourceKey:    req.Key,
			ErrorMessage: err.Error(),
		}
		var perr *errors.ProcessingError
		if stderrors.As(err, &perr) {
			update.ErrorCode = string(perr.Code)
			update.Metadata = perr.ToMap()
		}
		p.recordStatus(ctx, update)

		return &InvocationResult{
			StatusCode: errors.StatusCode(err),
			Body:       err.Error(),
		}
	}

	p.recordStatus(ctx, &storage.JobUpdate{
		JobID:            req.JobID,
		Status:           StatusCompleted,
		Bucket:           result.Bucket,
		SourceKey:        req.Key,
		DestinationKey:   result.DestinationKey,
		ProcessingTimeMs: result.ProcessingTimeMs,
		UnitErrors:       errorStrings(result.Annotation.Errors),
		Metadata: map[string]interface{}{
			"engine":     result.Engine,
			"textLength": result.TextLength,
			"annotation": result.Annotation,
		},
	})

	return &InvocationResult{StatusCode: result.StatusCode, Body: result.Body}
}

// ProcessDocument processes a document through the complete pipeline.
// Nothing is written unless every stage succeeds.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	p.logger.Info(fmt.Sprintf("[Job %s] Starting annotation pipeline", req.JobID), "key", req.Key)

	result, err := p.process(ctx, req)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.HasCode(err, errors.ErrorProcessingTimeout) {
			err = errors.NewProcessingTimeoutError(req.JobID, time.Since(startTime), err)
		}
		p.logger.Error(fmt.Sprintf("[Job %s] Pipeline failed", req.JobID), "error", err)
		return nil, err
	}

	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	p.logger.Info(fmt.Sprintf("[Job %s] Pipeline complete", req.JobID),
		"destination", result.DestinationKey,
		"entities", result.Annotation.Entities,
		"failedUnits", result.Annotation.FailedUnits,
		"durationMs", result.ProcessingTimeMs)
	return result, nil
}

func (p *DocumentProcessor) process(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	// Step 1: Resolve parameters and target bucket
	p.logger.Info(fmt.Sprintf("[Job %s] Step 1: Resolving parameters", req.JobID))
	params, err := p.parameters.Resolve(ctx)
	if err != nil {
		return nil, errors.NewPipelineFatalError(req.JobID, "parameters", err)
	}
	bucket := req.Bucket
	if bucket == "" {
		bucket = params.BucketName
	}
	if bucket == "" {
		return nil, errors.NewPipelineFatalError(req.JobID, "parameters", fmt.Errorf("no bucket in request or parameters"))
	}

	// Step 2: Check input type
	doc := Document{SourceKey: req.Key}
	ext := doc.Extension()
	p.logger.Info(fmt.Sprintf("[Job %s] Step 2: Checking input type (extension: %s)", req.JobID, ext))
	if !textExtensions[ext] && !ocrExtensions[ext] {
		p.logger.Warn(fmt.Sprintf("[Job %s] Unsupported input", req.JobID), "key", req.Key, "extension", ext)
		return nil, errors.NewUnsupportedInputError(req.JobID, req.Key)
	}

	destKey, err := DestinationKey(req.Key, params.RawFilesPrefix, params.ProcessedFilesPrefix)
	if err != nil {
		return nil, errors.NewPipelineFatalError(req.JobID, "destination", err)
	}

	// Step 3: Load raw text
	var engine string
	if textExtensions[ext] {
		p.logger.Info(fmt.Sprintf("[Job %s] Step 3: Decoding text file", req.JobID))
		text, err := p.loadText(ctx, req.JobID, bucket, req.Key)
		if err != nil {
			return nil, err
		}
		doc = doc.WithText(text)
		engine = "text"
	} else {
		p.logger.Info(fmt.Sprintf("[Job %s] Step 3: Running document analysis", req.JobID))
		analysis, err := p.analyzer.AnalyzeDocument(ctx, &AnalyzeRequest{
			Bucket:       bucket,
			Key:          req.Key,
			FeatureTypes: DefaultFeatureTypes,
		})
		if err != nil {
			return nil, errors.NewOCRFailedError(req.JobID, fmt.Sprintf("%T", p.analyzer), err)
		}
		doc = doc.WithText(p.layout.ExtractTextByColumns(analysis.Blocks))
		engine = analysis.Engine
		p.logger.Info(fmt.Sprintf("[Job %s] Analysis complete", req.JobID),
			"engine", analysis.Engine, "blocks", len(analysis.Blocks), "duration", analysis.Duration)
	}

	// Step 4: Structure and cleanup
	p.logger.Info(fmt.Sprintf("[Job %s] Step 4: Tagging headings and removing boilerplate", req.JobID))
	doc = doc.WithText(p.headings.TagLines(doc.RawText))
	doc = doc.WithText(p.redundant.Filter(doc.RawText))
	doc = doc.WithText(textproc.Reflow(doc.RawText))

	// Step 5: Normalize each line
	p.logger.Info(fmt.Sprintf("[Job %s] Step 5: Normalizing lines", req.JobID))
	doc = doc.WithText(p.normalizer.NormalizeText(doc.RawText))

	// Step 6: Annotate entities
	p.logger.Info(fmt.Sprintf("[Job %s] Step 6: Annotating entities", req.JobID))
	annotated, stats, err := p.annotator.Annotate(ctx, req.JobID, doc.RawText)
	if err != nil {
		return nil, err
	}
	doc = doc.WithText(annotated)
	if stats.FailedUnits > 0 {
		p.logger.Warn(fmt.Sprintf("[Job %s] Some lines were left unannotated", req.JobID),
			"failed", stats.FailedUnits, "units", stats.Units)
	}

	// Step 7: Write output
	p.logger.Info(fmt.Sprintf("[Job %s] Step 7: Writing %s", req.JobID, destKey))
	if err := p.objects.Put(ctx, bucket, destKey, []byte(doc.RawText)); err != nil {
		return nil, errors.NewStorageFailedError(req.JobID, destKey, err)
	}

	return &ProcessResult{
		StatusCode:     http.StatusOK,
		Body:           fmt.Sprintf("Processed %s to %s", req.Key, destKey),
		Bucket:         bucket,
		DestinationKey: destKey,
		Engine:         engine,
		TextLength:     utf8.RuneCountInString(doc.RawText),
		Annotation:     stats,
	}, nil
}

// loadText reads a .txt object as UTF-8 with CRLF line endings folded
func (p *DocumentProcessor) loadText(ctx context.Context, jobID, bucket, key string) (string, error) {
	data, err := p.objects.Get(ctx, bucket, key)
	if err != nil {
		return "", errors.NewStorageFailedError(jobID, key, err)
	}
	if p.config.MaxFileSize > 0 && int64(len(data)) > p.config.MaxFileSize {
		return "", errors.NewPipelineFatalError(jobID, "load",
			fmt.Errorf("file size %d exceeds limit %d", len(data), p.config.MaxFileSize))
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.NewPipelineFatalError(jobID, "load", fmt.Errorf("%s is not valid UTF-8", key))
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}

// UpdateJobStatus updates job status when a job store is configured
func (p *DocumentProcessor) UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error {
	if p.jobs == nil {
		return nil
	}
	return p.jobs.UpdateJobStatus(ctx, update)
}

// recordStatus logs instead of failing the document when the job store errors
func (p *DocumentProcessor) recordStatus(ctx context.Context, update *storage.JobUpdate) {
	if update.JobID == "" {
		return
	}
	// Status writes still go through after the job context has expired
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.UpdateJobStatus(writeCtx, update); err != nil {
		p.logger.Warn(fmt.Sprintf("[Job %s] Failed to record status", update.JobID),
			"status", update.Status, "error", err)
	}
}

// DestinationKey derives the output key: the raw prefix is swapped for the
// processed prefix (keys outside the raw prefix keep only their base name),
// and the extension becomes .txt
func DestinationKey(key, rawPrefix, processedPrefix string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("source key is empty")
	}

	var dest string
	if rawPrefix != "" && strings.HasPrefix(key, rawPrefix) {
		dest = processedPrefix + strings.TrimPrefix(key, rawPrefix)
	} else {
		dest = processedPrefix + path.Base(key)
	}
	dest = strings.TrimSuffix(dest, path.Ext(dest)) + ".txt"

	if dest == key {
		return "", fmt.Errorf("destination key %s would overwrite the source", dest)
	}
	return dest, nil
}

func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
