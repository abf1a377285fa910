package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

/**
 * Custom error types for the text annotation worker
 *
 * Three outcomes matter to the invoker: unsupported input (400),
 * recovered per-unit annotation failures, and fatal pipeline faults (500).
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorUnsupportedInput ErrorCode = "UNSUPPORTED_INPUT"

	// Pipeline errors
	ErrorAnnotationUnit    ErrorCode = "ANNOTATION_UNIT_FAILED"
	ErrorPipelineFatal     ErrorCode = "PIPELINE_FATAL"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewUnsupportedInputError(jobID string, key string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedInput,
		Message:   fmt.Sprintf("Unsupported input extension: %s", key),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source_key": key,
		},
	}
}

func NewAnnotationUnitError(jobID string, unit int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorAnnotationUnit,
		Message:   fmt.Sprintf("Entity classification failed for unit %d", unit),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"unit": unit,
		},
		Cause: cause,
	}
}

func NewPipelineFatalError(jobID string, stage string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorPipelineFatal,
		Message:   fmt.Sprintf("Pipeline failed at stage: %s", stage),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"stage": stage,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewOCRFailedError(jobID string, engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("Document analysis failed (engine: %s)", engine),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, key string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   fmt.Sprintf("Object storage operation failed for key: %s", key),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"key": key,
		},
		Cause: cause,
	}
}

// StatusCode maps an error to the invocation status code.
// nil is 200, unsupported input is 400, anything else is 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var perr *ProcessingError
	if stderrors.As(err, &perr) && perr.Code == ErrorUnsupportedInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HasCode reports whether any ProcessingError in err's chain carries code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var perr *ProcessingError
		if !stderrors.As(err, &perr) {
			return false
		}
		if perr.Code == code {
			return true
		}
		err = perr.Cause
	}
	return false
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
