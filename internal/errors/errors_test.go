package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unsupported", NewUnsupportedInputError("j", "raw/a.docx"), http.StatusBadRequest},
		{"wrapped unsupported", fmt.Errorf("handle: %w", NewUnsupportedInputError("j", "a.xls")), http.StatusBadRequest},
		{"fatal", NewPipelineFatalError("j", "ocr", stderrors.New("boom")), http.StatusInternalServerError},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusCode(tc.err); got != tc.want {
				t.Errorf("StatusCode() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHasCodeWalksCauses(t *testing.T) {
	inner := NewOCRFailedError("j", "tesseract", stderrors.New("no image"))
	outer := NewPipelineFatalError("j", "analyze", inner)

	if !HasCode(outer, ErrorPipelineFatal) {
		t.Error("outer code not found")
	}
	if !HasCode(outer, ErrorOCRFailed) {
		t.Error("nested OCR code not found")
	}
	if HasCode(outer, ErrorStorageFailed) {
		t.Error("unexpected storage code")
	}
}

func TestProcessingErrorUnwrap(t *testing.T) {
	err := NewProcessingTimeoutError("j", time.Second, context.DeadlineExceeded)
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout error should unwrap to context.DeadlineExceeded")
	}
}

func TestToMap(t *testing.T) {
	err := NewStorageFailedError("j1", "processed/a.txt", stderrors.New("disk full"))
	m := err.ToMap()

	if m["error_code"] != string(ErrorStorageFailed) {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["key"] != "processed/a.txt" {
		t.Errorf("key = %v", m["key"])
	}
	if m["cause"] != "disk full" {
		t.Errorf("cause = %v", m["cause"])
	}
}
