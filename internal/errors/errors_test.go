package errors_test

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/NamanBalaji/bsfetch/internal/errors"
)

func TestTransferErrorError(t *testing.T) {
	baseErr := stdErrors.New("underlying error")
	te := &errors.TransferError{
		Err:       baseErr,
		Category:  errors.CategoryIO,
		Timestamp: time.Now(),
		Resource:  "file.txt",
		Chunk:     errors.NoChunk,
	}
	expected := "[IO] file.txt: underlying error"
	if te.Error() != expected {
		t.Errorf("expected %q, got %q", expected, te.Error())
	}

	te2 := errors.NewHTTPError(stdErrors.New("server error"), "http://example.com", 500)
	expected2 := "[PROTOCOL] http://example.com (status: 500): server error"
	if te2.Error() != expected2 {
		t.Errorf("expected %q, got %q", expected2, te2.Error())
	}

	te3 := errors.NewChunkError(stdErrors.New("retries exhausted"), "file-1", 7)
	expected3 := "[CHUNK] file-1 (chunk: 7): retries exhausted"
	if te3.Error() != expected3 {
		t.Errorf("expected %q, got %q", expected3, te3.Error())
	}
}

func TestTransferErrorUnwrap(t *testing.T) {
	baseErr := stdErrors.New("base error")
	te := errors.NewNetworkError(baseErr, "resource", true)
	if !errors.Is(te, baseErr) {
		t.Errorf("expected %v to wrap %v", te, baseErr)
	}

	wrapped := fmt.Errorf("outer: %w", te)
	if !errors.IsNetworkError(wrapped) {
		t.Error("expected category to survive fmt wrapping")
	}
}

func TestNewConfigurationError(t *testing.T) {
	te := errors.NewConfigurationError(errors.ErrRangeNotSupported, "file-9")
	if te.Category != errors.CategoryConfiguration || te.Retryable || te.Resource != "file-9" {
		t.Error("NewConfigurationError did not set fields correctly")
	}
	if !errors.IsConfigurationError(te) {
		t.Error("expected configuration error to be identified")
	}
	if !errors.Is(te, errors.ErrRangeNotSupported) {
		t.Error("expected sentinel to be preserved")
	}
	if te.Timestamp.IsZero() {
		t.Error("Timestamp not set in NewConfigurationError")
	}
}

func TestNewIOError(t *testing.T) {
	baseErr := stdErrors.New("io error")
	te := errors.NewIOError(baseErr, "file.txt")
	if !errors.Is(baseErr, te.Err) || te.Category != errors.CategoryIO || te.Retryable || te.Resource != "file.txt" {
		t.Error("NewIOError did not set fields correctly")
	}
	if !errors.IsIOError(te) {
		t.Error("expected I/O error to be identified")
	}
}

func TestNewContextError(t *testing.T) {
	baseErr := stdErrors.New("context canceled")
	te := errors.NewContextError(baseErr, "operation")
	if te.Category != errors.CategoryContext || te.Retryable || te.Resource != "operation" {
		t.Error("NewContextError did not set fields correctly")
	}
}

func TestNewHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		category  errors.ErrorCategory
	}{
		{500, true, errors.CategoryProtocol},
		{501, false, errors.CategoryProtocol},
		{503, true, errors.CategoryProtocol},
		{429, true, errors.CategoryProtocol},
		{416, false, errors.CategoryConfiguration},
		{404, false, errors.CategoryProtocol},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			te := errors.NewHTTPError(stdErrors.New("http"), "http://example.com", tt.status)
			if te.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", te.Retryable, tt.retryable)
			}
			if te.Category != tt.category {
				t.Errorf("Category = %s, want %s", te.Category, tt.category)
			}
			if te.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", te.StatusCode, tt.status)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	te := errors.NewNetworkError(stdErrors.New("error"), "example.com", true)
	if !errors.IsRetryable(te) {
		t.Error("Expected retryable error to be retried")
	}

	te2 := errors.NewIOError(stdErrors.New("io error"), "file.txt")
	if errors.IsRetryable(te2) {
		t.Error("Expected non-retryable error to not be retried")
	}

	if errors.IsRetryable(nil) {
		t.Error("Expected nil error to be non-retryable")
	}

	if errors.IsRetryable(stdErrors.New("plain")) {
		t.Error("Expected plain error to be non-retryable")
	}
}

func TestChunkIndex(t *testing.T) {
	te := errors.NewChunkError(stdErrors.New("retries exhausted"), "file", 3)
	idx, ok := errors.ChunkIndex(fmt.Errorf("transfer: %w", te))
	if !ok || idx != 3 {
		t.Errorf("ChunkIndex() = %d, %v; want 3, true", idx, ok)
	}

	if !errors.Is(te, errors.ErrChunkFailed) {
		t.Error("Expected chunk errors to match ErrChunkFailed")
	}

	if errors.Is(errors.NewIOError(stdErrors.New("x"), "file"), errors.ErrChunkFailed) {
		t.Error("Expected non-chunk errors not to match ErrChunkFailed")
	}

	if _, ok := errors.ChunkIndex(errors.NewIOError(stdErrors.New("x"), "file")); ok {
		t.Error("Expected no chunk index for an I/O error")
	}
}

func TestGetStatusCode(t *testing.T) {
	te := errors.NewHTTPError(stdErrors.New("server error"), "http://example.com", 500)
	code, ok := errors.GetStatusCode(te)
	if !ok {
		t.Error("Expected status code to be available")
	}
	if code != 500 {
		t.Errorf("Expected status code 500, got %d", code)
	}

	chunkErr := errors.NewChunkError(fmt.Errorf("retries exhausted: %w", te), "file-1", 4)
	code, ok = errors.GetStatusCode(fmt.Errorf("transfer: %w", chunkErr))
	if !ok || code != 500 {
		t.Errorf("GetStatusCode() through a chunk error = %d, %v; want 500, true", code, ok)
	}

	if _, ok := errors.GetStatusCode(errors.NewChunkError(stdErrors.New("x"), "file-1", 0)); ok {
		t.Error("Expected no status code when nothing in the chain has one")
	}

	if _, ok := errors.GetStatusCode(stdErrors.New("other error")); ok {
		t.Error("Expected no status code for a non-TransferError")
	}
}
