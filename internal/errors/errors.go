package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	Is     = errors.Is
	As     = errors.As
	New    = errors.New
	Unwrap = errors.Unwrap
)

type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "CONFIGURATION" // Resource cannot be transferred as requested
	CategoryNetwork       ErrorCategory = "NETWORK"       // Connection issues
	CategoryProtocol      ErrorCategory = "PROTOCOL"      // Protocol-specific errors
	CategoryIO            ErrorCategory = "IO"            // Sink or file system issues
	CategoryChunk         ErrorCategory = "CHUNK"         // A chunk exhausted its retry budget
	CategoryContext       ErrorCategory = "CONTEXT"       // Context cancellation
	CategoryUnknown       ErrorCategory = "UNKNOWN"       // Unclassified errors
)

// NoChunk marks errors that are not tied to a chunk index.
const NoChunk = -1

// TransferError represents an error that occurred while transferring a file.
type TransferError struct {
	Err        error         // Original error
	Category   ErrorCategory // General category
	Retryable  bool          // Whether retry is recommended
	Timestamp  time.Time     // When the error occurred
	Resource   string        // What resource was being accessed
	StatusCode int           // HTTP status code when known
	Chunk      int           // Chunk index, NoChunk when not applicable
}

// Error implements the error interface
func (e *TransferError) Error() string {
	switch {
	case e.Chunk != NoChunk:
		return fmt.Sprintf("[%s] %s (chunk: %d): %v", e.Category, e.Resource, e.Chunk, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("[%s] %s (status: %d): %v", e.Category, e.Resource, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("[%s] %s: %v", e.Category, e.Resource, e.Err)
	}
}

// Unwrap provides the underlying cause for error unwrapping (compatible with errors.As)
func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is matches ErrChunkFailed for every CHUNK error.
func (e *TransferError) Is(target error) bool {
	return target == ErrChunkFailed && e.Category == CategoryChunk
}

// Common sentinel errors
var (
	ErrRangeNotSupported = New("resource does not support range reads")
	ErrNoLocator         = New("no resource locator available")
	ErrChunkFailed       = New("chunk transfer failed")
	ErrShortWrite        = New("short write to sink")
)

func newTransferError(err error, category ErrorCategory, resource string, retryable bool) *TransferError {
	return &TransferError{
		Err:       err,
		Category:  category,
		Retryable: retryable,
		Timestamp: time.Now(),
		Resource:  resource,
		Chunk:     NoChunk,
	}
}

// NewConfigurationError creates an error for a resource that cannot be
// transferred at all, such as one without a range-capable locator.
func NewConfigurationError(err error, resource string) *TransferError {
	return newTransferError(err, CategoryConfiguration, resource, false)
}

// NewNetworkError creates a network-related error
func NewNetworkError(err error, resource string, retryable bool) *TransferError {
	return newTransferError(err, CategoryNetwork, resource, retryable)
}

// NewIOError creates an I/O related error
func NewIOError(err error, resource string) *TransferError {
	return newTransferError(err, CategoryIO, resource, false)
}

// NewContextError creates a context cancellation error
func NewContextError(err error, resource string) *TransferError {
	return newTransferError(err, CategoryContext, resource, false)
}

// NewChunkError creates the terminal error for a chunk whose fetch failed.
func NewChunkError(err error, resource string, chunk int) *TransferError {
	e := newTransferError(err, CategoryChunk, resource, false)
	e.Chunk = chunk
	return e
}

// NewHTTPError creates an HTTP-specific error
func NewHTTPError(err error, resource string, statusCode int) *TransferError {
	retryable := false
	category := CategoryProtocol

	switch {
	case statusCode >= 500 && statusCode != 501:
		retryable = true
	case statusCode == 429:
		retryable = true
	case statusCode == 416:
		category = CategoryConfiguration
	case statusCode >= 400:
		category = CategoryProtocol
	}

	e := newTransferError(err, category, resource, retryable)
	e.StatusCode = statusCode
	return e
}

// IsRetryable determines if an error should be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transferErr *TransferError
	if As(err, &transferErr) {
		return transferErr.Retryable
	}

	return false
}

// IsConfigurationError reports whether err means the resource cannot be
// transferred with any number of retries.
func IsConfigurationError(err error) bool {
	var transferErr *TransferError
	return As(err, &transferErr) && transferErr.Category == CategoryConfiguration
}

// IsNetworkError determines if the error is network-related
func IsNetworkError(err error) bool {
	var transferErr *TransferError
	return As(err, &transferErr) && transferErr.Category == CategoryNetwork
}

// IsIOError determines if the error is I/O related
func IsIOError(err error) bool {
	var transferErr *TransferError
	return As(err, &transferErr) && transferErr.Category == CategoryIO
}

// ChunkIndex extracts the failing chunk index from an error if available.
func ChunkIndex(err error) (int, bool) {
	var transferErr *TransferError
	if As(err, &transferErr) && transferErr.Chunk != NoChunk {
		return transferErr.Chunk, true
	}
	return NoChunk, false
}

// GetStatusCode extracts the first HTTP status code recorded anywhere in the
// error chain.
func GetStatusCode(err error) (int, bool) {
	for err != nil {
		var transferErr *TransferError
		if !As(err, &transferErr) {
			return 0, false
		}

		if transferErr.StatusCode != 0 {
			return transferErr.StatusCode, true
		}

		err = transferErr.Err
	}

	return 0, false
}
