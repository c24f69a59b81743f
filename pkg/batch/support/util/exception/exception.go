// Package exception provides the error type shared by every epiflow stage.
// A BatchError records which module failed, a short message, the wrapped cause,
// and whether the failure is worth retrying. Callers classify causes with
// errors.Is against package-level sentinels.
package exception

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
)

// BatchError is an error raised while a pipeline runs.
type BatchError struct {
	// Module names the component that failed (e.g. "reader", "cases", "forecast", "config").
	Module string
	// Message is a concise description of the failure.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	// StackTrace is captured at construction for debugging.
	StackTrace string

	isRetryable bool
}

// NewBatchError creates a new BatchError.
func NewBatchError(module, message string, originalErr error, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
		isRetryable: isRetryable,
	}
}

// NewBatchErrorf creates a non-retryable BatchError with a formatted message.
func NewBatchErrorf(module string, originalErr error, format string, a ...interface{}) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, a...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsBatchError reports whether err, or anything it wraps, is a BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsTemporary reports whether err is worth another attempt.
// A BatchError's retryable flag wins; otherwise network timeouts and
// connection-level failures count as temporary. Context cancellation never does.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
