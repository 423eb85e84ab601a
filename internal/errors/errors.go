// Package errors defines the application error taxonomy.
// Every error that can reach an HTTP response is an *AppError so handlers
// never have to guess a status code from an arbitrary error value.
package errors

import (
	"fmt"
	"net/http"
)

// Kind is the stable error classification used in the error envelope
// and for routing recovery policy: some kinds degrade locally, some are
// fatal for the current query, some retry.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindRateLimited           Kind = "rate_limited"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindDependencyDegraded    Kind = "dependency_degraded"
	KindTimeoutStage          Kind = "timeout_stage"
	KindTimeoutGlobal         Kind = "timeout_global"
	KindGenerationFailed      Kind = "generation_failed"
	KindCacheError            Kind = "cache_error"
	KindInternal              Kind = "internal"
)

// httpStatus maps each Kind to the HTTP status code it is reported under.
var httpStatus = map[Kind]int{
	KindInvalidInput:          http.StatusBadRequest,
	KindRateLimited:           http.StatusTooManyRequests,
	KindDependencyUnavailable: http.StatusServiceUnavailable,
	KindDependencyDegraded:    http.StatusOK,
	KindTimeoutStage:          http.StatusGatewayTimeout,
	KindTimeoutGlobal:         http.StatusGatewayTimeout,
	KindGenerationFailed:      http.StatusOK,
	KindCacheError:            http.StatusOK,
	KindInternal:              http.StatusInternalServerError,
}

// AppError is the application error structure. It carries enough to render
// the error envelope directly: {error: {kind, message, stage?, retry_after_ms?}}.
type AppError struct {
	Kind         Kind   `json:"kind"`
	Message      string `json:"message"`
	Stage        string `json:"stage,omitempty"`
	RetryAfterMs int    `json:"retry_after_ms,omitempty"`
	HTTPCode     int    `json:"-"`
	Cause        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithStage attaches the pipeline stage the error occurred in.
func (e *AppError) WithStage(stage string) *AppError {
	cp := *e
	cp.Stage = stage
	return &cp
}

// WithCause attaches an underlying error.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Cause = err
	return &cp
}

// WithRetryAfter sets a suggested client retry delay, used for rate_limited.
func (e *AppError) WithRetryAfter(ms int) *AppError {
	cp := *e
	cp.RetryAfterMs = ms
	return &cp
}

// New builds an AppError of the given kind with a message.
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:     kind,
		Message:  message,
		HTTPCode: httpStatus[kind],
	}
}

// NewInvalidInput creates an invalid_input error: empty/overlength/malformed query.
func NewInvalidInput(message string) *AppError {
	return New(KindInvalidInput, message)
}

// NewRateLimited creates a rate_limited error: admission refused.
func NewRateLimited(message string) *AppError {
	return New(KindRateLimited, message)
}

// NewDependencyUnavailable creates a dependency_unavailable error: e.g. vector store down.
func NewDependencyUnavailable(message string) *AppError {
	return New(KindDependencyUnavailable, message)
}

// NewDependencyDegraded creates a dependency_degraded error: sparse/reranker down, proceed anyway.
func NewDependencyDegraded(message string) *AppError {
	return New(KindDependencyDegraded, message)
}

// NewTimeoutStage creates a timeout_stage error: a single stage exceeded its budget.
func NewTimeoutStage(message string) *AppError {
	return New(KindTimeoutStage, message)
}

// NewTimeoutGlobal creates a timeout_global error: the orchestrator deadline was hit.
func NewTimeoutGlobal(message string) *AppError {
	return New(KindTimeoutGlobal, message)
}

// NewGenerationFailed creates a generation_failed error: LLM retries exhausted.
func NewGenerationFailed(message string) *AppError {
	return New(KindGenerationFailed, message)
}

// NewCacheError creates a cache_error: store read/write failed, degrade to no-cache.
func NewCacheError(message string) *AppError {
	return New(KindCacheError, message)
}

// NewInternal creates an opaque internal error.
func NewInternal(message string) *AppError {
	return New(KindInternal, message)
}

// IsAppError reports whether err is an *AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}
