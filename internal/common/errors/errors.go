// Package errors provides standardized error handling for the contract
// pack orchestration subsystem.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Provider / transport errors
	ErrCodeProvider       ErrorCode = "PROVIDER_ERROR"
	ErrCodeTransport      ErrorCode = "TRANSPORT_ERROR"
	ErrCodeProviderDecode ErrorCode = "PROVIDER_RESPONSE_DECODE_FAILED"

	// Configuration errors (fatal at startup, never per-request)
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Request / data errors
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Store errors
	ErrCodeEnvelopeConflict ErrorCode = "ENVELOPE_CONFLICT"
	ErrCodeStoreFailed      ErrorCode = "STORE_OPERATION_FAILED"

	// Assembly errors
	ErrCodePartialAssembly      ErrorCode = "PARTIAL_ASSEMBLY"
	ErrCodeAssemblyPrecondition ErrorCode = "ASSEMBLY_PRECONDITION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewProviderError wraps a definitive non-2xx response from the e-signature
// provider. 5xx responses are retryable; 4xx indicate a logic or validation
// problem and are never retried.
func NewProviderError(statusCode int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProvider,
		Message:   fmt.Sprintf("Provider returned status %d", statusCode),
		Details:   body,
		Retryable: statusCode >= 500,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a transient transport failure (connection reset,
// timeout) on the way to the provider or a backing store.
func NewTransportError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransport,
		Message:   fmt.Sprintf("Transport error calling %s", target),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderDecodeError reports an unparseable provider response body.
func NewProviderDecodeError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderDecode,
		Message:   "Failed to decode provider response",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationError reports missing or invalid startup configuration.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Invalid or missing configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports a missing contract or order record.
func NewNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError reports invalid input rejected before any network call.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEnvelopeConflictError reports a lost conditional write: another caller
// recorded an active envelope for the same pack first. The caller should
// re-read rather than retry the write.
func NewEnvelopeConflictError(orderID, pack string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEnvelopeConflict,
		Message:   "Pack already has an active envelope",
		Details:   fmt.Sprintf("orderId: %s, pack: %s", orderID, pack),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreError wraps a contract store failure.
func NewStoreError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreFailed,
		Message:   "Contract store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPartialAssemblyError reports that one or more packs failed to download
// during assembly. Non-fatal when partial manifests are allowed.
func NewPartialAssemblyError(orderID string, missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodePartialAssembly,
		Message:   "Assembly completed with missing documents",
		Details:   fmt.Sprintf("orderId: %s, missing packs: %v", orderID, missing),
		Retryable: true,
		Metadata:  map[string]interface{}{"missingPacks": missing},
		Timestamp: time.Now().UTC(),
	}
}

// NewAssemblyPreconditionError reports an assembly attempt before all packs
// had envelope ids recorded.
func NewAssemblyPreconditionError(orderID string, missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssemblyPrecondition,
		Message:   "Assembly requires all packs to have envelopes",
		Details:   fmt.Sprintf("orderId: %s, missing packs: %v", orderID, missing),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// AsStandard extracts a StandardError from err, or nil.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return nil
}

// IsRetryable reports whether the orchestrator may retry the failed call.
// Unknown error types are treated as transient transport failures.
func IsRetryable(err error) bool {
	if stdErr := AsStandard(err); stdErr != nil {
		return stdErr.Retryable
	}
	return err != nil
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	stdErr := AsStandard(err)
	return stdErr != nil && stdErr.Code == code
}

// GetRetryCount returns the bounded retry budget per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransport, ErrCodeStoreFailed:
		return 3
	case ErrCodeProvider:
		return 2 // only meaningful for retryable 5xx responses
	default:
		return 0 // business errors: no retry
	}
}

// HTTPStatus maps an error code to the status the API layer should return.
func HTTPStatus(err error) int {
	stdErr := AsStandard(err)
	if stdErr == nil {
		return http.StatusInternalServerError
	}
	switch stdErr.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeEnvelopeConflict:
		return http.StatusConflict
	case ErrCodeAssemblyPrecondition:
		return http.StatusPreconditionFailed
	case ErrCodeProvider, ErrCodeTransport, ErrCodeProviderDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
