package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a specific error type for better error handling
type ErrorCode string

const (
	// Infrastructure errors
	ErrCodeConfigLoad         ErrorCode = "CONFIG_LOAD_FAILED"
	ErrCodeSwitchNotConnected ErrorCode = "SWITCH_NOT_CONNECTED"
	ErrCodeCodecFailed        ErrorCode = "CODEC_FAILED"

	// Balancing errors
	ErrCodeNoBackends    ErrorCode = "NO_BACKENDS_AVAILABLE"
	ErrCodeInvalidPacket ErrorCode = "INVALID_PACKET"

	// Admission errors
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeAuthFailed        ErrorCode = "AUTHENTICATION_FAILED"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ControllerError represents a structured error with context
type ControllerError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Cause     error                  `json:"-"` // Original error
}

// Error implements the error interface
func (e *ControllerError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *ControllerError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error code
func (e *ControllerError) Is(target error) bool {
	if t, ok := target.(*ControllerError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithMetadata adds metadata to the error
func (e *ControllerError) WithMetadata(key string, value interface{}) *ControllerError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewError creates a new ControllerError
func NewError(code ErrorCode, component, message string) *ControllerError {
	return &ControllerError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewErrorWithCause creates a new ControllerError with an underlying cause
func NewErrorWithCause(code ErrorCode, component, message string, cause error) *ControllerError {
	return &ControllerError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
		Details:   cause.Error(),
	}
}

// WrapError wraps an existing error with ControllerError structure
func WrapError(err error, code ErrorCode, component, message string) *ControllerError {
	if err == nil {
		return nil
	}

	return &ControllerError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Details:   err.Error(),
	}
}

// Common error constructors for frequently used errors

// NewNoBackendsError creates an error for an empty backend pool
func NewNoBackendsError() *ControllerError {
	return NewError(
		ErrCodeNoBackends,
		"server_pool",
		"No backends configured for the virtual address",
	)
}

// NewSwitchNotConnectedError creates an error for intents emitted with no attached switch
func NewSwitchNotConnectedError() *ControllerError {
	return NewError(
		ErrCodeSwitchNotConnected,
		"balancer",
		"No switch link attached, event discarded",
	)
}

// NewCodecError creates an error for wire encoding/decoding failures
func NewCodecError(what string, cause error) *ControllerError {
	return NewErrorWithCause(
		ErrCodeCodecFailed,
		"openflow",
		fmt.Sprintf("Failed to encode/decode %s", what),
		cause,
	).WithMetadata("message", what)
}

// IsControllerError checks if an error is a ControllerError
func IsControllerError(err error) bool {
	var cErr *ControllerError
	return errors.As(err, &cErr)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var cErr *ControllerError
	if errors.As(err, &cErr) {
		return cErr.Code
	}
	return ErrCodeInternalError
}
