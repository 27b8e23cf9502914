package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeStorage for snapshot store errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeJira for Jira responses the client cannot use
	ErrorTypeJira ErrorType = "jira"
	// ErrorTypeFetchFailed when a page request fails after the retry budget.
	// Fatal to that refresh cycle only.
	ErrorTypeFetchFailed ErrorType = "fetch_failed"
	// ErrorTypeMalformedRecord when a single payload lacks a required field.
	// The record is skipped, the batch continues.
	ErrorTypeMalformedRecord ErrorType = "malformed_record"
	// ErrorTypeDataIntegrity for clamped values and missing history. These
	// are recorded as flags, never returned from the pipeline.
	ErrorTypeDataIntegrity ErrorType = "data_integrity"
)

// EngineError represents a structured error with context
type EngineError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails sets the free-form details
func (e *EngineError) WithDetails(details string) *EngineError {
	e.Details = details
	return e
}

// NewError creates a new EngineError
func NewError(errorType ErrorType, code, message string) *EngineError {
	return &EngineError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *EngineError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *EngineError {
	return NewError(ErrorTypeStorage, code, message)
}

// NewJiraError creates a Jira-specific error
func NewJiraError(code, message string) *EngineError {
	return NewError(ErrorTypeJira, code, message)
}

// NewMalformedRecordError creates a single-record normalization failure
func NewMalformedRecordError(code, message string) *EngineError {
	return NewError(ErrorTypeMalformedRecord, code, message)
}

// NewDataIntegrityError creates a data integrity error
func NewDataIntegrityError(code, message string) *EngineError {
	return NewError(ErrorTypeDataIntegrity, code, message)
}

// WrapError wraps an existing error with EngineError context
func WrapError(err error, errorType ErrorType, code, message string) *EngineError {
	return &EngineError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// IsErrorType reports whether any error in the chain is an EngineError of
// the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		if engineErr.Type == errorType {
			return true
		}
		return engineErr.Cause != nil && IsErrorType(engineErr.Cause, errorType)
	}
	return false
}
