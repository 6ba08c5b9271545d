// Package errors provides a lightweight structured error type (MonitorError)
// used to classify instrumentation failures so callers can decide the log level
// without inspecting messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies a MonitorError.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Instrumentation errors
	CategoryAttach ErrorCategory = "attach"
	CategoryExport ErrorCategory = "export"

	// External system errors
	CategoryNetwork ErrorCategory = "network"
	CategoryStorage ErrorCategory = "storage"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// MonitorError is a structured error with category, severity and context.
type MonitorError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for MonitorError
type ContextFields map[string]any

// Error implements the error interface
func (e *MonitorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

func (e *MonitorError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *MonitorError) WithContext(key string, value any) *MonitorError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new MonitorError
func New(category ErrorCategory, severity ErrorSeverity, message string) *MonitorError {
	return &MonitorError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new MonitorError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *MonitorError {
	return &MonitorError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As finds the first MonitorError in err's chain.
func As(err error) (*MonitorError, bool) {
	var me *MonitorError
	if stderrors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if me, ok := As(err); ok {
		return me.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a MonitorError
func GetCategory(err error) ErrorCategory {
	if me, ok := As(err); ok {
		return me.Category
	}
	return CategoryInternal
}

// GetSeverity extracts the severity, defaulting to SeverityError.
func GetSeverity(err error) ErrorSeverity {
	if me, ok := As(err); ok {
		return me.Severity
	}
	return SeverityError
}
