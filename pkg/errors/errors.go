package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Source errors (1xxx)
	ErrCodeSourceMissing    ErrorCode = "PDW1001"
	ErrCodeSourceUnreadable ErrorCode = "PDW1002"
	ErrCodeSourceColumn     ErrorCode = "PDW1003"

	// Configuration errors (2xxx)
	ErrCodeConfigInvalid ErrorCode = "PDW2001"
	ErrCodeConfigWrite   ErrorCode = "PDW2002"
	ErrCodeConfigExists  ErrorCode = "PDW2003"

	// Warehouse table errors (3xxx)
	ErrCodeTableRead   ErrorCode = "PDW3001"
	ErrCodeTableWrite  ErrorCode = "PDW3002"
	ErrCodeTableSchema ErrorCode = "PDW3003"

	// Data quality errors (4xxx)
	ErrCodeCatalogMiss  ErrorCode = "PDW4001"
	ErrCodeInvalidValue ErrorCode = "PDW4002"
	ErrCodeMissingDate  ErrorCode = "PDW4003"

	// State and journal errors (5xxx)
	ErrCodeStateRead      ErrorCode = "PDW5001"
	ErrCodeStateWrite     ErrorCode = "PDW5002"
	ErrCodeJournal        ErrorCode = "PDW5003"
	ErrCodeRecoveryFailed ErrorCode = "PDW5004"

	// Loader errors (6xxx)
	ErrCodeConnectionFailed  ErrorCode = "PDW6001"
	ErrCodeSQLExecution      ErrorCode = "PDW6002"
	ErrCodeSQLTransaction    ErrorCode = "PDW6003"
	ErrCodeUnsupportedDriver ErrorCode = "PDW6004"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "PDW9001"
	ErrCodeCancelled          ErrorCode = "PDW9002"
	ErrCodeMaxRetriesExceeded ErrorCode = "PDW9003"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityWarning  ErrorSeverity = "WARNING"
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// SourceMissingError reports a source table that is not on disk
func SourceMissingError(path string, cause error) *AppError {
	err := New(ErrCodeSourceMissing, fmt.Sprintf("Source file not found: %s", path)).
		WithContext("path", path).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check the paths.source_dir setting",
			"Generate or export the source tables before running the ETL",
		)
	err.Cause = cause
	return err
}

// CatalogMissError reports a label that has no id in its catalog map
func CatalogMissError(table, column, label string) *AppError {
	return New(ErrCodeCatalogMiss, fmt.Sprintf("No %s entry for %s %q", table, column, label)).
		WithContext("table", table).
		WithContext("column", column).
		WithContext("label", label).
		WithSuggestions(
			"Fix the source row so the value is present and valid",
			fmt.Sprintf("Add the missing label to %s", table),
		)
}

// TableError wraps an I/O failure on a warehouse table
func TableError(code ErrorCode, table, path string, cause error) *AppError {
	verb := "read"
	if code == ErrCodeTableWrite {
		verb = "write"
	}
	return Wrap(cause, code, fmt.Sprintf("Failed to %s table %s", verb, table)).
		WithContext("table", table).
		WithContext("path", path)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'projectdw init' to write a default configuration",
		)
}

// SQLError creates a loader SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	return Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))
}

// ValidationError creates a data validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeInvalidValue, fmt.Sprintf("Invalid value for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// AddContext attaches key to err when it is an AppError and returns err
func AddContext(err error, key string, value interface{}) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		appErr.WithContext(key, value)
	}
	return err
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
