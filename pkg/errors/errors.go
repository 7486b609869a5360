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
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SPIPE1001"
	ErrCodeConnectionTimeout    ErrorCode = "SPIPE1002"
	ErrCodeAuthenticationFailed ErrorCode = "SPIPE1003"
	ErrCodeNetworkUnavailable   ErrorCode = "SPIPE1004"
	ErrCodeConnectionNotFound   ErrorCode = "SPIPE1005"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "SPIPE2001"
	ErrCodeConfigInvalid  ErrorCode = "SPIPE2002"
	ErrCodeConfigMissing  ErrorCode = "SPIPE2003"

	// Pipeline graph errors (3xxx)
	ErrCodeGraphInvalid      ErrorCode = "SPIPE3001"
	ErrCodeGraphCycle        ErrorCode = "SPIPE3002"
	ErrCodeRefreshOrder      ErrorCode = "SPIPE3003"
	ErrCodeUnknownDependency ErrorCode = "SPIPE3004"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "SPIPE4001"
	ErrCodeSQLPermission     ErrorCode = "SPIPE4002"
	ErrCodeSQLTimeout        ErrorCode = "SPIPE4003"
	ErrCodeSQLObjectNotFound ErrorCode = "SPIPE4005"
	ErrCodeSQLExecution      ErrorCode = "SPIPE4006"
	ErrCodeNoResults         ErrorCode = "SPIPE4008"
	ErrCodeInsertFailed      ErrorCode = "SPIPE4010"
	ErrCodeRefreshFailed     ErrorCode = "SPIPE4011"

	// Local storage errors (5xxx)
	ErrCodeArchiveFailed ErrorCode = "SPIPE5001"
	ErrCodeLedgerFailed  ErrorCode = "SPIPE5002"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "SPIPE6001"
	ErrCodeInvalidInput     ErrorCode = "SPIPE6002"
	ErrCodeGeneration       ErrorCode = "SPIPE6003"

	// Dashboard errors (7xxx)
	ErrCodeDashboardRender ErrorCode = "SPIPE7001"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "SPIPE9001"
	ErrCodeTimeout            ErrorCode = "SPIPE9002"
	ErrCodeResourceExhausted  ErrorCode = "SPIPE9003"
	ErrCodeServiceUnavailable ErrorCode = "SPIPE9004"
	ErrCodeResultParsing      ErrorCode = "SPIPE9005"
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

// Wrap wraps an existing error with AppError. A nil error yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
		appErr.Recoverable = ae.Recoverable
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

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the Snowflake account identifier in connections.toml",
			"Check SNOWFLAKE_CONNECTION_NAME points at the intended connection",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'studiopipe connections' to list the resolved connections",
		)
}

// SQLError creates an SQL execution error. The code is refined from the
// driver message when it names a permission, timeout or missing object.
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	causeText := ""
	if cause != nil {
		causeText = strings.ToLower(cause.Error())
	}

	switch {
	case strings.Contains(causeText, "insufficient privileges") || strings.Contains(causeText, "access denied"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Verify the role has the required privileges",
			"Check the role configured for the connection",
		)
	case strings.Contains(causeText, "timeout") || strings.Contains(causeText, "deadline exceeded"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase snowflake.query_timeout",
			"Check the warehouse size and queue",
		)
	case strings.Contains(causeText, "does not exist") || strings.Contains(causeText, "not authorized"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Verify the object exists in the target database/schema",
			"Check warehouse.database and the pipeline graph file",
		)
	case strings.Contains(causeText, "syntax error"):
		err.Code = ErrCodeSQLSyntax
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
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
