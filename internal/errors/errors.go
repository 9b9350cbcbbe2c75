package errors

import (
	stderrors "errors"
	"fmt"
)

// ArchiveError is the structured error type of the archive.
// It carries the kind code plus context for logging and user presentation.
type ArchiveError struct {
	// Code is the unique error code (e.g., "ERR_402_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the caller may retry the operation.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ArchiveError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *ArchiveError) Is(target error) bool {
	if t, ok := target.(*ArchiveError); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the kind encoded in the error code.
func (e *ArchiveError) Kind() Kind {
	return kindFromCode(e.Code)
}

// WithDetail adds a key-value detail to the error.
func (e *ArchiveError) WithDetail(key, value string) *ArchiveError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ArchiveError) WithSuggestion(suggestion string) *ArchiveError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ArchiveError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ArchiveError {
	return &ArchiveError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *ArchiveError {
	return New(kind.Code(), fmt.Sprintf(format, args...), nil)
}

// Wrap creates an ArchiveError from an existing error.
// The error's message becomes the ArchiveError message.
func Wrap(code string, err error) *ArchiveError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidIdentifier reports a malformed document identifier.
func InvalidIdentifier(message string) *ArchiveError {
	return New(ErrCodeInvalidIdentifier, message, nil)
}

// NotFound reports a missing document, fragment or inbox entry.
func NotFound(message string) *ArchiveError {
	return New(ErrCodeNotFound, message, nil)
}

// OutOfRange reports a fragment index past the end of a bundle.
func OutOfRange(message string) *ArchiveError {
	return New(ErrCodeOutOfRange, message, nil)
}

// UnsupportedFormat reports an upload that cannot be parsed.
func UnsupportedFormat(message string, cause error) *ArchiveError {
	return New(ErrCodeUnsupportedFormat, message, cause)
}

// StorageFailure reports a persistence layer error.
// An error that already carries a kind is returned unchanged.
func StorageFailure(message string, cause error) error {
	if hasKind(cause) {
		return cause
	}
	return New(ErrCodeStorageFailure, fmt.Sprintf("%s: %v", message, cause), cause)
}

// IndexFailure reports a search index error.
// An error that already carries a kind is returned unchanged.
func IndexFailure(message string, cause error) error {
	if hasKind(cause) {
		return cause
	}
	return New(ErrCodeIndexFailure, fmt.Sprintf("%s: %v", message, cause), cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ArchiveError {
	return New(ErrCodeInternal, message, cause)
}

// KindOf walks the error chain and returns the kind of the first ArchiveError.
// Errors without one are KindInternal.
func KindOf(err error) Kind {
	var ae *ArchiveError
	if stderrors.As(err, &ae) {
		return ae.Kind()
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// hasKind reports whether err already carries a specific kind.
func hasKind(err error) bool {
	var ae *ArchiveError
	return stderrors.As(err, &ae)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *ArchiveError
	if stderrors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCode extracts the error code from an ArchiveError.
// Returns empty string if not an ArchiveError.
func GetCode(err error) string {
	var ae *ArchiveError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an ArchiveError.
// Returns empty string if not an ArchiveError.
func GetCategory(err error) Category {
	var ae *ArchiveError
	if stderrors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
