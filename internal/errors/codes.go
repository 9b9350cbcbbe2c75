// Package errors provides the structured error kinds of the document archive.
//
// Every failure the core reports belongs to exactly one Kind. Error codes
// follow the pattern ERR_XXX_DESCRIPTION where:
//   - 2XX: storage errors (disk, database)
//   - 4XX: client-caused errors (identifier, lookup, range, format)
//   - 5XX: internal errors (index, uncategorized)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryIO indicates file, disk and database errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates client-caused errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a client-caused condition.
	SeverityWarning Severity = "WARNING"
)

// Kind is the closed set of failure kinds reported by the archive.
type Kind int

const (
	// KindInternal is the fallback for failures that carry no kind.
	KindInternal Kind = iota
	// KindInvalidIdentifier marks a malformed document identifier.
	KindInvalidIdentifier
	// KindNotFound marks a missing document, fragment or inbox entry.
	KindNotFound
	// KindOutOfRange marks a fragment index beyond the bundle's fragment count.
	KindOutOfRange
	// KindUnsupportedFormat marks an upload that is not a parseable document.
	KindUnsupportedFormat
	// KindStorageFailure marks an I/O error of the persistence layer.
	KindStorageFailure
	// KindIndexFailure marks a search index write or query error.
	KindIndexFailure
)

// Error codes, one per Kind.
const (
	ErrCodeStorageFailure    = "ERR_201_STORAGE_FAILURE"
	ErrCodeInvalidIdentifier = "ERR_401_INVALID_IDENTIFIER"
	ErrCodeNotFound          = "ERR_402_NOT_FOUND"
	ErrCodeOutOfRange        = "ERR_403_OUT_OF_RANGE"
	ErrCodeUnsupportedFormat = "ERR_404_UNSUPPORTED_FORMAT"
	ErrCodeIndexFailure      = "ERR_501_INDEX_FAILURE"
	ErrCodeInternal          = "ERR_599_INTERNAL"
)

var kindCodes = map[Kind]string{
	KindInternal:          ErrCodeInternal,
	KindInvalidIdentifier: ErrCodeInvalidIdentifier,
	KindNotFound:          ErrCodeNotFound,
	KindOutOfRange:        ErrCodeOutOfRange,
	KindUnsupportedFormat: ErrCodeUnsupportedFormat,
	KindStorageFailure:    ErrCodeStorageFailure,
	KindIndexFailure:      ErrCodeIndexFailure,
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidIdentifier:
		return "InvalidIdentifier"
	case KindNotFound:
		return "NotFound"
	case KindOutOfRange:
		return "OutOfRange"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindStorageFailure:
		return "StorageFailure"
	case KindIndexFailure:
		return "IndexFailure"
	default:
		return "Internal"
	}
}

// Code returns the error code of the kind.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return ErrCodeInternal
}

// ClientCaused reports whether the kind describes a condition the caller
// can correct. Everything else is unexpected and surfaces as an internal error.
func (k Kind) ClientCaused() bool {
	switch k {
	case KindInvalidIdentifier, KindNotFound, KindOutOfRange, KindUnsupportedFormat:
		return true
	default:
		return false
	}
}

// kindFromCode maps an error code back to its kind.
func kindFromCode(code string) Kind {
	for k, c := range kindCodes {
		if c == code {
			return k
		}
	}
	return KindInternal
}

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_STORAGE_FAILURE"
	switch code[4] {
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryValidation:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether a caller may retry after this error.
// The archive itself never retries.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStorageFailure, ErrCodeIndexFailure:
		return true
	default:
		return false
	}
}
