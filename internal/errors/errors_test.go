package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk on fire")

	// When: wrapping as a storage failure
	err := StorageFailure("write blob", originalErr)

	// Then: unwrapping reaches the original error
	require.Error(t, err)
	assert.True(t, errors.Is(err, originalErr))
	assert.Equal(t, KindStorageFailure, KindOf(err))
}

func TestArchiveError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *ArchiveError
		expected string
	}{
		{
			name:     "invalid identifier",
			err:      InvalidIdentifier("bad id"),
			expected: "[ERR_401_INVALID_IDENTIFIER] bad id",
		},
		{
			name:     "not found",
			err:      NotFound("no such document"),
			expected: "[ERR_402_NOT_FOUND] no such document",
		},
		{
			name:     "out of range",
			err:      OutOfRange("fragment 9 of 2"),
			expected: "[ERR_403_OUT_OF_RANGE] fragment 9 of 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestArchiveError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := NotFound("document A")
	err2 := NotFound("document B")

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, OutOfRange("x")))
}

func TestKindOf_WalksWrappedChain(t *testing.T) {
	// Given: a kinded error wrapped by fmt.Errorf twice
	base := UnsupportedFormat("not a pdf", nil)
	wrapped := fmt.Errorf("ingest: %w", fmt.Errorf("extract: %w", base))

	// Then: the kind survives
	assert.Equal(t, KindUnsupportedFormat, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindUnsupportedFormat))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestStorageFailure_KeepsExistingKind(t *testing.T) {
	// Given: a NotFound error passing through a storage layer
	inner := NotFound("bundle missing")

	// When: the storage layer wraps it
	err := StorageFailure("get bundle", inner)

	// Then: the original kind is kept
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestIndexFailure_WrapsPlainError(t *testing.T) {
	err := IndexFailure("query postings", errors.New("database is locked"))

	assert.Equal(t, KindIndexFailure, KindOf(err))
	assert.Contains(t, err.Error(), "database is locked")
	assert.True(t, IsRetryable(err))
}

func TestKind_ClientCaused(t *testing.T) {
	tests := []struct {
		kind   Kind
		client bool
	}{
		{KindInvalidIdentifier, true},
		{KindNotFound, true},
		{KindOutOfRange, true},
		{KindUnsupportedFormat, true},
		{KindStorageFailure, false},
		{KindIndexFailure, false},
		{KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.client, tt.kind.ClientCaused())
		})
	}
}

func TestKind_CodeRoundTrip(t *testing.T) {
	kinds := []Kind{
		KindInternal, KindInvalidIdentifier, KindNotFound, KindOutOfRange,
		KindUnsupportedFormat, KindStorageFailure, KindIndexFailure,
	}
	for _, k := range kinds {
		assert.Equal(t, k, New(k.Code(), "m", nil).Kind(), k.String())
	}
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	storage := New(ErrCodeStorageFailure, "io", nil)
	assert.Equal(t, CategoryIO, storage.Category)
	assert.Equal(t, SeverityError, storage.Severity)

	notFound := New(ErrCodeNotFound, "gone", nil)
	assert.Equal(t, CategoryValidation, notFound.Category)
	assert.Equal(t, SeverityWarning, notFound.Severity)
	assert.False(t, notFound.Retryable)

	internal := New(ErrCodeIndexFailure, "idx", nil)
	assert.Equal(t, CategoryInternal, internal.Category)
}

func TestArchiveError_WithDetailAndSuggestion(t *testing.T) {
	err := NotFound("inbox entry not found").
		WithDetail("id", "abc").
		WithSuggestion("run 'docarchive inbox list'")

	assert.Equal(t, "abc", err.Details["id"])
	assert.Equal(t, "run 'docarchive inbox list'", err.Suggestion)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCodeAndCategory(t *testing.T) {
	err := fmt.Errorf("outer: %w", OutOfRange("x"))
	assert.Equal(t, ErrCodeOutOfRange, GetCode(err))
	assert.Equal(t, CategoryValidation, GetCategory(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
