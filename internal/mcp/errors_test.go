package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_Kinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			name:    "invalid identifier keeps message",
			err:     errors.InvalidIdentifier("bad id"),
			code:    ErrCodeInvalidParams,
			message: "bad id",
		},
		{
			name:    "not found keeps message",
			err:     errors.NotFound("no such document"),
			code:    ErrCodeNotFound,
			message: "no such document",
		},
		{
			name:    "out of range keeps message",
			err:     errors.OutOfRange("fragment 9 of 2"),
			code:    ErrCodeOutOfRange,
			message: "fragment 9 of 2",
		},
		{
			name:    "unsupported format keeps message",
			err:     errors.UnsupportedFormat("not a pdf", nil),
			code:    ErrCodeUnsupportedFormat,
			message: "not a pdf",
		},
		{
			name:    "storage failure is generic",
			err:     errors.StorageFailure("write blob", stderrors.New("disk full")),
			code:    ErrCodeStorageFailure,
			message: "StorageFailure failure, see server log.",
		},
		{
			name:    "index failure is generic",
			err:     errors.IndexFailure("insert postings", stderrors.New("locked")),
			code:    ErrCodeIndexFailure,
			message: "IndexFailure failure, see server log.",
		},
		{
			name:    "plain error is internal",
			err:     stderrors.New("boom"),
			code:    ErrCodeInternalError,
			message: "Internal failure, see server log.",
		},
		{
			name:    "wrapped kind survives",
			err:     fmt.Errorf("inbox show: %w", errors.NotFound("gone")),
			code:    ErrCodeNotFound,
			message: "gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

func TestMapError_EveryKindHasCode(t *testing.T) {
	kinds := []errors.Kind{
		errors.KindInternal,
		errors.KindInvalidIdentifier,
		errors.KindNotFound,
		errors.KindOutOfRange,
		errors.KindUnsupportedFormat,
		errors.KindStorageFailure,
		errors.KindIndexFailure,
	}
	for _, k := range kinds {
		_, ok := kindCodes[k]
		assert.True(t, ok, "kind %s has no MCP code", k)
	}
}

func TestMapError_Context(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeTimeout, MapError(fmt.Errorf("search: %w", context.Canceled)).Code)
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("query parameter is required")
	assert.Same(t, orig, MapError(orig))
}

func TestMapError_Suggestion(t *testing.T) {
	err := errors.NotFound("no such document").WithSuggestion("Run inbox_list first.")
	assert.Equal(t, "no such document Run inbox_list first.", MapError(err).Message)
}

func TestMCPError_Error(t *testing.T) {
	assert.Equal(t, "MCP error -32601: Tool 'nope' not found.", NewMethodNotFoundError("nope").Error())
	assert.Equal(t, ErrCodeNotFound, NewResourceNotFoundError("docarchive://x").Code)
}
