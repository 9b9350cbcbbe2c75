// Package mcp exposes the archive as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Aman-CERP/docarchive/internal/errors"
)

// Custom MCP error codes, one per archive error kind.
const (
	ErrCodeNotFound          = -32001
	ErrCodeOutOfRange        = -32002
	ErrCodeUnsupportedFormat = -32003
	ErrCodeStorageFailure    = -32004
	ErrCodeIndexFailure      = -32005
	ErrCodeTimeout           = -32006

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// kindCodes is the one place error kinds become MCP codes.
var kindCodes = map[errors.Kind]int{
	errors.KindInvalidIdentifier: ErrCodeInvalidParams,
	errors.KindNotFound:          ErrCodeNotFound,
	errors.KindOutOfRange:        ErrCodeOutOfRange,
	errors.KindUnsupportedFormat: ErrCodeUnsupportedFormat,
	errors.KindStorageFailure:    ErrCodeStorageFailure,
	errors.KindIndexFailure:      ErrCodeIndexFailure,
	errors.KindInternal:          ErrCodeInternalError,
}

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an archive error to an MCP error. Client-caused kinds
// keep their message; storage, index and internal failures get a generic one.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var me *MCPError
	if stderrors.As(err, &me) {
		return me
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case stderrors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	kind := errors.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = ErrCodeInternalError
	}
	if !kind.ClientCaused() {
		return &MCPError{Code: code, Message: fmt.Sprintf("%s failure, see server log.", kind)}
	}

	var ae *errors.ArchiveError
	message := err.Error()
	if stderrors.As(err, &ae) {
		message = ae.Message
		if ae.Suggestion != "" {
			message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
		}
	}
	return &MCPError{Code: code, Message: message}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeNotFound, Message: fmt.Sprintf("Resource '%s' not found.", uri)}
}
