package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_HidesInternalMessage(t *testing.T) {
	// Given: an internal storage error with a sensitive cause
	err := StorageFailure("write blob", errors.New("/var/lib/secret: permission denied"))

	// When: formatting for a user without debug
	msg := FormatForUser(err, false)

	// Then: the path is not exposed but the code is
	assert.NotContains(t, msg, "/var/lib/secret")
	assert.Contains(t, msg, ErrCodeStorageFailure)

	// And: debug mode shows it
	assert.Contains(t, FormatForUser(err, true), "/var/lib/secret")
}

func TestFormatForUser_ShowsClientMessage(t *testing.T) {
	err := NotFound("document not in inbox").WithSuggestion("check the id")

	msg := FormatForUser(err, false)

	assert.Contains(t, msg, "document not in inbox")
	assert.Contains(t, msg, "Suggestion: check the id")
}

func TestFormatForCLI(t *testing.T) {
	msg := FormatForCLI(InvalidIdentifier("expected 64 hex characters"))

	assert.Contains(t, msg, "Error: expected 64 hex characters")
	assert.Contains(t, msg, "Code: ERR_401_INVALID_IDENTIFIER")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_IncludesKindAndCause(t *testing.T) {
	err := IndexFailure("index fragment", errors.New("disk I/O error"))

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "IndexFailure", decoded["kind"])
	assert.Equal(t, "disk I/O error", decoded["cause"])
	assert.Equal(t, true, decoded["retryable"])
}

func TestFormatForLog(t *testing.T) {
	fields := FormatForLog(NotFound("gone").WithDetail("id", "abc"))

	assert.Equal(t, ErrCodeNotFound, fields["error_code"])
	assert.Equal(t, "NotFound", fields["kind"])
	assert.Equal(t, "abc", fields["detail_id"])

	plain := FormatForLog(errors.New("plain"))
	assert.Equal(t, "plain", plain["error"])
	assert.Nil(t, FormatForLog(nil))
}
