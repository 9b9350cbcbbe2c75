// Package docid parses and renders document identifiers.
//
// A DocID is the content address of a bundle: the SHA-256 digest of its bytes,
// rendered as 64 lowercase hex characters.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Aman-CERP/docarchive/internal/errors"
)

// Size is the length in bytes of a DocID.
const Size = sha256.Size

// Length is the length of the string form of a DocID.
const Length = 2 * Size

// DocID identifies one document for its whole lifetime.
// The zero value is not a valid identifier.
type DocID [Size]byte

// FromContent returns the content address of b.
func FromContent(b []byte) DocID {
	return DocID(sha256.Sum256(b))
}

// Parse validates s and returns the identifier it names.
// Only lowercase hex is accepted so every DocID has exactly one string form.
func Parse(s string) (DocID, error) {
	var id DocID
	if len(s) != Length {
		return id, errors.InvalidIdentifier(
			fmt.Sprintf("invalid document id %q: expected %d hex characters, got %d", truncate(s), Length, len(s)))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return id, errors.InvalidIdentifier(
				fmt.Sprintf("invalid document id %q: character %d is not lowercase hex", truncate(s), i))
		}
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return DocID{}, errors.InvalidIdentifier(fmt.Sprintf("invalid document id %q: %v", truncate(s), err))
	}
	return id, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) DocID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the 64-character hex form.
func (id DocID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns an abbreviated form for logs and terminal output.
func (id DocID) Short() string {
	return id.String()[:12]
}

// IsZero reports whether id is the zero value.
func (id DocID) IsZero() bool {
	return id == DocID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id DocID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *DocID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func truncate(s string) string {
	const max = 80
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
