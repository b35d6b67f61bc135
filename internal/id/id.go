// Package id implements the content-addressed identifier used throughout
// the repository: a 32-byte hash, hex-encoded in every external form.
package id

import (
	"encoding/hex"
	"encoding/json"

	"github.com/dedupfs/corepack/internal/errors"
)

// Length is the number of bytes in an ID.
const Length = 32

// ID references content within a repository: a pack, a blob or an index
// file. Two IDs are equal iff their bytes are equal.
type ID [Length]byte

// Null is the zero ID, never a valid content address.
var Null ID

// Parse converts a hex string into an ID.
func Parse(s string) (ID, error) {
	var id ID

	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errors.Wrap(err, "hex.DecodeString")
	}

	if len(b) != Length {
		return id, errors.Errorf("invalid length for ID: %d bytes", len(b))
	}

	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex representation of id.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Equal compares id to other.
func (id ID) Equal(other ID) bool {
	return id == other
}

// IsNull reports whether id is the zero value.
func (id ID) IsNull() bool {
	return id == Null
}

// MarshalJSON encodes id as a hex string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes id from a hex string.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "Unmarshal")
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}

// Less orders IDs by their byte representation, which gives a deterministic
// ascending order callers can rely on (e.g. FindKeyInBackend enumeration).
func Less(a, b ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
