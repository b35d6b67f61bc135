package pack

import "github.com/dedupfs/corepack/internal/errors"

// BlobType discriminates the two kinds of content a pack can hold.
type BlobType uint8

const (
	// DataBlob is opaque caller data.
	DataBlob BlobType = 0
	// TreeBlob is caller metadata.
	TreeBlob BlobType = 1
)

func (t BlobType) String() string {
	switch t {
	case DataBlob:
		return "data"
	case TreeBlob:
		return "tree"
	default:
		return "invalid"
	}
}

// MarshalJSON encodes BlobType as "data"/"tree", matching the Index file's
// JSON convention (distinct from the single-byte binary header encoding).
func (t BlobType) MarshalJSON() ([]byte, error) {
	switch t {
	case DataBlob:
		return []byte(`"data"`), nil
	case TreeBlob:
		return []byte(`"tree"`), nil
	default:
		return nil, errors.Errorf("invalid BlobType %d", t)
	}
}

// UnmarshalJSON decodes BlobType from "data"/"tree".
func (t *BlobType) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"data"`:
		*t = DataBlob
	case `"tree"`:
		*t = TreeBlob
	default:
		return errors.Errorf("invalid BlobType %s", data)
	}
	return nil
}
