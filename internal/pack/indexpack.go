package pack

import (
	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
)

// Blob is one entry in a pack's manifest: the blob's id, its type and
// where its ciphertext sits inside the pack. Offset and Length are in
// ciphertext bytes.
type Blob struct {
	ID     id.ID
	Type   BlobType
	Offset uint32
	Length uint32
}

// IndexPack is the append-only, in-memory manifest of one pack under
// construction. Ids are unique within an IndexPack and offsets are
// strictly monotonic in insertion order.
type IndexPack struct {
	id    id.ID
	blobs []Blob
}

// NewIndexPack returns an empty manifest.
func NewIndexPack() *IndexPack {
	return &IndexPack{}
}

// Add appends a new Blob entry. It enforces the offset-consistency
// invariant (offset must equal the sum of all prior lengths) and rejects a
// duplicate id, which would indicate a caller bug upstream of the Packer's
// own dedup check.
func (p *IndexPack) Add(blobID id.ID, tpe BlobType, offset, length uint32) error {
	var want uint32
	for _, b := range p.blobs {
		if b.ID == blobID {
			return errors.Errorf("pack: id %s already present in this pack", blobID)
		}
		want += b.Length
	}

	if offset != want {
		return errors.Errorf("pack: non-monotonic offset for %s: got %d, want %d", blobID, offset, want)
	}

	p.blobs = append(p.blobs, Blob{ID: blobID, Type: tpe, Offset: offset, Length: length})
	return nil
}

// Has reports whether id is already present in this manifest.
func (p *IndexPack) Has(blobID id.ID) bool {
	for _, b := range p.blobs {
		if b.ID == blobID {
			return true
		}
	}
	return false
}

// Blobs returns the manifest's entries in insertion order. The returned
// slice must not be mutated by the caller.
func (p *IndexPack) Blobs() []Blob {
	return p.blobs
}

// SetID sets the pack's own id. It must be called exactly once, after all
// blob writes, as part of the same finalize step that uploads the bytes.
func (p *IndexPack) SetID(packID id.ID) {
	p.id = packID
}

// ID returns the pack's id, or the zero id if SetID has not been called.
func (p *IndexPack) ID() id.ID {
	return p.id
}

// IsEmpty reports whether the manifest holds no blobs.
func (p *IndexPack) IsEmpty() bool {
	return len(p.blobs) == 0
}

// HeaderEntries converts the manifest into the plaintext entries the pack
// header encodes.
func (p *IndexPack) HeaderEntries() []HeaderEntry {
	entries := make([]HeaderEntry, len(p.blobs))
	for i, b := range p.blobs {
		entries[i] = HeaderEntry{Type: b.Type, Length: b.Length, ID: b.ID}
	}
	return entries
}

// CalculateHeaderSize returns the plaintext size of the header that would
// be produced for the given number of blob entries.
func CalculateHeaderSize(n int) int {
	return n * HeaderEntrySize
}
