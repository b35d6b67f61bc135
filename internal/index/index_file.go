package index

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
	"github.com/dedupfs/corepack/internal/pack"
)

// indexFile is the on-disk JSON shape of an Index file: one or more pack
// manifests, with field names (id, type, offset, length) kept stable for
// interoperability.
type indexFile struct {
	Packs []indexPackJSON `json:"packs"`
}

type indexPackJSON struct {
	ID    id.ID          `json:"id"`
	Blobs []indexBlobJSON `json:"blobs"`
}

type indexBlobJSON struct {
	ID     id.ID         `json:"id"`
	Type   pack.BlobType `json:"type"`
	Offset uint32        `json:"offset"`
	Length uint32        `json:"length"`
}

// EncodeIndexFile serializes a set of finalized IndexPacks into an Index
// file's on-disk bytes.
func EncodeIndexFile(packs []*pack.IndexPack) ([]byte, error) {
	out := indexFile{Packs: make([]indexPackJSON, len(packs))}

	for i, ip := range packs {
		blobs := ip.Blobs()
		jsonBlobs := make([]indexBlobJSON, len(blobs))
		for j, b := range blobs {
			jsonBlobs[j] = indexBlobJSON{ID: b.ID, Type: b.Type, Offset: b.Offset, Length: b.Length}
		}
		out.Packs[i] = indexPackJSON{ID: ip.ID(), Blobs: jsonBlobs}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "Marshal")
	}
	return data, nil
}

// DecodeIndexFile parses an Index file's bytes back into IndexPack
// manifests.
func DecodeIndexFile(data []byte) ([]*pack.IndexPack, error) {
	var in indexFile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.WithKind(errors.KindFormat, errors.Wrap(err, "Unmarshal"))
	}

	packs := make([]*pack.IndexPack, len(in.Packs))
	for i, p := range in.Packs {
		ip := pack.NewIndexPack()
		for _, b := range p.Blobs {
			if err := ip.Add(b.ID, b.Type, b.Offset, b.Length); err != nil {
				return nil, errors.WithKind(errors.KindFormat, errors.Wrapf(err, "pack %s", p.ID))
			}
		}
		ip.SetID(p.ID)
		packs[i] = ip
	}

	return packs, nil
}

// newReadSeeker adapts a byte slice into an io.ReadSeeker for handing to
// backend.WriteFull.
func newReadSeeker(data []byte) io.ReadSeeker {
	return bytes.NewReader(data)
}
