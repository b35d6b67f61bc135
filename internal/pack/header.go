package pack

import (
	"encoding/binary"

	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
)

// HeaderEntrySize is the fixed binary size of one PackHeaderEntry: a type
// byte, a little-endian u32 length and a 32-byte id.
const HeaderEntrySize = 1 + 4 + id.Length

// TrailerSize is the size of the unencrypted header-length trailer
// appended after the encrypted header.
const TrailerSize = 4

// MaxHeaderEntries equals the Packer's default MaxCount flush threshold.
// It is not enforced: EncodeHeader and DecodeHeader accept any number of
// entries, and a Packer whose MaxCount is raised can write more.
const MaxHeaderEntries = 10_000

// HeaderEntry is the plaintext record for one blob inside a pack header:
// tpe:u8 || len:u32-LE || id:32 bytes.
type HeaderEntry struct {
	Type   BlobType
	Length uint32
	ID     id.ID
}

// EncodeHeader serializes entries in order into the pack header plaintext.
func EncodeHeader(entries []HeaderEntry) []byte {
	buf := make([]byte, 0, len(entries)*HeaderEntrySize)

	for _, e := range entries {
		var rec [HeaderEntrySize]byte
		rec[0] = byte(e.Type)
		binary.LittleEndian.PutUint32(rec[1:5], e.Length)
		copy(rec[5:], e.ID[:])
		buf = append(buf, rec[:]...)
	}

	return buf
}

// DecodeHeader parses a pack header plaintext back into its entries. It
// rejects any buffer whose length is not a multiple of HeaderEntrySize.
func DecodeHeader(data []byte) ([]HeaderEntry, error) {
	if len(data)%HeaderEntrySize != 0 {
		return nil, errors.WithKind(errors.KindFormat, errors.Errorf("pack: corrupt header, length %d is not a multiple of %d", len(data), HeaderEntrySize))
	}

	n := len(data) / HeaderEntrySize
	entries := make([]HeaderEntry, n)

	for i := 0; i < n; i++ {
		rec := data[i*HeaderEntrySize : (i+1)*HeaderEntrySize]

		tpe := BlobType(rec[0])
		if tpe != DataBlob && tpe != TreeBlob {
			return nil, errors.WithKind(errors.KindFormat, errors.Errorf("pack: corrupt header, invalid blob type %d", rec[0]))
		}

		entries[i].Type = tpe
		entries[i].Length = binary.LittleEndian.Uint32(rec[1:5])
		copy(entries[i].ID[:], rec[5:])
	}

	return entries, nil
}

// EncodeTrailer serializes the ciphertext header length as a little-endian
// u32, the unencrypted trailer appended after the encrypted header.
func EncodeTrailer(headerCiphertextLength uint32) []byte {
	buf := make([]byte, TrailerSize)
	binary.LittleEndian.PutUint32(buf, headerCiphertextLength)
	return buf
}

// DecodeTrailer parses the 4-byte trailer back into a header length.
func DecodeTrailer(buf []byte) (uint32, error) {
	if len(buf) != TrailerSize {
		return 0, errors.WithKind(errors.KindFormat, errors.Errorf("pack: trailer must be %d bytes, got %d", TrailerSize, len(buf)))
	}
	return binary.LittleEndian.Uint32(buf), nil
}
