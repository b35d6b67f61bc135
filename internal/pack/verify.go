package pack

import (
	"context"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/crypto"
	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
)

// List reads a pack's trailer and header from the backend and returns its
// parsed header entries plus the ciphertext length of the header itself.
// A packfile is readable iff its last 4 bytes decode to a header length H,
// the H bytes before that decrypt and parse into header entries, and the
// entries' lengths plus H plus 4 equal the file size. On a cache hit the
// file is not read and none of this is re-checked.
func List(ctx context.Context, be backend.Backend, key *crypto.Key, cache *HeaderCache, packID id.ID) ([]HeaderEntry, uint32, error) {
	if cache != nil {
		if entries, ok := cache.Get(packID); ok {
			return entries, headerCiphertextLen(entries), nil
		}
	}

	data, err := be.ReadFull(ctx, backend.Handle{Type: backend.PackFile, Name: packID})
	if err != nil {
		return nil, 0, errors.WithKind(errors.KindBackend, errors.Wrap(err, "ReadFull"))
	}

	if len(data) < TrailerSize {
		return nil, 0, errors.WithKind(errors.KindFormat, errors.New("pack: file too short to contain a trailer"))
	}

	headerLen, err := DecodeTrailer(data[len(data)-TrailerSize:])
	if err != nil {
		return nil, 0, err
	}

	headerStart := len(data) - TrailerSize - int(headerLen)
	if headerStart < 0 {
		return nil, 0, errors.WithKind(errors.KindFormat, errors.New("pack: header length exceeds file size"))
	}

	headerCiphertext := data[headerStart : len(data)-TrailerSize]
	plaintext, err := key.Decrypt(headerCiphertext)
	if err != nil {
		return nil, 0, errors.Wrap(err, "decrypt header")
	}

	entries, err := DecodeHeader(plaintext)
	if err != nil {
		return nil, 0, err
	}

	var blobTotal int
	for _, e := range entries {
		blobTotal += int(e.Length)
	}
	if blobTotal+int(headerLen)+TrailerSize != len(data) {
		return nil, 0, errors.WithKind(errors.KindFormat, errors.Errorf("pack: trailer law violated: %d + %d + %d != %d", blobTotal, headerLen, TrailerSize, len(data)))
	}

	if cache != nil {
		cache.Add(packID, entries)
	}

	return entries, headerLen, nil
}

func headerCiphertextLen(entries []HeaderEntry) uint32 {
	return uint32(crypto.CiphertextLength(CalculateHeaderSize(len(entries))))
}

// VerifyRoundTrip re-reads a finalized pack from the backend, checks the
// trailer law through List, and decrypts every blob at the offset implied
// by the lengths of the blobs before it, to confirm it matches the
// plaintext the caller originally added. A trailer-law, header-format or
// plaintext mismatch is reported with a format-kind error; a header or
// blob that fails to decrypt is reported with Decrypt's crypto-kind error.
func VerifyRoundTrip(ctx context.Context, be backend.Backend, key *crypto.Key, cache *HeaderCache, packID id.ID, want map[id.ID][]byte) error {
	entries, _, err := List(ctx, be, key, cache, packID)
	if err != nil {
		return err
	}

	data, err := be.ReadFull(ctx, backend.Handle{Type: backend.PackFile, Name: packID})
	if err != nil {
		return errors.WithKind(errors.KindBackend, errors.Wrap(err, "ReadFull"))
	}

	var offset uint32
	for _, e := range entries {
		ciphertext := data[offset : offset+e.Length]
		plaintext, err := key.Decrypt(ciphertext)
		if err != nil {
			return errors.Wrapf(err, "decrypt blob %s", e.ID)
		}

		if want != nil {
			if expected, ok := want[e.ID]; ok && string(expected) != string(plaintext) {
				return errors.WithKind(errors.KindFormat, errors.Errorf("pack: round trip mismatch for blob %s", e.ID))
			}
		}

		offset += e.Length
	}

	return nil
}
