// Package packer implements the write-path engine: it streams blobs into a
// pending packfile, deduplicates against its own contents and a
// SharedIndexer, flushes on size/count/age thresholds, and uploads the
// finished pack, streaming through a temp file and a running hash rather
// than buffering the whole pack in memory.
package packer

import (
	"context"
	"os"
	"time"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/crypto"
	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/hashing"
	"github.com/dedupfs/corepack/internal/id"
	"github.com/dedupfs/corepack/internal/index"
	"github.com/dedupfs/corepack/internal/pack"
)

const (
	kb = 1024
	mb = 1024 * kb

	// MaxSize is the default flush threshold on pending ciphertext bytes.
	MaxSize = 4 * mb
	// MaxCount is the default flush threshold on blob entries.
	MaxCount = 10_000
	// MaxAge is the default flush threshold on pack age.
	MaxAge = 300 * time.Second
)

// Packer streams blobs into a single pending packfile. It is not safe for
// concurrent use: single ownership is enforced by convention, not by an
// internal lock. Multiple
// Packers may run concurrently, coordinating only through the shared
// Indexer.
type Packer struct {
	be      backend.Backend
	key     *crypto.Key
	indexer *index.Indexer

	MaxSize  uint32
	MaxCount uint32
	MaxAge   time.Duration

	now func() time.Time

	tmpfile *os.File
	hasher  *hashing.Hasher
	size    uint32
	count   uint32
	created time.Time
	saved   bool

	ip *pack.IndexPack
}

// New returns a Packer with a fresh temp file, ready to accept blobs.
func New(be backend.Backend, key *crypto.Key, indexer *index.Indexer) (*Packer, error) {
	p := &Packer{
		be:       be,
		key:      key,
		indexer:  indexer,
		MaxSize:  MaxSize,
		MaxCount: MaxCount,
		MaxAge:   MaxAge,
		now:      time.Now,
		hasher:   hashing.New(),
		saved:    true,
	}
	if err := p.openTempFile(); err != nil {
		return nil, err
	}
	p.ip = pack.NewIndexPack()
	p.created = p.now()
	return p, nil
}

func (p *Packer) openTempFile() error {
	f, err := os.CreateTemp("", "pack-")
	if err != nil {
		return errors.Wrap(err, "CreateTemp")
	}
	p.tmpfile = f
	return nil
}

// Size returns the number of ciphertext bytes written to the pending pack
// so far (blob ciphertexts only; header and trailer are not counted until
// Save writes them).
func (p *Packer) Size() uint32 {
	return p.size
}

// Count returns the number of blob entries added to the pending pack.
func (p *Packer) Count() uint32 {
	return p.count
}

// Has reports whether blobID is already present in this Packer's pending
// pack, independent of the shared Indexer.
func (p *Packer) Has(blobID id.ID) bool {
	return p.ip.Has(blobID)
}

// writeData feeds data through the running hash and appends it to the temp
// file, tracking size. Every byte that ends up in the uploaded pack passes
// through here exactly once, in write order, so the hash and the temp file
// contents never diverge.
func (p *Packer) writeData(data []byte) (uint32, error) {
	if err := p.hasher.Update(data); err != nil {
		return 0, err
	}
	n, err := p.tmpfile.Write(data)
	if err != nil {
		return 0, errors.Wrap(err, "write temp file")
	}
	p.size += uint32(n)
	return uint32(n), nil
}

// Add encrypts plaintext and appends it to the pending pack under blobID,
// unless blobID is already known to this Packer or to the shared Indexer,
// in which case it returns false without writing anything. It returns an
// error only for I/O or crypto failures, which are treated as fatal to the
// current pack.
//
// Any threshold reached after a successful Add (MaxCount, MaxSize, MaxAge)
// triggers an immediate Save+Reset before Add returns, so the caller never
// observes a Packer that has silently exceeded a threshold.
func (p *Packer) Add(ctx context.Context, blobID id.ID, tpe pack.BlobType, plaintext []byte) (bool, error) {
	if p.Has(blobID) {
		return false, nil
	}
	if p.indexer != nil && p.indexer.Has(blobID) {
		return false, nil
	}

	offset := p.size
	ciphertext, err := p.key.Encrypt(plaintext)
	if err != nil {
		return false, errors.Wrap(err, "encrypt blob")
	}

	n, err := p.writeData(ciphertext)
	if err != nil {
		return false, err
	}
	p.saved = false

	if err := p.ip.Add(blobID, tpe, offset, n); err != nil {
		return false, err
	}
	p.count++

	if p.count >= p.MaxCount || p.size >= p.MaxSize || p.now().Sub(p.created) >= p.MaxAge {
		if err := p.Save(ctx); err != nil {
			return true, err
		}
		if err := p.reset(); err != nil {
			return true, err
		}
	}

	return true, nil
}

// writeHeader encrypts and appends the pack's header, then the 4-byte
// unencrypted trailer holding the header's ciphertext length.
func (p *Packer) writeHeader() error {
	entries := p.ip.HeaderEntries()
	plaintext := pack.EncodeHeader(entries)

	ciphertext, err := p.key.Encrypt(plaintext)
	if err != nil {
		return errors.Wrap(err, "encrypt header")
	}
	if _, err := p.writeData(ciphertext); err != nil {
		return err
	}

	trailer := pack.EncodeTrailer(uint32(len(ciphertext)))
	if _, err := p.writeData(trailer); err != nil {
		return err
	}

	return nil
}

// Save finalizes the pending pack: writes its header and trailer, computes
// its Id from the full streamed hash, uploads it to the backend, and
// registers it with the shared Indexer. Save is idempotent: once it has
// published the pending pack (or found nothing pending to publish), later
// calls are a no-op until the next Add introduces new data, since the
// temp file and streamed hash are left as they were at publish time and
// must not be fed through writeData a second time.
//
// Save does not reset the Packer; call Reset (or let Add do it
// automatically) before reusing it for a new pack.
func (p *Packer) Save(ctx context.Context) error {
	if p.saved {
		return nil
	}
	if p.size == 0 {
		p.saved = true
		return nil
	}

	if err := p.writeHeader(); err != nil {
		return err
	}

	packID := p.hasher.Finalize()
	p.ip.SetID(packID)

	if _, err := p.tmpfile.Seek(0, 0); err != nil {
		return errors.Wrap(err, "seek temp file")
	}

	if err := p.be.WriteFull(ctx, backend.Handle{Type: backend.PackFile, Name: packID}, p.tmpfile); err != nil {
		return errors.WithKind(errors.KindBackend, errors.Wrap(err, "WriteFull"))
	}

	if p.indexer != nil {
		if err := p.indexer.Add(ctx, p.be, p.ip); err != nil {
			return errors.Wrap(err, "publish to indexer")
		}
	}

	p.saved = true
	return nil
}

// Reset discards the current temp file and prepares the Packer for a new
// pack. Reset refuses to run while the pending pack holds data Save has
// not yet published: silently dropping it would desynchronize the index
// from the bytes actually uploaded. Callers that want to abandon a pack
// deliberately should drain it with Save first.
func (p *Packer) Reset() error {
	if !p.saved {
		return errors.Fatal("packer: Reset called with unsaved data; call Save first")
	}
	return p.reset()
}

// reset performs the unconditional temp-file rotation used internally by
// Add (right after its threshold-triggered Save) and by Reset.
func (p *Packer) reset() error {
	name := p.tmpfile.Name()
	if err := p.tmpfile.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove temp file")
	}

	if err := p.openTempFile(); err != nil {
		return err
	}
	p.size = 0
	p.count = 0
	p.created = p.now()
	p.saved = true
	p.hasher.Reset()
	p.ip = pack.NewIndexPack()
	return nil
}

// Finalize is an alias for Save, matching the source's split between
// "finalize the logical operation" and "save the bytes" even though both
// names resolve to the same steps.
func (p *Packer) Finalize(ctx context.Context) error {
	return p.Save(ctx)
}

// Close releases the Packer's temp file without uploading anything. It is
// safe to call after Save, and is the cleanup path for an abandoned
// Packer, e.g. on cancellation.
func (p *Packer) Close() error {
	if p.tmpfile == nil {
		return nil
	}
	name := p.tmpfile.Name()
	err := p.tmpfile.Close()
	_ = os.Remove(name)
	if err != nil {
		return errors.Wrap(err, "close temp file")
	}
	return nil
}
