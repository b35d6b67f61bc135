// Package index implements the SharedIndexer: the process-wide dedup
// oracle and pack-manifest registry that every Packer consults before
// writing a blob and publishes to after finalizing a pack.
package index

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/debug"
	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
	"github.com/dedupfs/corepack/internal/pack"
)

// Indexer is the shared, concurrency-safe registry that every Packer
// consults before writing a blob and publishes to after finalizing a pack.
// Has is a cheap, possibly-stale read; Add is a serialized write that
// makes its ids visible to every subsequent Has call in this process.
//
// Has must never return true for an id that was never added (a false
// positive would drop a blob the caller believes is already stored);
// returning false for an id added concurrently by another Packer is
// acceptable and merely costs a duplicate upload.
type Indexer struct {
	ids *xsync.MapOf[id.ID, struct{}]

	mu    sync.Mutex
	packs []*pack.IndexPack
}

// New returns an empty Indexer.
func New() *Indexer {
	return &Indexer{ids: xsync.NewMapOf[id.ID, struct{}]()}
}

// Has reports whether id is recorded in any pack this Indexer knows about.
func (ix *Indexer) Has(blobID id.ID) bool {
	_, ok := ix.ids.Load(blobID)
	return ok
}

// Add publishes a finalized IndexPack: it persists the manifest to the
// backend as an Index file and makes every id it contains visible to
// subsequent Has calls. It is safe to call concurrently from many Packers.
func (ix *Indexer) Add(ctx context.Context, be backend.Backend, ip *pack.IndexPack) error {
	if ip.IsEmpty() {
		return errors.Fatal("index: refusing to publish an empty IndexPack")
	}
	if ip.ID().IsNull() {
		return errors.Fatal("index: IndexPack has no pack id; call SetID before Add")
	}

	data, err := EncodeIndexFile([]*pack.IndexPack{ip})
	if err != nil {
		return err
	}

	if err := be.WriteFull(ctx, backend.Handle{Type: backend.IndexFile, Name: ip.ID()}, newReadSeeker(data)); err != nil {
		return errors.WithKind(errors.KindBackend, errors.Wrap(err, "WriteFull"))
	}

	// make ids visible only after the index file has landed, so a reader
	// that observes Has()==true can always fetch the backing pack.
	for _, b := range ip.Blobs() {
		ix.ids.Store(b.ID, struct{}{})
	}

	ix.mu.Lock()
	ix.packs = append(ix.packs, ip)
	ix.mu.Unlock()

	debug.Log("indexer: published pack %v with %d blobs", ip.ID(), len(ip.Blobs()))
	return nil
}

// Packs returns every finalized IndexPack this Indexer has published in
// this process, in publish order.
func (ix *Indexer) Packs() []*pack.IndexPack {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	out := make([]*pack.IndexPack, len(ix.packs))
	copy(out, ix.packs)
	return out
}

// Load reads every Index file from the backend and merges their blob ids
// into the Indexer, as a process restart or a second Indexer instance
// would need to before taking part in dedup against existing packs.
func Load(ctx context.Context, be backend.Backend) (*Indexer, error) {
	ix := New()

	ids, err := be.List(ctx, backend.IndexFile)
	if err != nil {
		return nil, errors.WithKind(errors.KindBackend, errors.Wrap(err, "List"))
	}

	for _, indexID := range ids {
		data, err := be.ReadFull(ctx, backend.Handle{Type: backend.IndexFile, Name: indexID})
		if err != nil {
			return nil, errors.WithKind(errors.KindBackend, errors.Wrapf(err, "ReadFull %s", indexID))
		}

		packs, err := DecodeIndexFile(data)
		if err != nil {
			return nil, errors.WithKind(errors.KindFormat, errors.Wrapf(err, "decode index %s", indexID))
		}

		for _, ip := range packs {
			for _, b := range ip.Blobs() {
				ix.ids.Store(b.ID, struct{}{})
			}
			ix.mu.Lock()
			ix.packs = append(ix.packs, ip)
			ix.mu.Unlock()
		}
	}

	return ix, nil
}
