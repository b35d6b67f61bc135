package packer

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/crypto"
	"github.com/dedupfs/corepack/internal/debug"
	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
	"github.com/dedupfs/corepack/internal/index"
	"github.com/dedupfs/corepack/internal/pack"
)

func init() {
	// don't import go.uber.org/automaxprocs to disable the log output
	_, _ = maxprocs.Set()
}

// Manager owns one Packer per BlobType and routes Add calls to the right
// one, giving callers a pool of Packers (one per blob type) without asking
// them to manage Packer lifetimes by hand. Importing automaxprocs here, at
// process startup, makes GOMAXPROCS (and so the default worker count that
// bounds Shutdown's fan-out) reflect a container's actual CPU quota rather
// than the host's.
type Manager struct {
	be      backend.Backend
	key     *crypto.Key
	indexer *index.Indexer

	workers int

	mu      sync.Mutex
	packers map[pack.BlobType]*Packer
}

// NewManager returns a Manager with no Packers yet open; one is created
// lazily per BlobType on first use. workers bounds the concurrency of
// Shutdown's fan-out; 0 means runtime.GOMAXPROCS(0).
func NewManager(be backend.Backend, key *crypto.Key, indexer *index.Indexer, workers int) *Manager {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Manager{
		be:      be,
		key:     key,
		indexer: indexer,
		workers: workers,
		packers: make(map[pack.BlobType]*Packer),
	}
}

func (m *Manager) packerFor(tpe pack.BlobType) (*Packer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.packers[tpe]; ok {
		return p, nil
	}

	p, err := New(m.be, m.key, m.indexer)
	if err != nil {
		return nil, err
	}
	m.packers[tpe] = p
	debug.Log("packer.Manager: opened packer for blob type %v", tpe)
	return p, nil
}

// Add routes plaintext to the Packer owned by tpe, creating it on first
// use. It has the same dedup and threshold semantics as Packer.Add.
func (m *Manager) Add(ctx context.Context, blobID id.ID, tpe pack.BlobType, plaintext []byte) (bool, error) {
	p, err := m.packerFor(tpe)
	if err != nil {
		return false, err
	}
	return p.Add(ctx, blobID, tpe, plaintext)
}

// Shutdown finalizes every owned Packer concurrently, bounded by the
// Manager's configured worker count, and returns the first error
// encountered (if any) after every Packer has been given the chance to
// flush. A Packer with an empty pending pack is a no-op per Packer.Save's
// "no empty packs" rule, so Shutdown never uploads or publishes on behalf
// of a Packer that was never used.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	packers := make([]*Packer, 0, len(m.packers))
	for _, p := range m.packers {
		packers = append(packers, p)
	}
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, p := range packers {
		p := p
		g.Go(func() error {
			if err := p.Finalize(ctx); err != nil {
				return errors.Wrap(err, "finalize packer")
			}
			return p.Close()
		})
	}

	return g.Wait()
}
