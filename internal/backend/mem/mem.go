// Package mem implements an in-memory backend.Backend, adapted from
// restic's internal/backend/mem. It exists only so the core's own tests
// have a concrete Backend to exercise the write path against; it is never
// a deployment target.
package mem

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/debug"
	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
)

var _ backend.Backend = (*Backend)(nil)

// Backend stores every file as a byte slice in a map guarded by a mutex.
type Backend struct {
	mu   sync.Mutex
	data map[backend.Handle][]byte
}

// New returns an empty in-memory backend.
func New() *Backend {
	debug.Log("created new memory backend")
	return &Backend{data: make(map[backend.Handle][]byte)}
}

// ReadFull returns the complete contents stored at h.
func (be *Backend) ReadFull(ctx context.Context, h backend.Handle) ([]byte, error) {
	be.mu.Lock()
	defer be.mu.Unlock()

	buf, ok := be.data[h]
	if !ok {
		return nil, backend.ErrNotFound
	}

	out := make([]byte, len(buf))
	copy(out, buf)
	return out, ctx.Err()
}

// WriteFull uploads rd's complete contents under h. Writing an id that is
// already present with the same content is a no-op, matching the
// idempotence the content addressing scheme relies on for safe retries;
// different content under an existing handle is an error.
func (be *Backend) WriteFull(ctx context.Context, h backend.Handle, rd io.ReadSeeker) error {
	if _, err := rd.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "Seek")
	}

	buf, err := io.ReadAll(rd)
	if err != nil {
		return errors.Wrap(err, "ReadAll")
	}

	// non-cryptographic integrity check on what we actually buffered,
	// mirroring restic's mem backend's use of xxhash for Save().
	sum := xxhash.Sum64(buf)

	be.mu.Lock()
	defer be.mu.Unlock()

	if existing, ok := be.data[h]; ok {
		if xxhash.Sum64(existing) != sum {
			return errors.Errorf("backend: handle %v already exists with different content", h)
		}
		return ctx.Err()
	}

	be.data[h] = buf
	debug.Log("mem backend: wrote %v (%d bytes)", h, len(buf))
	return ctx.Err()
}

// List returns every id of type t, sorted ascending.
func (be *Backend) List(ctx context.Context, t backend.FileType) ([]id.ID, error) {
	be.mu.Lock()
	var ids []id.ID
	for h := range be.data {
		if h.Type == t {
			ids = append(ids, h.Name)
		}
	}
	be.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return id.Less(ids[i], ids[j]) })
	return ids, ctx.Err()
}

// Bytes returns a copy of the raw bytes stored at h, for test assertions
// that need to inspect or tamper with on-disk content directly.
func (be *Backend) Bytes(h backend.Handle) ([]byte, bool) {
	be.mu.Lock()
	defer be.mu.Unlock()

	buf, ok := be.data[h]
	if !ok {
		return nil, false
	}

	out := make([]byte, len(buf))
	copy(out, buf)
	return out, true
}

// NewByteReadSeeker adapts a byte slice to io.ReadSeeker for tests that
// need to hand WriteFull something other than an *os.File.
func NewByteReadSeeker(b []byte) io.ReadSeeker {
	return bytes.NewReader(b)
}
