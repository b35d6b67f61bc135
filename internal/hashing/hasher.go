// Package hashing implements the streaming content hash used to compute
// pack and blob identifiers, plus reader/writer wrappers that feed every
// byte passing through them into a hash.
package hashing

import (
	"crypto/sha256"
	"hash"
	"io"

	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
)

// Hasher is a streaming 256-bit content hash. Finalize is non-destructive:
// a subsequent Reset returns it to its initial state. Calling Update after
// Finalize without an intervening Reset is a programming error.
type Hasher struct {
	h        hash.Hash
	finished bool
}

// New returns a Hasher seeded to its initial state.
func New() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Update feeds data into the hash.
func (h *Hasher) Update(data []byte) error {
	if h.finished {
		return errors.Fatal("hashing: Update called after Finalize without Reset")
	}

	// hash.Hash.Write never returns an error.
	_, _ = h.h.Write(data)
	return nil
}

// Finalize returns the digest of everything written so far.
func (h *Hasher) Finalize() id.ID {
	h.finished = true

	var out id.ID
	h.h.Sum(out[:0])
	return out
}

// Reset returns the Hasher to its initial, empty state.
func (h *Hasher) Reset() {
	h.h.Reset()
	h.finished = false
}

// reader wraps an io.Reader, feeding every byte read through a hash.
type reader struct {
	r io.Reader
	h hash.Hash
}

// NewReader returns an io.Reader that feeds all data read from r through h.
func NewReader(r io.Reader, h hash.Hash) io.Reader {
	return &reader{r: r, h: h}
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.h.Write(p[:n])
	}
	return n, err
}

// writer wraps an io.Writer, feeding every byte written through a hash.
type writer struct {
	w io.Writer
	h hash.Hash
}

// NewWriter returns an io.Writer that feeds all data written to w through h.
func NewWriter(w io.Writer, h hash.Hash) io.Writer {
	return &writer{w: w, h: h}
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n > 0 {
		w.h.Write(p[:n])
	}
	return n, err
}
