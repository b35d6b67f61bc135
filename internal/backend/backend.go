// Package backend defines the narrow object-store contract the core
// consumes. Concrete drivers (S3, SFTP, local filesystem, ...) are external
// collaborators and out of scope for this module; internal/backend/mem is
// the only implementation carried here, for tests.
package backend

import (
	"context"
	"io"

	"github.com/dedupfs/corepack/internal/errors"
	"github.com/dedupfs/corepack/internal/id"
)

// FileType names one of the typed file namespaces a repository backend
// exposes.
type FileType int

const (
	PackFile FileType = iota
	IndexFile
	KeyFile
	SnapshotFile
	ConfigFile
)

func (t FileType) String() string {
	switch t {
	case PackFile:
		return "pack"
	case IndexFile:
		return "index"
	case KeyFile:
		return "key"
	case SnapshotFile:
		return "snapshot"
	case ConfigFile:
		return "config"
	default:
		return "unknown"
	}
}

// Handle identifies one file within a FileType namespace.
type Handle struct {
	Type FileType
	Name id.ID
}

// ErrNotFound is returned by ReadFull when no file exists for a Handle.
var ErrNotFound = errors.New("backend: file does not exist")

// Backend is the object store the core writes packs, indexes and keys to.
// Every operation may fail with a BackendError; the core performs no
// retries of its own — that is the adapter's responsibility.
type Backend interface {
	// ReadFull returns the complete contents of the file named by h.
	ReadFull(ctx context.Context, h Handle) ([]byte, error)

	// WriteFull uploads the complete contents read from rd under h. It is
	// idempotent: writing the same (type, id) twice must succeed without
	// creating a second copy or an error.
	WriteFull(ctx context.Context, h Handle, rd io.ReadSeeker) error

	// List returns, in deterministic ascending order, the ids of every
	// file of the given type.
	List(ctx context.Context, t FileType) ([]id.ID, error)
}
