package packer_test

import (
	"context"
	"testing"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/backend/mem"
	"github.com/dedupfs/corepack/internal/crypto"
	"github.com/dedupfs/corepack/internal/index"
	"github.com/dedupfs/corepack/internal/pack"
	"github.com/dedupfs/corepack/internal/packer"
)

// Manager routing: a Data blob goes to the Data Packer, and Shutdown
// uploads exactly one pack for it; no Tree Packer is opened because no Tree
// blob is added. TestManagerSeparatesDataAndTreePackers covers both types.
func TestManagerRoutesByBlobType(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	ix := index.New()
	key := crypto.NewRandomKey()
	m := packer.NewManager(be, key, ix, 2)

	added, err := m.Add(ctx, blobID(1), pack.DataBlob, []byte("data blob"))
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("expected data blob to be added")
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	dataIDs, err := be.List(ctx, backend.PackFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(dataIDs) != 1 {
		t.Fatalf("expected exactly one pack uploaded for the data packer, got %d", len(dataIDs))
	}
}

func TestManagerShutdownIsIdempotentOnNoTraffic(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	ix := index.New()
	key := crypto.NewRandomKey()
	m := packer.NewManager(be, key, ix, 0)

	if err := m.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	ids, err := be.List(ctx, backend.PackFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatal("Shutdown with no traffic must not upload anything")
	}
}

func TestManagerSeparatesDataAndTreePackers(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	ix := index.New()
	key := crypto.NewRandomKey()
	m := packer.NewManager(be, key, ix, 0)

	if _, err := m.Add(ctx, blobID(1), pack.DataBlob, []byte("data")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Add(ctx, blobID(2), pack.TreeBlob, []byte("tree")); err != nil {
		t.Fatal(err)
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	ids, err := be.List(ctx, backend.PackFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected two distinct packs (one per blob type), got %d", len(ids))
	}
}
