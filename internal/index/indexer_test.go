package index_test

import (
	"context"
	"sync"
	"testing"

	"github.com/dedupfs/corepack/internal/backend/mem"
	"github.com/dedupfs/corepack/internal/id"
	"github.com/dedupfs/corepack/internal/index"
	"github.com/dedupfs/corepack/internal/pack"
)

func randomID(b byte) id.ID {
	var out id.ID
	out[0] = b
	return out
}

func TestIndexerAddMakesBlobsVisible(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	ix := index.New()

	blobID := randomID(1)
	ip := pack.NewIndexPack()
	if err := ip.Add(blobID, pack.DataBlob, 0, 50); err != nil {
		t.Fatal(err)
	}
	ip.SetID(randomID(200))

	if ix.Has(blobID) {
		t.Fatal("blob should not be visible before Add")
	}

	if err := ix.Add(ctx, be, ip); err != nil {
		t.Fatal(err)
	}

	if !ix.Has(blobID) {
		t.Fatal("blob should be visible after Add")
	}
}

func TestIndexerAddRejectsEmptyPack(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	ix := index.New()

	if err := ix.Add(ctx, be, pack.NewIndexPack()); err == nil {
		t.Fatal("expected error publishing an empty IndexPack")
	}
}

func TestIndexerConcurrentHasAndAdd(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	ix := index.New()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ip := pack.NewIndexPack()
			blobID := randomID(byte(i % 256))
			if err := ip.Add(blobID, pack.DataBlob, 0, 10); err != nil {
				t.Error(err)
				return
			}
			var packID id.ID
			packID[1] = byte(i % 256)
			packID[2] = byte(i / 256)
			ip.SetID(packID)
			if err := ix.Add(ctx, be, ip); err != nil {
				t.Error(err)
				return
			}
			if !ix.Has(blobID) {
				t.Errorf("blob %d not visible to Has right after its Add", i)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if !ix.Has(randomID(byte(i % 256))) {
			t.Fatalf("blob %d not visible after concurrent Add", i)
		}
	}
}

func TestLoadReconstructsIndexer(t *testing.T) {
	ctx := context.Background()
	be := mem.New()
	ix := index.New()

	blobID := randomID(5)
	ip := pack.NewIndexPack()
	if err := ip.Add(blobID, pack.TreeBlob, 0, 77); err != nil {
		t.Fatal(err)
	}
	ip.SetID(randomID(201))

	if err := ix.Add(ctx, be, ip); err != nil {
		t.Fatal(err)
	}

	reloaded, err := index.Load(ctx, be)
	if err != nil {
		t.Fatal(err)
	}

	if !reloaded.Has(blobID) {
		t.Fatal("reloaded indexer should know about previously published blob")
	}
}
