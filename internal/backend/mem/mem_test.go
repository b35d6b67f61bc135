package mem_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/dedupfs/corepack/internal/backend"
	"github.com/dedupfs/corepack/internal/backend/mem"
	"github.com/dedupfs/corepack/internal/id"
)

func TestWriteReadList(t *testing.T) {
	ctx := context.Background()
	be := mem.New()

	var idA, idB id.ID
	idA[0], idB[0] = 1, 2

	ha := backend.Handle{Type: backend.PackFile, Name: idA}
	hb := backend.Handle{Type: backend.PackFile, Name: idB}

	if err := be.WriteFull(ctx, ha, mem.NewByteReadSeeker([]byte("aaa"))); err != nil {
		t.Fatal(err)
	}
	if err := be.WriteFull(ctx, hb, mem.NewByteReadSeeker([]byte("bbbb"))); err != nil {
		t.Fatal(err)
	}

	got, err := be.ReadFull(ctx, ha)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("aaa")) {
		t.Fatalf("got %q", got)
	}

	ids, err := be.List(ctx, backend.PackFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != idA || ids[1] != idB {
		t.Fatalf("unexpected listing: %v", ids)
	}
}

func TestWriteFullIdempotent(t *testing.T) {
	ctx := context.Background()
	be := mem.New()

	h := backend.Handle{Type: backend.PackFile}
	if err := be.WriteFull(ctx, h, mem.NewByteReadSeeker([]byte("same"))); err != nil {
		t.Fatal(err)
	}
	if err := be.WriteFull(ctx, h, mem.NewByteReadSeeker([]byte("same"))); err != nil {
		t.Fatalf("expected idempotent re-write to succeed, got %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	be := mem.New()
	_, err := be.ReadFull(context.Background(), backend.Handle{Type: backend.PackFile})
	if err != backend.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
