package pack_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dedupfs/corepack/internal/id"
	"github.com/dedupfs/corepack/internal/pack"
	rtest "github.com/dedupfs/corepack/internal/rtest"
)

func randomID(b byte) id.ID {
	var out id.ID
	out[0] = b
	return out
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	entries := []pack.HeaderEntry{
		{Type: pack.DataBlob, Length: 23, ID: randomID(1)},
		{Type: pack.TreeBlob, Length: 456, ID: randomID(2)},
	}

	data := pack.EncodeHeader(entries)
	rtest.Equals(t, pack.CalculateHeaderSize(len(entries)), len(data))

	got, err := pack.DecodeHeader(data)
	rtest.OK(t, err)

	if diff := cmp.Diff(entries, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHeaderRejectsTruncated(t *testing.T) {
	_, err := pack.DecodeHeader(make([]byte, pack.HeaderEntrySize-1))
	rtest.Assert(t, err != nil, "expected error for truncated header")
}

func TestTrailerRoundTrip(t *testing.T) {
	trailer := pack.EncodeTrailer(123456)
	rtest.Equals(t, pack.TrailerSize, len(trailer))

	got, err := pack.DecodeTrailer(trailer)
	rtest.OK(t, err)
	rtest.Equals(t, uint32(123456), got)
}

var blobTypeJSON = []struct {
	t   pack.BlobType
	res string
}{
	{pack.DataBlob, `"data"`},
	{pack.TreeBlob, `"tree"`},
}

func TestBlobTypeJSON(t *testing.T) {
	for _, test := range blobTypeJSON {
		buf, err := json.Marshal(test.t)
		rtest.OK(t, err)
		rtest.Equals(t, test.res, string(buf))

		var v pack.BlobType
		rtest.OK(t, json.Unmarshal([]byte(test.res), &v))
		rtest.Equals(t, test.t, v)
	}
}

func TestIndexPackOffsetConsistency(t *testing.T) {
	ip := pack.NewIndexPack()

	rtest.OK(t, ip.Add(randomID(1), pack.DataBlob, 0, 100))
	rtest.OK(t, ip.Add(randomID(2), pack.DataBlob, 100, 50))

	err := ip.Add(randomID(3), pack.DataBlob, 200, 10)
	rtest.Assert(t, err != nil, "expected offset-consistency error")
}

func TestIndexPackRejectsDuplicateID(t *testing.T) {
	ip := pack.NewIndexPack()
	id1 := randomID(1)

	rtest.OK(t, ip.Add(id1, pack.DataBlob, 0, 100))
	err := ip.Add(id1, pack.DataBlob, 100, 10)
	rtest.Assert(t, err != nil, "expected duplicate-id error")
}

func TestIndexPackSetIDOnce(t *testing.T) {
	ip := pack.NewIndexPack()
	rtest.Assert(t, ip.IsEmpty(), "new IndexPack should be empty")

	rtest.OK(t, ip.Add(randomID(1), pack.DataBlob, 0, 10))
	rtest.Assert(t, !ip.IsEmpty(), "IndexPack with one blob should not be empty")

	packID := randomID(9)
	ip.SetID(packID)
	rtest.Equals(t, packID, ip.ID())
}
