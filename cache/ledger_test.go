package cache

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/imyhxy/fiftyone/test"
)

func sumSizes(l *Ledger) int64 {
	var total int64
	for _, e := range l.Entries() {
		total += e.SizeBytes
	}

	return total
}

func TestLedgerSizeInvariant(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLedger(log.NewNopLogger(), 1000)

	for i, name := range []string{"a", "b", "c", "d"} {
		local := test.SizedFile(t, dir, name, 100*(i+1))
		l.Insert("s3://bucket/"+name, local, true, "")
		test.Equals(t, sumSizes(l), l.Size())
	}

	l.Remove("s3://bucket/b")
	test.Equals(t, sumSizes(l), l.Size())

	l.EvictOldest()
	test.Equals(t, sumSizes(l), l.Size())

	test.Assert(t, l.Size() >= 0, "ledger size went negative: %d", l.Size())
}

func TestLedgerEviction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLedger(log.NewNopLogger(), 100)

	first := test.SizedFile(t, dir, "a", 40)
	l.Insert("s3://bucket/a", first, true, "")
	l.Insert("s3://bucket/b", test.SizedFile(t, dir, "b", 40), true, "")
	test.Equals(t, int64(80), l.Size())

	l.Insert("s3://bucket/c", test.SizedFile(t, dir, "c", 40), true, "")

	test.Equals(t, int64(80), l.Size())
	test.Equals(t, 2, l.Len())
	test.Assert(t, l.Touch("s3://bucket/a") == nil, "oldest entry should have been evicted")
	test.NotExists(t, first)
}

func TestLedgerRecency(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLedger(log.NewNopLogger(), 100)

	l.Insert("s3://bucket/a", test.SizedFile(t, dir, "a", 40), true, "")
	l.Insert("s3://bucket/b", test.SizedFile(t, dir, "b", 40), true, "")

	// Touching the oldest entry re-stamps it, so the next eviction
	// removes b instead.
	test.Assert(t, l.Touch("s3://bucket/a") != nil, "expected a tracked entry")

	l.Insert("s3://bucket/c", test.SizedFile(t, dir, "c", 40), true, "")

	test.Assert(t, l.Touch("s3://bucket/a") != nil, "recently touched entry was evicted")
	test.Assert(t, l.Touch("s3://bucket/b") == nil, "least recently touched entry survived eviction")
	test.Assert(t, l.Touch("s3://bucket/c") != nil, "newest entry was evicted")
}

func TestLedgerOversizedEntryAdmitted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLedger(log.NewNopLogger(), 100)

	l.Insert("s3://bucket/a", test.SizedFile(t, dir, "a", 40), true, "")
	l.Insert("s3://bucket/big", test.SizedFile(t, dir, "big", 500), true, "")

	// A single file larger than the whole budget empties the ledger and
	// is still admitted.
	test.Equals(t, 1, l.Len())
	test.Equals(t, int64(500), l.Size())
}

func TestLedgerReplaceRetiresOldSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLedger(log.NewNopLogger(), 1000)

	local := test.SizedFile(t, dir, "a", 40)
	l.Insert("s3://bucket/a", local, true, "abc")

	test.WriteFile(t, local, make([]byte, 60))
	l.Insert("s3://bucket/a", local, true, "xyz")

	test.Equals(t, 1, l.Len())
	test.Equals(t, int64(60), l.Size())
	test.Equals(t, "xyz", l.Touch("s3://bucket/a").Checksum)
}

func TestLedgerRemoveDeletesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLedger(log.NewNopLogger(), 1000)

	local := test.SizedFile(t, dir, "a", 40)
	l.Insert("s3://bucket/a", local, true, "")

	l.Remove("s3://bucket/a")

	test.Equals(t, 0, l.Len())
	test.Equals(t, int64(0), l.Size())
	test.NotExists(t, local)

	// Removing an untracked path is a no-op.
	l.Remove("s3://bucket/a")
	test.Equals(t, int64(0), l.Size())
}

func TestLedgerFailedEntryCountsZeroBytes(t *testing.T) {
	t.Parallel()

	l := NewLedger(log.NewNopLogger(), 1000)

	e := l.Insert("s3://bucket/missing", filepath.Join(t.TempDir(), "missing"), false, "")

	test.Equals(t, int64(0), e.SizeBytes)
	test.Equals(t, int64(0), l.Size())
	test.Assert(t, !e.Succeeded, "entry should record the failed attempt")
}

func TestLedgerMergeKeepsInMemoryEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLedger(log.NewNopLogger(), 1000)

	l.Insert("s3://bucket/a", test.SizedFile(t, dir, "a", 40), true, "fresh")

	l.Merge([]*Entry{
		{RemotePath: "s3://bucket/a", LocalPath: "stale", Succeeded: true, Checksum: "stale", SizeBytes: 10},
		{RemotePath: "s3://bucket/b", LocalPath: "loaded", Succeeded: true, Checksum: "", SizeBytes: 20},
	})

	test.Equals(t, 2, l.Len())
	test.Equals(t, int64(60), l.Size())
	test.Equals(t, "fresh", l.Touch("s3://bucket/a").Checksum)
}

func TestLedgerEvictOldestOnEmpty(t *testing.T) {
	t.Parallel()

	l := NewLedger(log.NewNopLogger(), 100)
	test.Assert(t, !l.EvictOldest(), "eviction on an empty ledger should report false")
}

func TestLedgerRemoveLogsUndeletableFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLedger(log.NewLogfmtLogger(&buf), 1000)

	// A non-empty directory cannot be removed with os.Remove, standing in
	// for any local file the ledger fails to delete.
	dir := t.TempDir()
	local := filepath.Join(dir, "stuck")
	test.WriteFile(t, filepath.Join(local, "child"), []byte("x"))

	l.Insert("s3://bucket/stuck", local, true, "")
	l.Remove("s3://bucket/stuck")

	test.Equals(t, 0, l.Len())
	test.Exists(t, local)
	test.Assert(t, strings.Contains(buf.String(), "failed to delete cached file"),
		"expected a warning about the undeletable file, got %q", buf.String())
}
