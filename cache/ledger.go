package cache

import (
	"container/list"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Entry records one cached remote file.
type Entry struct {
	RemotePath string
	LocalPath  string

	// Succeeded is false when the last download attempt failed. Failed
	// entries are kept so that repeated lookups do not retry the
	// download.
	Succeeded bool

	// Checksum is the remote checksum recorded at download time. An
	// empty string means the remote source does not support checksums.
	Checksum string

	SizeBytes int64
}

// Ledger is an access-ordered, size-tracked index of cached files. Every
// read of an entry re-stamps it at the newest position, so the least
// recently touched entry is always the first eviction candidate. The
// running byte count is maintained incrementally, never recomputed by a
// full scan.
//
// A Ledger is not safe for concurrent use; the media cache mutates it only
// from the orchestrating goroutine.
type Ledger struct {
	logger log.Logger
	budget int64
	size   int64

	index map[string]*list.Element
	order *list.List // Front() is the oldest entry
}

// NewLedger creates an empty ledger with the given byte budget.
func NewLedger(l log.Logger, budget int64) *Ledger {
	return &Ledger{
		logger: l,
		budget: budget,
		index:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Len returns the number of tracked entries.
func (l *Ledger) Len() int { return l.order.Len() }

// Size returns the total size of tracked files in bytes.
func (l *Ledger) Size() int64 { return l.size }

// Touch refreshes the recency of the entry for the given remote path and
// returns it, or nil if the path is untracked.
func (l *Ledger) Touch(remotePath string) *Entry {
	el, ok := l.index[remotePath]
	if !ok {
		return nil
	}

	l.order.MoveToBack(el)

	return el.Value.(*Entry)
}

// Insert tracks a download attempt for the given remote path. The recorded
// size is taken from the local file at call time; a missing file counts as
// zero bytes. Oldest entries are evicted until the new entry fits the
// budget; a single file larger than the whole budget is still admitted
// once the ledger is empty.
func (l *Ledger) Insert(remotePath, localPath string, succeeded bool, checksum string) *Entry {
	var size int64
	if fi, err := os.Stat(localPath); err == nil {
		size = fi.Size()
	}

	// Replacing an entry retires its old size first so the running sum
	// stays exact. The local file is reused, not deleted.
	if el, ok := l.index[remotePath]; ok {
		l.size -= el.Value.(*Entry).SizeBytes
		l.order.Remove(el)
		delete(l.index, remotePath)
	}

	for l.size+size > l.budget {
		if !l.EvictOldest() {
			break
		}
	}

	e := &Entry{
		RemotePath: remotePath,
		LocalPath:  localPath,
		Succeeded:  succeeded,
		Checksum:   checksum,
		SizeBytes:  size,
	}

	l.index[remotePath] = l.order.PushBack(e)
	l.size += size

	return e
}

// Remove drops the entry for the given remote path and deletes its local
// file. A file that is already gone is not an error.
func (l *Ledger) Remove(remotePath string) {
	el, ok := l.index[remotePath]
	if !ok {
		return
	}

	e := el.Value.(*Entry)
	l.size -= e.SizeBytes
	l.order.Remove(el)
	delete(l.index, remotePath)

	l.deleteFile(e.LocalPath)
}

// EvictOldest removes the least recently touched entry and deletes its
// local file. It reports false when the ledger is already empty.
func (l *Ledger) EvictOldest() bool {
	el := l.order.Front()
	if el == nil {
		return false
	}

	e := el.Value.(*Entry)
	l.size -= e.SizeBytes
	l.order.Remove(el)
	delete(l.index, e.RemotePath)

	l.deleteFile(e.LocalPath)

	return true
}

// Merge adds entries loaded from disk for remote paths that are not
// already tracked, keeping fresher in-memory state intact.
func (l *Ledger) Merge(entries []*Entry) {
	for _, e := range entries {
		if _, ok := l.index[e.RemotePath]; ok {
			continue
		}

		merged := *e
		l.index[merged.RemotePath] = l.order.PushBack(&merged)
		l.size += merged.SizeBytes
	}
}

// Entries returns a snapshot of tracked entries, oldest first.
func (l *Ledger) Entries() []*Entry {
	out := make([]*Entry, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry))
	}

	return out
}

// RemotePaths returns the tracked remote paths, oldest first.
func (l *Ledger) RemotePaths() []string {
	out := make([]string, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry).RemotePath)
	}

	return out
}

// deleteFile removes a cached file, treating an already-missing file as
// deleted. Any other failure strands bytes the size accounting no longer
// covers, so it is logged.
func (l *Ledger) deleteFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		level.Warn(l.logger).Log("msg", "failed to delete cached file", "path", path, "err", err)
	}
}
