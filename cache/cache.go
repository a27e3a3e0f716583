// Package cache implements a bounded local cache for remote media files.
//
// Remote files are downloaded on demand into a cache directory laid out as
// <root>/<scheme>/<scheme-specific-subpath> and tracked by an access-order
// ledger that evicts the least recently used files once the configured
// budget is reached. The ledger is persisted to a manifest file so the
// cache survives process restarts.
//
// The cache directory, ledger and manifest are process-wide state intended
// for a single writer; concurrent processes sharing one cache directory can
// race on manifest writes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/imyhxy/fiftyone/internal/pool"
	"github.com/imyhxy/fiftyone/storage"
)

const manifestName = "manifest.txt"

// Config carries the media cache settings.
type Config struct {
	// Dir is the cache root directory.
	Dir string

	// SizeBytes is the eviction budget for cached files.
	SizeBytes int64

	// NumWorkers is the default concurrency for batched transfers.
	NumWorkers int
}

// MediaCache makes remote media files transparently available as local
// files within a bounded disk budget. It is constructed explicitly and
// passed to whatever owns it; there is no process-wide instance.
type MediaCache struct {
	logger log.Logger
	config Config

	clients map[storage.FileSystem]storage.Client
	meta    map[storage.FileSystem]storage.MetadataFetcher

	ledger *Ledger
}

// New creates a media cache backed by the given per-scheme storage
// clients. The metadata capability of each client is resolved here, once.
// The manifest is the sole source of truth on startup; if it is missing or
// unreadable the ledger starts empty and the on-disk cache directory is
// deleted.
func New(l log.Logger, config Config, clients map[storage.FileSystem]storage.Client) (*MediaCache, error) {
	l = log.With(l, "component", "media-cache")

	meta := make(map[storage.FileSystem]storage.MetadataFetcher)
	for fs, c := range clients {
		if mf, ok := c.(storage.MetadataFetcher); ok {
			meta[fs] = mf
		}
	}

	mc := &MediaCache{
		logger:  l,
		config:  config,
		clients: clients,
		meta:    meta,
		ledger:  NewLedger(l, config.SizeBytes),
	}

	entries, err := readManifest(mc.ManifestPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			level.Warn(l).Log("msg", "failed to load cache manifest, resetting the cache", "err", err)
		}

		if err := mc.Clear(); err != nil {
			return nil, err
		}

		return mc, nil
	}

	mc.ledger.Merge(entries)

	return mc, nil
}

// Dir returns the cache root directory.
func (mc *MediaCache) Dir() string { return mc.config.Dir }

// ManifestPath returns the location of the cache manifest.
func (mc *MediaCache) ManifestPath() string {
	return filepath.Join(mc.config.Dir, manifestName)
}

// RemotePaths returns the remote paths currently tracked by the cache,
// oldest first.
func (mc *MediaCache) RemotePaths() []string {
	return mc.ledger.RemotePaths()
}

// Stats summarizes the current cache state.
type Stats struct {
	Dir            string
	CacheSize      int64
	CacheSizeStr   string
	CurrentSize    int64
	CurrentSizeStr string
	CurrentCount   int
	LoadFactor     float64
}

// Stats returns stats about the media cache.
func (mc *MediaCache) Stats() Stats {
	var load float64
	if mc.config.SizeBytes > 0 {
		load = float64(mc.ledger.Size()) / float64(mc.config.SizeBytes)
	}

	return Stats{
		Dir:            mc.config.Dir,
		CacheSize:      mc.config.SizeBytes,
		CacheSizeStr:   humanize.Bytes(uint64(mc.config.SizeBytes)),
		CurrentSize:    mc.ledger.Size(),
		CurrentSizeStr: humanize.Bytes(uint64(mc.ledger.Size())),
		CurrentCount:   mc.ledger.Len(),
		LoadFactor:     load,
	}
}

// GetLocalPath returns a local path for the given media file, downloading
// it into the cache when needed. Local paths pass through unchanged. A
// prior failed download is treated as resolved so it is not retried; with
// skipFailures a fresh failure is recorded the same way instead of being
// returned.
func (mc *MediaCache) GetLocalPath(ctx context.Context, fp string, skipFailures bool) (string, error) {
	r, err := mc.resolve(fp)
	if err != nil {
		return "", err
	}

	if r.exists {
		return r.localPath, nil
	}

	c, err := mc.client(r.fs)
	if err != nil {
		return "", err
	}

	res := mc.download(ctx, c, r.fs, fp, r.localPath)
	if err := mc.apply(res, skipFailures); err != nil {
		return "", err
	}

	return r.localPath, nil
}

// GetLocalPaths resolves many media files at once, issuing all misses as
// one batch through the worker pool. The returned slice is ordered like
// the input even though downloads complete in arbitrary order.
func (mc *MediaCache) GetLocalPaths(ctx context.Context, fps []string, skipFailures bool) ([]string, error) {
	locals := make([]string, len(fps))

	type miss struct {
		fp     string
		local  string
		fs     storage.FileSystem
		client storage.Client
	}

	// Collections routinely repeat a filepath across samples; a repeated
	// miss is downloaded once, never raced by two tasks writing the same
	// local file.
	queued := make(map[string]struct{}, len(fps))

	var misses []miss
	for i, fp := range fps {
		r, err := mc.resolve(fp)
		if err != nil {
			return nil, err
		}

		locals[i] = r.localPath

		if r.exists {
			continue
		}

		if _, ok := queued[fp]; ok {
			continue
		}
		queued[fp] = struct{}{}

		c, err := mc.client(r.fs)
		if err != nil {
			return nil, err
		}

		misses = append(misses, miss{fp: fp, local: r.localPath, fs: r.fs, client: c})
	}

	if len(misses) == 0 {
		return locals, nil
	}

	results := make([]downloadResult, len(misses))
	tasks := make([]func(), len(misses))
	for i, m := range misses {
		i, m := i, m
		tasks[i] = func() {
			results[i] = mc.download(ctx, m.client, m.fs, m.fp, m.local)
		}
	}

	pool.Run(mc.logger, "downloading media files", mc.config.NumWorkers, tasks)

	var firstErr error
	for _, res := range results {
		if err := mc.apply(res, skipFailures); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return locals, nil
}

// Update re-downloads cached files whose remote checksum no longer matches
// and purges entries whose remote source has disappeared. With a nil paths
// slice the entire ledger is checked. Untracked remote paths passed in are
// downloaded.
func (mc *MediaCache) Update(ctx context.Context, fps []string, skipFailures bool) error {
	if fps == nil {
		fps = mc.ledger.RemotePaths()
	}

	type check struct {
		fp     string
		fs     storage.FileSystem
		client storage.Client
	}

	// Duplicate paths get one checksum fetch and at most one re-download.
	seen := make(map[string]struct{}, len(fps))

	var checks []check
	for _, fp := range fps {
		fs := storage.Classify(fp)
		if fs == storage.Local {
			continue
		}

		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}

		c, err := mc.client(fs)
		if err != nil {
			return err
		}

		checks = append(checks, check{fp: fp, fs: fs, client: c})
	}

	if len(checks) == 0 {
		return nil
	}

	sums := make([]checksumResult, len(checks))
	tasks := make([]func(), len(checks))
	for i, ch := range checks {
		i, ch := i, ch
		tasks[i] = func() {
			sums[i] = mc.checksum(ctx, ch.fs, ch.fp)
		}
	}

	pool.Run(mc.logger, "fetching media checksums", mc.config.NumWorkers, tasks)

	type job struct {
		fp     string
		local  string
		fs     storage.FileSystem
		client storage.Client
	}

	var jobs []job
	for i, ch := range checks {
		sum := sums[i]

		// Untracked paths behave like entries with an unknown checksum
		// from a previously successful download.
		succeeded := true
		cachedKnown := false

		var cached, local string
		if e := mc.ledger.Touch(ch.fp); e != nil {
			succeeded = e.Succeeded
			cached, cachedKnown = e.Checksum, true
			local = e.LocalPath
		} else {
			r, err := mc.resolve(ch.fp)
			if err != nil {
				return err
			}
			local = r.localPath
		}

		switch {
		case succeeded && !sum.ok:
			// Previously downloadable but the checksum is now gone:
			// assume the remote file was deleted.
			mc.ledger.Remove(ch.fp)
		case !cachedKnown || cached != sum.sum || sum.sum == "" || !sum.ok:
			// The checksum changed, the previous download failed, or
			// the remote source does not support checksums. All of
			// these force a re-download.
			jobs = append(jobs, job{fp: ch.fp, local: local, fs: ch.fs, client: ch.client})
		}
	}

	if len(jobs) == 0 {
		return nil
	}

	results := make([]downloadResult, len(jobs))
	dtasks := make([]func(), len(jobs))
	for i, j := range jobs {
		i, j := i, j
		dtasks[i] = func() {
			results[i] = mc.download(ctx, j.client, j.fs, j.fp, j.local)
		}
	}

	pool.Run(mc.logger, "downloading media files", mc.config.NumWorkers, dtasks)

	var firstErr error
	for _, res := range results {
		if err := mc.apply(res, skipFailures); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Clear deletes the entire cache directory and resets the ledger.
func (mc *MediaCache) Clear() error {
	if err := os.RemoveAll(mc.config.Dir); err != nil {
		return fmt.Errorf("delete cache directory <%s> %w", mc.config.Dir, err)
	}

	mc.ledger = NewLedger(mc.logger, mc.config.SizeBytes)

	return nil
}

// Save writes the current ledger to the cache manifest.
func (mc *MediaCache) Save() error {
	return writeManifest(mc.ManifestPath(), mc.ledger.Entries())
}

// Sync merges the on-disk manifest into the in-memory ledger without
// clobbering fresher in-memory entries, tolerating a missing or corrupt
// manifest, and optionally persists the merged result.
func (mc *MediaCache) Sync(save bool) error {
	entries, err := readManifest(mc.ManifestPath())
	if err != nil {
		level.Debug(mc.logger).Log("msg", "no cache manifest to merge", "err", err)
	} else {
		mc.ledger.Merge(entries)
	}

	if save {
		return mc.Save()
	}

	return nil
}

// Helpers

// resolution reports where a filepath resolves to and whether a download
// is still needed.
type resolution struct {
	localPath string
	exists    bool
	fs        storage.FileSystem
}

func (mc *MediaCache) resolve(fp string) (resolution, error) {
	fs := storage.Classify(fp)
	if fs == storage.Local {
		return resolution{localPath: fp, exists: true, fs: fs}, nil
	}

	if e := mc.ledger.Touch(fp); e != nil {
		exists := true
		if e.Succeeded {
			exists = fileExists(e.LocalPath)
		}

		// A recorded failure reports the file as existing so the
		// download is not retried.
		return resolution{localPath: e.LocalPath, exists: exists, fs: fs}, nil
	}

	c, err := mc.client(fs)
	if err != nil {
		return resolution{}, err
	}

	rel, err := c.LocalPath(fp)
	if err != nil {
		return resolution{}, err
	}

	return resolution{localPath: filepath.Join(mc.config.Dir, string(fs), rel), fs: fs}, nil
}

func (mc *MediaCache) client(fs storage.FileSystem) (storage.Client, error) {
	c, ok := mc.clients[fs]
	if !ok {
		return nil, fmt.Errorf("no storage client configured for file system <%s>", fs)
	}

	return c, nil
}

// downloadResult is what a transfer task hands back to the orchestrating
// goroutine, which alone applies it to the ledger.
type downloadResult struct {
	remotePath string
	localPath  string
	checksum   string
	err        error
}

// download fetches the remote file and, when the scheme supports metadata,
// records its current checksum. A failed checksum fetch is recorded as
// unknown, never raised.
func (mc *MediaCache) download(ctx context.Context, c storage.Client, fs storage.FileSystem, remotePath, localPath string) downloadResult {
	res := downloadResult{remotePath: remotePath, localPath: localPath}

	if err := c.Download(ctx, remotePath, localPath); err != nil {
		res.err = err
		return res
	}

	if mf, ok := mc.meta[fs]; ok {
		if md, err := mf.FileMetadata(ctx, remotePath); err == nil {
			res.checksum = md.Checksum
		}
	}

	return res
}

// apply records a finished download attempt in the ledger. On failure with
// skipFailures the attempt is recorded as failed so later lookups do not
// retry; without skipFailures the error is returned and nothing is
// recorded.
func (mc *MediaCache) apply(res downloadResult, skipFailures bool) error {
	if res.err != nil {
		if !skipFailures {
			return res.err
		}

		level.Warn(mc.logger).Log("msg", "download failed", "path", res.remotePath, "err", res.err)
	}

	mc.ledger.Insert(res.remotePath, res.localPath, res.err == nil, res.checksum)

	return nil
}

// checksumResult carries a fetched remote checksum. ok is false when the
// checksum could not be obtained; an empty sum with ok set means the
// remote source does not support checksums.
type checksumResult struct {
	sum string
	ok  bool
}

func (mc *MediaCache) checksum(ctx context.Context, fs storage.FileSystem, remotePath string) checksumResult {
	mf, ok := mc.meta[fs]
	if !ok {
		return checksumResult{sum: "", ok: true}
	}

	md, err := mf.FileMetadata(ctx, remotePath)
	if err != nil {
		return checksumResult{}
	}

	return checksumResult{sum: md.Checksum, ok: true}
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
