package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/imyhxy/fiftyone/internal/pool"
	"github.com/imyhxy/fiftyone/storage"
)

// SampleCollection provides the media filepaths of a dataset view.
type SampleCollection interface {
	// Values returns the value of the given field for every sample.
	Values(field string) []string
}

const filepathField = "filepath"

// DownloadMedia downloads the source media files for all samples in the
// collection. Existing files are not re-downloaded unless update is set
// and their checksums no longer match.
func DownloadMedia(ctx context.Context, mc *MediaCache, sc SampleCollection, update, skipFailures bool) error {
	fps := sc.Values(filepathField)

	if update {
		return mc.Update(ctx, fps, skipFailures)
	}

	_, err := mc.GetLocalPaths(ctx, fps, skipFailures)

	return err
}

// UploadOption configures UploadMedia.
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	relDir       string
	overwrite    bool
	numWorkers   int
	skipFailures bool
}

// WithRelDir strips the given directory prefix from each filepath when
// constructing the corresponding remote path, so the remote folder mirrors
// the collection's local structure. By default only the basename is kept.
func WithRelDir(dir string) UploadOption {
	return func(o *uploadOptions) { o.relDir = dir }
}

// WithOverwrite controls whether existing remote files are overwritten
// (the default) or skipped.
func WithOverwrite(overwrite bool) UploadOption {
	return func(o *uploadOptions) { o.overwrite = overwrite }
}

// WithNumWorkers sets the upload concurrency. By default the number of
// CPUs is used.
func WithNumWorkers(n int) UploadOption {
	return func(o *uploadOptions) { o.numWorkers = n }
}

// WithSkipFailures controls whether a failed upload is logged and skipped
// (the default) or ends the operation.
func WithSkipFailures(skip bool) UploadOption {
	return func(o *uploadOptions) { o.skipFailures = skip }
}

// UploadMedia uploads the source media files for the given collection into
// the given remote folder. When overwrite is disabled the destination
// folder is listed once up front and already-present files are skipped.
func UploadMedia(ctx context.Context, l log.Logger, c storage.Client, sc SampleCollection, remoteDir string, opts ...UploadOption) error {
	options := uploadOptions{
		overwrite:    true,
		skipFailures: true,
		numWorkers:   runtime.NumCPU(),
	}
	for _, o := range opts {
		o(&options)
	}

	fs := storage.Classify(remoteDir)
	if fs == storage.Local || fs == storage.HTTP {
		return fmt.Errorf("cannot upload media to <%s>, unsupported file system <%s>", remoteDir, fs)
	}

	fps := sc.Values(filepathField)

	remotePaths := make([]string, len(fps))
	for i, fp := range fps {
		rel := filepath.Base(fp)
		if options.relDir != "" {
			r, err := filepath.Rel(options.relDir, fp)
			if err != nil {
				return fmt.Errorf("relative path for <%s> %w", fp, err)
			}
			rel = r
		}

		remotePaths[i] = joinRemote(remoteDir, rel)
	}

	existing := map[string]struct{}{}
	if !options.overwrite {
		files, err := c.ListFolder(ctx, remoteDir, true)
		if err != nil {
			return err
		}

		for _, f := range files {
			existing[f] = struct{}{}
		}
	}

	type upload struct {
		local  string
		remote string
	}

	var uploads []upload
	for i, fp := range fps {
		if _, ok := existing[remotePaths[i]]; ok {
			continue
		}

		uploads = append(uploads, upload{local: fp, remote: remotePaths[i]})
	}

	errs := make([]error, len(uploads))
	tasks := make([]func(), len(uploads))
	for i, u := range uploads {
		i, u := i, u
		tasks[i] = func() {
			err := c.Upload(ctx, u.local, u.remote)
			if err == nil {
				return
			}

			if options.skipFailures {
				level.Warn(l).Log("msg", "upload failed", "path", u.remote, "err", err)
				return
			}

			errs[i] = err
		}
	}

	pool.Run(l, "uploading media files", options.numWorkers, tasks)

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// joinRemote joins a relative path onto a remote folder without collapsing
// the scheme's double slash.
func joinRemote(remoteDir, rel string) string {
	return strings.TrimSuffix(remoteDir, "/") + "/" + filepath.ToSlash(rel)
}
