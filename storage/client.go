package storage

import (
	"context"
	"time"
)

// Client implements transfer operations for a single remote file system.
type Client interface {
	// Download fetches the remote file and writes it to localPath,
	// creating parent directories as needed.
	Download(ctx context.Context, remotePath, localPath string) error

	// Upload writes the local file to the given remote path.
	Upload(ctx context.Context, localPath, remotePath string) error

	// ListFolder returns the remote paths beneath the given folder.
	ListFolder(ctx context.Context, folder string, recursive bool) ([]string, error)

	// LocalPath derives the cache-relative path for the remote file. The
	// remote folder structure is preserved so that differently-pathed
	// files with the same basename cannot collide under the cache root.
	LocalPath(remotePath string) (string, error)
}

// Metadata describes a remote file.
type Metadata struct {
	Checksum     string
	Size         int64
	LastModified time.Time
}

// MetadataFetcher is implemented by clients whose backing store exposes
// file checksums. The capability is decided once at client construction,
// not probed per call.
type MetadataFetcher interface {
	FileMetadata(ctx context.Context, remotePath string) (Metadata, error)
}
