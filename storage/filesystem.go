// Package storage defines the remote file systems that media files can
// live on and the client operations used to transfer them.
package storage

import "strings"

// FileSystem identifies where a media file lives.
type FileSystem string

const (
	Local FileSystem = "local"
	HTTP  FileSystem = "http"
	S3    FileSystem = "s3"
	GCS   FileSystem = "gcs"
	SFTP  FileSystem = "sftp"
	Azure FileSystem = "azure"
)

// Classify maps a filepath to the file system that hosts it. Paths with an
// unknown prefix are treated as local paths.
func Classify(path string) FileSystem {
	switch {
	case strings.HasPrefix(path, "gs://"):
		return GCS
	case strings.HasPrefix(path, "s3://"):
		return S3
	case strings.HasPrefix(path, "sftp://"):
		return SFTP
	case strings.HasPrefix(path, "az://"):
		return Azure
	case strings.HasPrefix(path, "http"):
		return HTTP
	default:
		return Local
	}
}

// IsLocal reports whether the given filepath is a local path.
func IsLocal(path string) bool {
	return Classify(path) == Local
}
