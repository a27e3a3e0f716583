// Package gcs provides a storage client for media stored in Google Cloud
// Storage.
package gcs

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	gcstorage "cloud.google.com/go/storage"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/imyhxy/fiftyone/storage"
)

const pathPrefix = "gs://"

// Client serves media files addressed as gs://bucket/object.
type Client struct {
	logger log.Logger
	api    *gcstorage.Client
}

// New creates a Google Cloud Storage client.
func New(l log.Logger, c Config) (*Client, error) {
	l = log.With(l, "client", storage.GCS)

	var opts []option.ClientOption
	if c.APIKey != "" {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}

	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}

	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	level.Debug(l).Log("msg", "gc storage client", "config", fmt.Sprintf("%+v", c))

	api, err := gcstorage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client initialization %w", err)
	}

	return &Client{logger: l, api: api}, nil
}

// Download fetches the object and writes it to localPath.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	bucket, object, err := split(remotePath)
	if err != nil {
		return err
	}

	r, err := c.api.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}
	defer r.Close()

	if err := storage.WriteFile(localPath, r); err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}

	return nil
}

// Upload writes the local file to the given object path.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	bucket, object, err := split(remotePath)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open <%s> %w", localPath, err)
	}
	defer f.Close()

	w := c.api.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	if err := w.Close(); err != nil {
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	return nil
}

// ListFolder returns the object paths beneath the given folder.
func (c *Client) ListFolder(ctx context.Context, folder string, recursive bool) ([]string, error) {
	bucket, prefix, err := splitFolder(folder)
	if err != nil {
		return nil, err
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	q := &gcstorage.Query{Prefix: prefix}
	if !recursive {
		q.Delimiter = "/"
	}

	var paths []string
	it := c.api.Bucket(bucket).Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &storage.TransferError{Op: "list", Path: folder, Err: err}
		}

		if attrs.Name != "" {
			paths = append(paths, pathPrefix+bucket+"/"+attrs.Name)
		}
	}

	return paths, nil
}

// FileMetadata returns the object's checksum (its MD5 hash), size and
// modification time.
func (c *Client) FileMetadata(ctx context.Context, remotePath string) (storage.Metadata, error) {
	bucket, object, err := split(remotePath)
	if err != nil {
		return storage.Metadata{}, err
	}

	attrs, err := c.api.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return storage.Metadata{}, &storage.TransferError{Op: "metadata", Path: remotePath, Err: err}
	}

	return storage.Metadata{
		Checksum:     hex.EncodeToString(attrs.MD5),
		Size:         attrs.Size,
		LastModified: attrs.Updated,
	}, nil
}

// LocalPath validates the gs:// prefix and returns the bucket-qualified
// remainder verbatim.
func (c *Client) LocalPath(remotePath string) (string, error) {
	if !strings.HasPrefix(remotePath, pathPrefix) {
		return "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + " prefix"}
	}

	return remotePath[len(pathPrefix):], nil
}

// Helpers

func split(remotePath string) (string, string, error) {
	bucket, object, err := splitFolder(remotePath)
	if err != nil {
		return "", "", err
	}

	if object == "" {
		return "", "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + "bucket/object"}
	}

	return bucket, object, nil
}

func splitFolder(remotePath string) (string, string, error) {
	if !strings.HasPrefix(remotePath, pathPrefix) {
		return "", "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + " prefix"}
	}

	rest := remotePath[len(pathPrefix):]
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", &storage.InvalidPathError{Path: remotePath, Reason: "missing bucket name"}
	}

	if len(parts) == 1 {
		return parts[0], "", nil
	}

	return parts[0], parts[1], nil
}
