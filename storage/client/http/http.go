// Package http provides a storage client for media served over HTTP(S).
package http

import (
	"context"
	"errors"
	"fmt"
	gohttp "net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/cavaliercoder/grab"
	"github.com/go-kit/kit/log"

	"github.com/imyhxy/fiftyone/storage"
)

// Client serves media files addressed by http(s) URLs. Web servers expose
// no folder listing and no checksum metadata.
type Client struct {
	logger log.Logger
	grab   *grab.Client
	http   *gohttp.Client
}

// New creates an HTTP storage client.
func New(l log.Logger) *Client {
	return &Client{
		logger: log.With(l, "client", storage.HTTP),
		grab:   grab.NewClient(),
		http:   gohttp.DefaultClient,
	}
}

// Download fetches the URL and writes it to localPath.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory <%s> %w", dir, err)
	}

	req, err := grab.NewRequest(localPath, remotePath)
	if err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}

	resp := c.grab.Do(req.WithContext(ctx))
	if err := resp.Err(); err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}

	if resp.HTTPResponse != nil && resp.HTTPResponse.StatusCode >= 400 {
		return &storage.TransferError{
			Op:   "download",
			Path: remotePath,
			Err:  fmt.Errorf("unexpected status <%s>", resp.HTTPResponse.Status),
		}
	}

	return nil
}

// Upload PUTs the local file to the given URL.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open <%s> %w", localPath, err)
	}
	defer f.Close()

	req, err := gohttp.NewRequestWithContext(ctx, gohttp.MethodPut, remotePath, f)
	if err != nil {
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	if fi, err := f.Stat(); err == nil {
		req.ContentLength = fi.Size()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &storage.TransferError{
			Op:   "upload",
			Path: remotePath,
			Err:  fmt.Errorf("unexpected status <%s>", resp.Status),
		}
	}

	return nil
}

// ListFolder is not supported for plain web servers.
func (c *Client) ListFolder(ctx context.Context, folder string, recursive bool) ([]string, error) {
	return nil, &storage.TransferError{
		Op:   "list",
		Path: folder,
		Err:  errors.New("folder listing is not supported over http"),
	}
}

// LocalPath returns the basename of the URL path.
func (c *Client) LocalPath(remotePath string) (string, error) {
	u, err := url.Parse(remotePath)
	if err != nil {
		return "", &storage.InvalidPathError{Path: remotePath, Reason: err.Error()}
	}

	return path.Base(u.Path), nil
}
