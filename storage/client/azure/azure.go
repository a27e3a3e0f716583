// Package azure provides a storage client for media stored in Azure Blob
// Storage.
package azure

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/imyhxy/fiftyone/storage"
)

const pathPrefix = "az://"

// DefaultBlobMaxRetryRequests bounds the retries performed by the azblob
// retry reader while downloading.
const DefaultBlobMaxRetryRequests = 4

// Client serves media files addressed as az://container/blob.
type Client struct {
	logger     log.Logger
	cfg        Config
	serviceURL azblob.ServiceURL
}

// New creates an Azure Blob Storage client.
func New(l log.Logger, c Config) (*Client, error) {
	l = log.With(l, "client", storage.Azure)

	if c.AccountName == "" || c.AccountKey == "" {
		return nil, fmt.Errorf("azure account name and account key must be set")
	}

	credential, err := azblob.NewSharedKeyCredential(c.AccountName, c.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure, invalid credentials %w", err)
	}

	blobStorageURL := c.BlobStorageURL
	if blobStorageURL == "" {
		blobStorageURL = "blob.core.windows.net"
	}

	var accountURL *url.URL
	if c.Azurite {
		accountURL, err = url.Parse(fmt.Sprintf("http://%s/%s", blobStorageURL, c.AccountName))
	} else {
		accountURL, err = url.Parse(fmt.Sprintf("https://%s.%s", c.AccountName, blobStorageURL))
	}

	if err != nil {
		return nil, fmt.Errorf("azure, invalid service url %w", err)
	}

	if c.MaxRetryRequests == 0 {
		c.MaxRetryRequests = DefaultBlobMaxRetryRequests
	}

	level.Debug(l).Log("msg", "azure blob client", "url", accountURL.String())

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	return &Client{logger: l, cfg: c, serviceURL: azblob.NewServiceURL(*accountURL, pipeline)}, nil
}

// Download fetches the blob and writes it to localPath.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	blobURL, err := c.blobURL(remotePath)
	if err != nil {
		return err
	}

	resp, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false)
	if err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}

	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: c.cfg.MaxRetryRequests})
	defer body.Close()

	if err := storage.WriteFile(localPath, body); err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}

	return nil
}

// Upload writes the local file to the given blob path.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	blobURL, err := c.blobURL(remotePath)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open <%s> %w", localPath, err)
	}
	defer f.Close()

	if _, err := azblob.UploadFileToBlockBlob(ctx, f, blobURL, azblob.UploadToBlockBlobOptions{}); err != nil {
		return &storage.TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	return nil
}

// ListFolder returns the blob paths beneath the given folder.
func (c *Client) ListFolder(ctx context.Context, folder string, recursive bool) ([]string, error) {
	container, prefix, err := splitFolder(folder)
	if err != nil {
		return nil, err
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	containerURL := c.serviceURL.NewContainerURL(container)
	opts := azblob.ListBlobsSegmentOptions{Prefix: prefix}

	var paths []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		if recursive {
			resp, err := containerURL.ListBlobsFlatSegment(ctx, marker, opts)
			if err != nil {
				return nil, &storage.TransferError{Op: "list", Path: folder, Err: err}
			}

			for _, item := range resp.Segment.BlobItems {
				paths = append(paths, pathPrefix+container+"/"+item.Name)
			}
			marker = resp.NextMarker
		} else {
			resp, err := containerURL.ListBlobsHierarchySegment(ctx, marker, "/", opts)
			if err != nil {
				return nil, &storage.TransferError{Op: "list", Path: folder, Err: err}
			}

			for _, item := range resp.Segment.BlobItems {
				paths = append(paths, pathPrefix+container+"/"+item.Name)
			}
			marker = resp.NextMarker
		}
	}

	return paths, nil
}

// FileMetadata returns the blob's checksum (its Content-MD5), size and
// modification time.
func (c *Client) FileMetadata(ctx context.Context, remotePath string) (storage.Metadata, error) {
	blobURL, err := c.blobURL(remotePath)
	if err != nil {
		return storage.Metadata{}, err
	}

	props, err := blobURL.GetProperties(ctx, azblob.BlobAccessConditions{})
	if err != nil {
		return storage.Metadata{}, &storage.TransferError{Op: "metadata", Path: remotePath, Err: err}
	}

	return storage.Metadata{
		Checksum:     hex.EncodeToString(props.ContentMD5()),
		Size:         props.ContentLength(),
		LastModified: props.LastModified(),
	}, nil
}

// LocalPath validates the az:// prefix and returns the container-qualified
// remainder verbatim.
func (c *Client) LocalPath(remotePath string) (string, error) {
	if !strings.HasPrefix(remotePath, pathPrefix) {
		return "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + " prefix"}
	}

	return remotePath[len(pathPrefix):], nil
}

// Helpers

func (c *Client) blobURL(remotePath string) (azblob.BlockBlobURL, error) {
	container, blob, err := splitFolder(remotePath)
	if err != nil {
		return azblob.BlockBlobURL{}, err
	}

	if blob == "" {
		return azblob.BlockBlobURL{}, &storage.InvalidPathError{
			Path:   remotePath,
			Reason: "expected " + pathPrefix + "container/blob",
		}
	}

	return c.serviceURL.NewContainerURL(container).NewBlockBlobURL(blob), nil
}

func splitFolder(remotePath string) (string, string, error) {
	if !strings.HasPrefix(remotePath, pathPrefix) {
		return "", "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + " prefix"}
	}

	rest := remotePath[len(pathPrefix):]
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", &storage.InvalidPathError{Path: remotePath, Reason: "missing container name"}
	}

	if len(parts) == 1 {
		return parts[0], "", nil
	}

	return parts[0], parts[1], nil
}
