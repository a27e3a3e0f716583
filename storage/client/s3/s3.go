// Package s3 provides a storage client for media stored in AWS S3.
package s3

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/imyhxy/fiftyone/storage"
)

const pathPrefix = "s3://"

// Client serves media files addressed as s3://bucket/key.
type Client struct {
	logger log.Logger
	api    *awss3.S3
}

// New creates an S3 storage client.
func New(l log.Logger, c Config) (*Client, error) {
	l = log.With(l, "client", storage.S3)

	awsConf := &aws.Config{
		Region:           aws.String(c.Region),
		Endpoint:         &c.Endpoint,
		DisableSSL:       aws.Bool(strings.HasPrefix(c.Endpoint, "http://")),
		S3ForcePathStyle: aws.Bool(c.PathStyle),
	}

	if c.Key != "" && c.Secret != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(c.Key, c.Secret, "")
	} else {
		level.Warn(l).Log("msg", "aws key and/or secret not provided (falling back to default credentials)")
	}

	level.Debug(l).Log("msg", "s3 client", "config", fmt.Sprintf("%#v", c))

	api := awss3.New(session.Must(session.NewSessionWithOptions(session.Options{})), awsConf)

	return &Client{logger: l, api: api}, nil
}

// Download fetches the object and writes it to localPath.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	bucket, key, err := split(remotePath)
	if err != nil {
		return err
	}

	out, err := c.api.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}
	defer out.Body.Close()

	if err := storage.WriteFile(localPath, out.Body); err != nil {
		return &storage.TransferError{Op: "download", Path: remotePath, Err: err}
	}

	return nil
}

// Upload writes the local file to the given object path.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	bucket, key, err := split(remotePath)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open <%s> %w", localPath, err)
	}
	defer f.Close()

	if _, err := c.api.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
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

	in := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if !recursive {
		in.Delimiter = aws.String("/")
	}

	var paths []string
	err = c.api.ListObjectsV2PagesWithContext(ctx, in,
		func(page *awss3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				paths = append(paths, pathPrefix+bucket+"/"+aws.StringValue(obj.Key))
			}
			return true
		})
	if err != nil {
		return nil, &storage.TransferError{Op: "list", Path: folder, Err: err}
	}

	return paths, nil
}

// FileMetadata returns the object's checksum (its ETag), size and
// modification time.
func (c *Client) FileMetadata(ctx context.Context, remotePath string) (storage.Metadata, error) {
	bucket, key, err := split(remotePath)
	if err != nil {
		return storage.Metadata{}, err
	}

	out, err := c.api.HeadObjectWithContext(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.Metadata{}, &storage.TransferError{Op: "metadata", Path: remotePath, Err: err}
	}

	md := storage.Metadata{
		Checksum: strings.Trim(aws.StringValue(out.ETag), `"`),
		Size:     aws.Int64Value(out.ContentLength),
	}
	if out.LastModified != nil {
		md.LastModified = *out.LastModified
	}

	return md, nil
}

// LocalPath validates the s3:// prefix and returns the bucket-qualified
// remainder verbatim.
func (c *Client) LocalPath(remotePath string) (string, error) {
	if !strings.HasPrefix(remotePath, pathPrefix) {
		return "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + " prefix"}
	}

	return remotePath[len(pathPrefix):], nil
}

// Helpers

func split(remotePath string) (string, string, error) {
	bucket, key, err := splitFolder(remotePath)
	if err != nil {
		return "", "", err
	}

	if key == "" {
		return "", "", &storage.InvalidPathError{Path: remotePath, Reason: "expected " + pathPrefix + "bucket/key"}
	}

	return bucket, key, nil
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
