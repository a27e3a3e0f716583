// Package client wires per-scheme storage clients from configuration.
package client

import (
	"fmt"

	"github.com/go-kit/kit/log"

	"github.com/imyhxy/fiftyone/storage"
	azureclient "github.com/imyhxy/fiftyone/storage/client/azure"
	gcsclient "github.com/imyhxy/fiftyone/storage/client/gcs"
	httpclient "github.com/imyhxy/fiftyone/storage/client/http"
	s3client "github.com/imyhxy/fiftyone/storage/client/s3"
	sftpclient "github.com/imyhxy/fiftyone/storage/client/sftp"
)

// Configs aggregates per-scheme client configuration.
type Configs struct {
	S3    s3client.Config
	GCS   gcsclient.Config
	SFTP  sftpclient.Config
	Azure azureclient.Config
}

// Config configures one scheme in a Configs aggregate.
type Config interface {
	Apply(*Configs)
}

type configFunc func(*Configs)

func (f configFunc) Apply(c *Configs) { f(c) }

// WithS3 sets the S3 client configuration.
func WithS3(cfg s3client.Config) Config {
	return configFunc(func(c *Configs) { c.S3 = cfg })
}

// WithGCS sets the Google Cloud Storage client configuration.
func WithGCS(cfg gcsclient.Config) Config {
	return configFunc(func(c *Configs) { c.GCS = cfg })
}

// WithSFTP sets the SFTP client configuration.
func WithSFTP(cfg sftpclient.Config) Config {
	return configFunc(func(c *Configs) { c.SFTP = cfg })
}

// WithAzure sets the Azure Blob Storage client configuration.
func WithAzure(cfg azureclient.Config) Config {
	return configFunc(func(c *Configs) { c.Azure = cfg })
}

// ForFileSystem creates the storage client serving the given remote file
// system using the given configuration.
func ForFileSystem(l log.Logger, fs storage.FileSystem, cfgs ...Config) (storage.Client, error) {
	configs := Configs{}
	for _, c := range cfgs {
		c.Apply(&configs)
	}

	switch fs {
	case storage.HTTP:
		return httpclient.New(l), nil
	case storage.S3:
		return s3client.New(l, configs.S3)
	case storage.GCS:
		return gcsclient.New(l, configs.GCS)
	case storage.SFTP:
		return sftpclient.New(l, configs.SFTP)
	case storage.Azure:
		return azureclient.New(l, configs.Azure)
	default:
		return nil, fmt.Errorf("no storage client for file system <%s>", fs)
	}
}
