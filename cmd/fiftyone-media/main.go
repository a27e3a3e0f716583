// fiftyone-media maintains a local cache of remote media files.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/urfave/cli/v2"

	"github.com/imyhxy/fiftyone/cache"
	"github.com/imyhxy/fiftyone/storage"
	"github.com/imyhxy/fiftyone/storage/client"
	azureclient "github.com/imyhxy/fiftyone/storage/client/azure"
	gcsclient "github.com/imyhxy/fiftyone/storage/client/gcs"
	s3client "github.com/imyhxy/fiftyone/storage/client/s3"
	sftpclient "github.com/imyhxy/fiftyone/storage/client/sftp"
)

const defaultCacheSize = "32GB"

func main() {
	app := &cli.App{
		Name:  "fiftyone-media",
		Usage: "download, upload and maintain a local cache of remote media files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "cache-dir",
				Usage:   "cache root directory",
				EnvVars: []string{"FIFTYONE_MEDIA_CACHE_DIR"},
				Value:   defaultCacheDir(),
			},
			&cli.StringFlag{
				Name:    "cache-size",
				Usage:   "cache eviction budget, eg. 500MB or 32GB",
				EnvVars: []string{"FIFTYONE_MEDIA_CACHE_SIZE"},
				Value:   defaultCacheSize,
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "number of concurrent transfers",
				EnvVars: []string{"FIFTYONE_MEDIA_WORKERS"},
				Value:   runtime.NumCPU(),
			},
			&cli.BoolFlag{
				Name:    "skip-failures",
				Usage:   "log and skip failed transfers instead of aborting",
				EnvVars: []string{"FIFTYONE_MEDIA_SKIP_FAILURES"},
				Value:   true,
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"FIFTYONE_MEDIA_DEBUG"},
			},

			// S3
			&cli.StringFlag{
				Name:    "s3.region",
				Usage:   "aws region",
				EnvVars: []string{"AWS_REGION"},
				Value:   "us-east-1",
			},
			&cli.StringFlag{
				Name:    "s3.endpoint",
				Usage:   "custom s3 endpoint",
				EnvVars: []string{"S3_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "s3.access-key",
				Usage:   "aws access key",
				EnvVars: []string{"AWS_ACCESS_KEY_ID"},
			},
			&cli.StringFlag{
				Name:    "s3.secret-key",
				Usage:   "aws secret key",
				EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
			},
			&cli.BoolFlag{
				Name:    "s3.path-style",
				Usage:   "use path style addressing (minio compatible)",
				EnvVars: []string{"S3_PATH_STYLE"},
			},

			// GCS
			&cli.StringFlag{
				Name:    "gcs.api-key",
				Usage:   "google cloud api key",
				EnvVars: []string{"GCS_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "gcs.credentials-file",
				Usage:   "google cloud service account credentials file",
				EnvVars: []string{"GOOGLE_APPLICATION_CREDENTIALS"},
			},
			&cli.StringFlag{
				Name:    "gcs.endpoint",
				Usage:   "custom gcs endpoint",
				EnvVars: []string{"GCS_ENDPOINT"},
			},

			// SFTP
			&cli.StringFlag{
				Name:    "sftp.host",
				Usage:   "sftp host",
				EnvVars: []string{"SFTP_HOST"},
			},
			&cli.StringFlag{
				Name:    "sftp.port",
				Usage:   "sftp port",
				EnvVars: []string{"SFTP_PORT"},
				Value:   "22",
			},
			&cli.StringFlag{
				Name:    "sftp.username",
				Usage:   "sftp username",
				EnvVars: []string{"SFTP_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "sftp.auth-method",
				Usage:   "sftp auth method, PASSWORD or PUBLIC_KEY_FILE",
				EnvVars: []string{"SFTP_AUTH_METHOD"},
			},
			&cli.StringFlag{
				Name:    "sftp.password",
				Usage:   "sftp password",
				EnvVars: []string{"SFTP_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "sftp.public-key-file",
				Usage:   "sftp public key file path",
				EnvVars: []string{"SFTP_PUBLIC_KEY_FILE"},
			},

			// Azure
			&cli.StringFlag{
				Name:    "azure.account-name",
				Usage:   "azure storage account name",
				EnvVars: []string{"AZURE_ACCOUNT_NAME"},
			},
			&cli.StringFlag{
				Name:    "azure.account-key",
				Usage:   "azure storage account key",
				EnvVars: []string{"AZURE_ACCOUNT_KEY"},
			},
			&cli.StringFlag{
				Name:    "azure.blob-url",
				Usage:   "azure blob storage url template",
				EnvVars: []string{"AZURE_BLOB_STORAGE_URL"},
			},
			&cli.BoolFlag{
				Name:    "azure.azurite",
				Usage:   "target a local azurite emulator",
				EnvVars: []string{"AZURE_AZURITE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "download",
				Usage:     "download the given media files into the cache",
				ArgsUsage: "<remote path>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "update",
						Usage: "re-download files whose remote checksum changed",
					},
					&cli.StringFlag{
						Name:  "list",
						Usage: "file with one media path per line",
					},
				},
				Action: downloadAction,
			},
			{
				Name:      "upload",
				Usage:     "upload the given local media files to a remote folder",
				ArgsUsage: "<local path>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dest",
						Usage:    "destination remote folder",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "list",
						Usage: "file with one media path per line",
					},
					&cli.StringFlag{
						Name:  "rel-dir",
						Usage: "local directory to relativize filepaths against",
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "overwrite existing remote files",
						Value: true,
					},
				},
				Action: uploadAction,
			},
			{
				Name:   "update",
				Usage:  "refresh every cached file against its remote checksum",
				Action: updateAction,
			},
			{
				Name:   "clear",
				Usage:  "delete the cache directory and its manifest",
				Action: clearAction,
			},
			{
				Name:   "stats",
				Usage:  "print cache statistics",
				Action: statsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func downloadAction(c *cli.Context) error {
	fps, err := mediaPaths(c)
	if err != nil {
		return err
	}

	logger := newLogger(c.Bool("debug"))

	mc, err := newCache(logger, c, fps)
	if err != nil {
		return err
	}

	err = cache.DownloadMedia(context.Background(), mc, pathList(fps), c.Bool("update"), c.Bool("skip-failures"))
	if err != nil {
		return err
	}

	return mc.Save()
}

func uploadAction(c *cli.Context) error {
	fps, err := mediaPaths(c)
	if err != nil {
		return err
	}

	logger := newLogger(c.Bool("debug"))

	dest := c.String("dest")
	cl, err := client.ForFileSystem(logger, storage.Classify(dest), clientConfigs(c)...)
	if err != nil {
		return err
	}

	opts := []cache.UploadOption{
		cache.WithOverwrite(c.Bool("overwrite")),
		cache.WithSkipFailures(c.Bool("skip-failures")),
		cache.WithNumWorkers(c.Int("workers")),
	}
	if dir := c.String("rel-dir"); dir != "" {
		opts = append(opts, cache.WithRelDir(dir))
	}

	return cache.UploadMedia(context.Background(), logger, cl, pathList(fps), dest, opts...)
}

func updateAction(c *cli.Context) error {
	logger := newLogger(c.Bool("debug"))

	// The tracked remote paths determine which clients are needed, so the
	// manifest is loaded once up front without any.
	probe, err := newCache(logger, c, nil)
	if err != nil {
		return err
	}

	mc, err := newCache(logger, c, probe.RemotePaths())
	if err != nil {
		return err
	}

	if err := mc.Update(context.Background(), nil, c.Bool("skip-failures")); err != nil {
		return err
	}

	return mc.Save()
}

func clearAction(c *cli.Context) error {
	logger := newLogger(c.Bool("debug"))

	mc, err := newCache(logger, c, nil)
	if err != nil {
		return err
	}

	return mc.Clear()
}

func statsAction(c *cli.Context) error {
	logger := newLogger(c.Bool("debug"))

	mc, err := newCache(logger, c, nil)
	if err != nil {
		return err
	}

	s := mc.Stats()
	fmt.Printf("Cache dir:    %s\n", s.Dir)
	fmt.Printf("Cache size:   %s\n", s.CacheSizeStr)
	fmt.Printf("Current size: %s\n", s.CurrentSizeStr)
	fmt.Printf("Files cached: %d\n", s.CurrentCount)
	fmt.Printf("Load factor:  %.2f\n", s.LoadFactor)

	return nil
}

// Helpers

// pathList adapts a plain list of filepaths to the sample collection
// interface.
type pathList []string

func (p pathList) Values(field string) []string { return p }

// mediaPaths collects the media paths from the positional args and the
// optional newline-delimited list file.
func mediaPaths(c *cli.Context) ([]string, error) {
	fps := c.Args().Slice()

	if list := c.String("list"); list != "" {
		b, err := os.ReadFile(list)
		if err != nil {
			return nil, fmt.Errorf("read media list <%s> %w", list, err)
		}

		for _, line := range strings.Split(string(b), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				fps = append(fps, line)
			}
		}
	}

	if len(fps) == 0 {
		return nil, fmt.Errorf("no media paths given")
	}

	return fps, nil
}

func newLogger(debug bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

	logLevel := level.AllowInfo()
	if debug {
		logLevel = level.AllowDebug()
	}

	logger = level.NewFilter(logger, logLevel)

	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

// newCache builds a media cache with a storage client for every remote
// scheme present in the given filepaths.
func newCache(l log.Logger, c *cli.Context, fps []string) (*cache.MediaCache, error) {
	size, err := humanize.ParseBytes(c.String("cache-size"))
	if err != nil {
		return nil, fmt.Errorf("invalid cache size <%s> %w", c.String("cache-size"), err)
	}

	cfgs := clientConfigs(c)

	clients := make(map[storage.FileSystem]storage.Client)
	for _, fp := range fps {
		fs := storage.Classify(fp)
		if fs == storage.Local {
			continue
		}

		if _, ok := clients[fs]; ok {
			continue
		}

		cl, err := client.ForFileSystem(l, fs, cfgs...)
		if err != nil {
			return nil, err
		}

		clients[fs] = cl
	}

	return cache.New(l, cache.Config{
		Dir:        c.String("cache-dir"),
		SizeBytes:  int64(size),
		NumWorkers: c.Int("workers"),
	}, clients)
}

func clientConfigs(c *cli.Context) []client.Config {
	return []client.Config{
		client.WithS3(s3client.Config{
			Region:    c.String("s3.region"),
			Endpoint:  c.String("s3.endpoint"),
			Key:       c.String("s3.access-key"),
			Secret:    c.String("s3.secret-key"),
			PathStyle: c.Bool("s3.path-style"),
		}),
		client.WithGCS(gcsclient.Config{
			APIKey:          c.String("gcs.api-key"),
			CredentialsFile: c.String("gcs.credentials-file"),
			Endpoint:        c.String("gcs.endpoint"),
		}),
		client.WithSFTP(sftpclient.Config{
			Host:     c.String("sftp.host"),
			Port:     c.String("sftp.port"),
			Username: c.String("sftp.username"),
			Auth: sftpclient.SSHAuth{
				Method:        sftpclient.SSHAuthMethod(c.String("sftp.auth-method")),
				Password:      c.String("sftp.password"),
				PublicKeyFile: c.String("sftp.public-key-file"),
			},
		}),
		client.WithAzure(azureclient.Config{
			AccountName:      c.String("azure.account-name"),
			AccountKey:       c.String("azure.account-key"),
			BlobStorageURL:   c.String("azure.blob-url"),
			Azurite:          c.Bool("azure.azurite"),
			MaxRetryRequests: azureclient.DefaultBlobMaxRetryRequests,
		}),
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "fiftyone", "media")
	}

	return filepath.Join(home, ".fiftyone", "media")
}
