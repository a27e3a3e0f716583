package storage

import (
	"testing"

	"github.com/imyhxy/fiftyone/test"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]FileSystem{
		"s3://bucket/key.png":          S3,
		"gs://bucket/key.png":          GCS,
		"sftp://host/data/key.png":     SFTP,
		"az://container/key.png":       Azure,
		"http://example.com/key.png":   HTTP,
		"https://example.com/key.png":  HTTP,
		"/data/key.png":                Local,
		"relative/key.png":             Local,
		"C:\\data\\key.png":            Local,
		"file://data/key.png":          Local,
		"":                             Local,
		"s3:/bucket/missing-slash.png": Local,
	} {
		test.Equals(t, want, Classify(path), "path %q", path)
	}
}

func TestIsLocal(t *testing.T) {
	t.Parallel()

	test.Assert(t, IsLocal("/data/key.png"), "absolute paths are local")
	test.Assert(t, !IsLocal("s3://bucket/key.png"), "bucket paths are not local")
}
