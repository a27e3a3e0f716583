package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/imyhxy/fiftyone/test"
)

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.txt")

	want := []*Entry{
		{RemotePath: "s3://bucket/a.png", LocalPath: "/cache/s3/bucket/a.png", Succeeded: true, Checksum: "abc", SizeBytes: 40},
		{RemotePath: "https://host/b.png", LocalPath: "/cache/http/b.png", Succeeded: false, Checksum: "", SizeBytes: 0},
		{RemotePath: "gs://bucket/c.png", LocalPath: "/cache/gcs/bucket/c.png", Succeeded: true, Checksum: "", SizeBytes: 123},
	}

	test.Ok(t, writeManifest(path, want))

	got, err := readManifest(path)
	test.Ok(t, err)
	test.Equals(t, want, got)
}

func TestManifestRoundTripWithCommas(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.txt")

	// Paths containing the delimiter survive the round trip.
	want := []*Entry{
		{RemotePath: "s3://bucket/a,b.png", LocalPath: "/cache/s3/bucket/a,b.png", Succeeded: true, Checksum: "abc", SizeBytes: 7},
	}

	test.Ok(t, writeManifest(path, want))

	got, err := readManifest(path)
	test.Ok(t, err)
	test.Equals(t, want, got)
}

func TestManifestMissing(t *testing.T) {
	t.Parallel()

	_, err := readManifest(filepath.Join(t.TempDir(), "manifest.txt"))

	var merr *ManifestError
	test.Assert(t, errors.As(err, &merr), "want ManifestError, got %v", err)
	test.Expected(t, err, os.ErrNotExist)
}

func TestManifestMalformed(t *testing.T) {
	t.Parallel()

	for name, line := range map[string]string{
		"missing fields": "s3://bucket/a.png,/cache/s3/bucket/a.png,true\n",
		"bad flag":       "s3://bucket/a.png,/cache/a.png,yes please,abc,40\n",
		"bad size":       "s3://bucket/a.png,/cache/a.png,true,abc,forty\n",
		"negative size":  "s3://bucket/a.png,/cache/a.png,true,abc,-1\n",
	} {
		path := filepath.Join(t.TempDir(), "manifest.txt")
		test.WriteFile(t, path, []byte(line))

		_, err := readManifest(path)

		var merr *ManifestError
		test.Assert(t, errors.As(err, &merr), "%s: want ManifestError, got %v", name, err)
	}
}
