package s3

import (
	"errors"
	"testing"

	"github.com/imyhxy/fiftyone/storage"
	"github.com/imyhxy/fiftyone/test"
)

func TestLocalPath(t *testing.T) {
	t.Parallel()

	c := &Client{}

	rel, err := c.LocalPath("s3://bucket/nested/key.png")
	test.Ok(t, err)
	test.Equals(t, "bucket/nested/key.png", rel)

	_, err = c.LocalPath("gs://bucket/key.png")

	var perr *storage.InvalidPathError
	test.Assert(t, errors.As(err, &perr), "want InvalidPathError, got %v", err)
}

func TestSplit(t *testing.T) {
	t.Parallel()

	bucket, key, err := split("s3://bucket/nested/key.png")
	test.Ok(t, err)
	test.Equals(t, "bucket", bucket)
	test.Equals(t, "nested/key.png", key)

	for _, path := range []string{
		"/data/key.png",
		"s3://",
		"s3://bucket",
		"s3://bucket/",
	} {
		_, _, err := split(path)

		var perr *storage.InvalidPathError
		test.Assert(t, errors.As(err, &perr), "path %q: want InvalidPathError, got %v", path, err)
	}
}

func TestSplitFolder(t *testing.T) {
	t.Parallel()

	bucket, prefix, err := splitFolder("s3://bucket")
	test.Ok(t, err)
	test.Equals(t, "bucket", bucket)
	test.Equals(t, "", prefix)

	bucket, prefix, err = splitFolder("s3://bucket/media/")
	test.Ok(t, err)
	test.Equals(t, "bucket", bucket)
	test.Equals(t, "media/", prefix)
}
