package azure

import (
	"errors"
	"testing"

	"github.com/imyhxy/fiftyone/storage"
	"github.com/imyhxy/fiftyone/test"
)

func TestLocalPath(t *testing.T) {
	t.Parallel()

	c := &Client{}

	rel, err := c.LocalPath("az://container/nested/blob.png")
	test.Ok(t, err)
	test.Equals(t, "container/nested/blob.png", rel)

	_, err = c.LocalPath("s3://bucket/key.png")

	var perr *storage.InvalidPathError
	test.Assert(t, errors.As(err, &perr), "want InvalidPathError, got %v", err)
}

func TestSplitFolder(t *testing.T) {
	t.Parallel()

	container, blob, err := splitFolder("az://container/nested/blob.png")
	test.Ok(t, err)
	test.Equals(t, "container", container)
	test.Equals(t, "nested/blob.png", blob)

	container, blob, err = splitFolder("az://container")
	test.Ok(t, err)
	test.Equals(t, "container", container)
	test.Equals(t, "", blob)

	for _, path := range []string{"/data/blob.png", "az://"} {
		_, _, err := splitFolder(path)

		var perr *storage.InvalidPathError
		test.Assert(t, errors.As(err, &perr), "path %q: want InvalidPathError, got %v", path, err)
	}
}
