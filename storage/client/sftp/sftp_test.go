package sftp

import (
	"errors"
	"testing"

	"github.com/imyhxy/fiftyone/storage"
	"github.com/imyhxy/fiftyone/test"
)

func TestLocalPath(t *testing.T) {
	t.Parallel()

	c := &Client{}

	rel, err := c.LocalPath("sftp://host/data/key.png")
	test.Ok(t, err)
	test.Equals(t, "host/data/key.png", rel)

	_, err = c.LocalPath("/data/key.png")

	var perr *storage.InvalidPathError
	test.Assert(t, errors.As(err, &perr), "want InvalidPathError, got %v", err)
}

func TestSplit(t *testing.T) {
	t.Parallel()

	p, err := split("sftp://host/data/key.png")
	test.Ok(t, err)
	test.Equals(t, "/data/key.png", p)

	for _, path := range []string{
		"/data/key.png",
		"sftp://",
		"sftp://host",
		"sftp://host/",
	} {
		_, err := split(path)

		var perr *storage.InvalidPathError
		test.Assert(t, errors.As(err, &perr), "path %q: want InvalidPathError, got %v", path, err)
	}
}

func TestHostSegment(t *testing.T) {
	t.Parallel()

	test.Equals(t, "host", hostSegment("sftp://host/data/key.png"))
	test.Equals(t, "host", hostSegment("sftp://host"))
}
