package http

import (
	"context"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/imyhxy/fiftyone/test"
)

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		if r.URL.Path != "/media/key.png" {
			gohttp.NotFound(w, r)
			return
		}

		w.Write([]byte("pixels"))
	}))
	defer srv.Close()

	c := New(log.NewNopLogger())
	local := filepath.Join(t.TempDir(), "nested", "key.png")

	test.Ok(t, c.Download(context.Background(), srv.URL+"/media/key.png", local))
	test.Equals(t, []byte("pixels"), test.ReadFile(t, local))

	err := c.Download(context.Background(), srv.URL+"/missing.png", filepath.Join(t.TempDir(), "missing.png"))
	test.NotOk(t, err)
}

func TestUpload(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		body   []byte
	)

	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		b, _ := io.ReadAll(r.Body)

		mu.Lock()
		method, body = r.Method, b
		mu.Unlock()
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "key.png")
	test.WriteFile(t, local, []byte("pixels"))

	c := New(log.NewNopLogger())
	test.Ok(t, c.Upload(context.Background(), local, srv.URL+"/media/key.png"))

	mu.Lock()
	defer mu.Unlock()
	test.Equals(t, gohttp.MethodPut, method)
	test.Equals(t, []byte("pixels"), body)
}

func TestUploadRejectedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		gohttp.Error(w, "forbidden", gohttp.StatusForbidden)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "key.png")
	test.WriteFile(t, local, []byte("pixels"))

	c := New(log.NewNopLogger())
	test.NotOk(t, c.Upload(context.Background(), local, srv.URL+"/media/key.png"))
}

func TestListFolderUnsupported(t *testing.T) {
	t.Parallel()

	c := New(log.NewNopLogger())

	_, err := c.ListFolder(context.Background(), "https://example.com/media", true)
	test.NotOk(t, err)
}

func TestLocalPath(t *testing.T) {
	t.Parallel()

	c := New(log.NewNopLogger())

	rel, err := c.LocalPath("https://example.com/media/key.png?token=abc")
	test.Ok(t, err)
	test.Equals(t, "key.png", rel)
}
