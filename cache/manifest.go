package cache

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ManifestError indicates a cache manifest that is missing, unreadable or
// malformed. It is always recovered locally by starting from an empty
// cache; it is never surfaced to callers of the media cache.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("cache manifest <%s> %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

const manifestFields = 5

// readManifest loads cached entries from the manifest, oldest first. Each
// line carries remote path, local path, success flag, checksum and size;
// fields containing the delimiter are quoted by the csv encoding.
func readManifest(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = manifestFields

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}

	entries := make([]*Entry, 0, len(records))
	for _, rec := range records {
		succeeded, err := strconv.ParseBool(rec[2])
		if err != nil {
			return nil, &ManifestError{Path: path, Err: fmt.Errorf("bad success flag <%s>", rec[2])}
		}

		size, err := strconv.ParseInt(rec[4], 10, 64)
		if err != nil {
			return nil, &ManifestError{Path: path, Err: fmt.Errorf("bad size <%s>", rec[4])}
		}

		if size < 0 {
			return nil, &ManifestError{Path: path, Err: fmt.Errorf("negative size %d", size)}
		}

		entries = append(entries, &Entry{
			RemotePath: rec[0],
			LocalPath:  rec[1],
			Succeeded:  succeeded,
			Checksum:   rec[3],
			SizeBytes:  size,
		})
	}

	return entries, nil
}

// writeManifest persists the given entries, one line per entry, oldest
// first.
func writeManifest(path string, entries []*Entry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create manifest directory <%s> %w", dir, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest <%s> %w", path, err)
	}

	w := csv.NewWriter(f)
	for _, e := range entries {
		rec := []string{
			e.RemotePath,
			e.LocalPath,
			strconv.FormatBool(e.Succeeded),
			e.Checksum,
			strconv.FormatInt(e.SizeBytes, 10),
		}

		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("write manifest entry %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush manifest %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest <%s> %w", path, err)
	}

	return nil
}
