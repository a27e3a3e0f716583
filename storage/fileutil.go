package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const defaultFileMode = 0755

// WriteFile streams the contents of r to the given local path, creating
// parent directories as needed.
func WriteFile(localPath string, r io.Reader) error {
	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, os.FileMode(defaultFileMode)); err != nil {
		return fmt.Errorf("create directory <%s> %w", dir, err)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file <%s> %w", localPath, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return fmt.Errorf("write contents of reader to a file %w", err)
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("close file <%s> %w", localPath, err)
	}

	return nil
}
