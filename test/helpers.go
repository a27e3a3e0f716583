package test

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with the given content, creating parent
// directories as needed.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("unexpectedly failed creating the directory: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("unexpectedly failed writing the file: %v", err)
	}
}

// SizedFile creates a file of the given size in dir and returns its path.
func SizedFile(t testing.TB, dir, name string, size int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteFile(t, path, make([]byte, size))

	return path
}

// ReadFile returns the content of the given file.
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpectedly failed reading the file: %v", err)
	}

	return content
}
