// Package test provides shared assertion helpers.
package test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Assert fails the test if the condition is false.
func Assert(tb testing.TB, condition bool, msg string, v ...interface{}) {
	tb.Helper()
	if !condition {
		_, file, line, _ := runtime.Caller(1)
		tb.Fatalf("%s:%d: "+msg+"\n", append([]interface{}{filepath.Base(file), line}, v...)...)
	}
}

// Ok fails the test if an err is not nil.
func Ok(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		tb.Fatalf("%s:%d: unexpected error: %s\n", filepath.Base(file), line, err.Error())
	}
}

// NotOk fails the test if an err is nil.
func NotOk(tb testing.TB, err error) {
	tb.Helper()
	if err == nil {
		_, file, line, _ := runtime.Caller(1)
		tb.Fatalf("%s:%d: expected error, got nothing\n", filepath.Base(file), line)
	}
}

// Expected fails the test unless got matches the want error.
func Expected(tb testing.TB, got, want error) {
	tb.Helper()
	NotOk(tb, got)

	if errors.Is(got, want) {
		return
	}

	_, file, line, _ := runtime.Caller(1)
	tb.Fatalf("%s:%d: got unexpected error: %v\n", filepath.Base(file), line, got.Error())
}

// Exists fails the test if the given path does not exist.
func Exists(tb testing.TB, path string) {
	tb.Helper()
	if _, err := os.Stat(path); err != nil {
		_, file, line, _ := runtime.Caller(1)
		tb.Fatalf("%s:%d: should exist: %s\n", filepath.Base(file), line, err.Error())
	}
}

// NotExists fails the test if the given path still exists.
func NotExists(tb testing.TB, path string) {
	tb.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		_, file, line, _ := runtime.Caller(1)
		tb.Fatalf("%s:%d: should not exist: %s\n", filepath.Base(file), line, path)
	}
}

// Equals fails the test if want is not equal to got.
func Equals(tb testing.TB, want, got interface{}, v ...interface{}) {
	tb.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		_, file, line, _ := runtime.Caller(1)

		var msg string
		if len(v) > 0 {
			msg = fmt.Sprintf(v[0].(string), v[1:]...)
		}

		tb.Fatalf("%s:%d:"+msg+"\n\n\t (-want +got):\n%s", filepath.Base(file), line, diff)
	}
}
