package storage

import "fmt"

// InvalidPathError indicates a path that claims a remote scheme but does
// not satisfy the expected prefix. It is never recovered by skip-failures
// handling.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path <%s>, %s", e.Path, e.Reason)
}

// TransferError wraps any failure during a network download, upload or
// folder listing. There is no retry at the client layer; retry and skip
// policy belongs to the caller.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s <%s> %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
