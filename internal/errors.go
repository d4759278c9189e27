package internal

import "fmt"

// TransportError represents a failure on the long-poll socket
type TransportError struct {
	Op   string // "dial", "wait", "write", "read"
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError represents a response the long-poll server should not have sent
type ProtocolError struct {
	Stage  string // "framing", "status", "payload"
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("protocol error [%s]: %s", e.Stage, e.Detail)
	}
	return fmt.Sprintf("protocol error [%s] %s: %v", e.Stage, e.Detail, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RemoteCallError represents a failed call to the remote API
type RemoteCallError struct {
	Method string
	Err    error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call error [%s]: %v", e.Method, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// StorageError represents errors accessing the message store or caches
type StorageError struct {
	Path string
	Op   string // "open", "migrate", "read", "write"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
