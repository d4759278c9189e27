package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "transport error",
			err:      &TransportError{Op: "dial", Addr: "im.vk.com:80", Err: cause},
			contains: []string{"transport error", "dial", "im.vk.com:80"},
		},
		{
			name:     "protocol error",
			err:      &ProtocolError{Stage: "status", Detail: "unexpected status", Err: cause},
			contains: []string{"protocol error", "[status]", "unexpected status"},
		},
		{
			name:     "remote call error",
			err:      &RemoteCallError{Method: "messages.getLongPollServer", Err: cause},
			contains: []string{"remote call error", "messages.getLongPollServer"},
		},
		{
			name:     "storage error",
			err:      &StorageError{Path: "/test/path", Op: "open", Err: cause},
			contains: []string{"storage error", "/test/path", "open"},
		},
		{
			name:     "export error",
			err:      &ExportError{Format: "jsonl", Path: "/output/file.jsonl", Err: cause},
			contains: []string{"export error", "jsonl", "/output/file.jsonl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, should contain %q", msg, want)
				}
			}
			if !errors.Is(tt.err, cause) {
				t.Errorf("errors.Is(%T, cause) = false, want true", tt.err)
			}
		})
	}
}

func TestProtocolError_WithoutCause(t *testing.T) {
	err := &ProtocolError{Stage: "payload", Detail: "failed payload"}
	if got, want := err.Error(), "protocol error [payload]: failed payload"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Unwrap() != nil {
		t.Errorf("Unwrap() = %v, want nil", err.Unwrap())
	}
}

func TestErrorsAs(t *testing.T) {
	var err error = &RemoteCallError{Method: "friends.get", Err: &StorageError{Path: "x", Op: "read", Err: errors.New("boom")}}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatal("errors.As() should find the wrapped StorageError")
	}
	if storageErr.Path != "x" {
		t.Errorf("StorageError.Path = %q, want %q", storageErr.Path, "x")
	}
}
