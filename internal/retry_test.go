package internal

import (
	"errors"
	"testing"
	"time"
)

func TestIsTransientSQLiteErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "busy", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: true},
		{name: "table locked", err: errors.New("database table is locked"), want: true},
		{name: "constraint", err: errors.New("UNIQUE constraint failed: messages.id"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientSQLiteErr(tt.err); got != tt.want {
				t.Errorf("isTransientSQLiteErr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryOp(t *testing.T) {
	cfg := retryConfig{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: 2 * time.Millisecond}
	busy := errors.New("database is locked")
	fatal := errors.New("no such table: messages")

	tests := []struct {
		name      string
		errs      []error
		wantErr   error
		wantCalls int
	}{
		{name: "first try", errs: []error{nil}, wantCalls: 1},
		{name: "recovers", errs: []error{busy, busy, nil}, wantCalls: 3},
		{name: "gives up", errs: []error{busy, busy, busy, nil}, wantErr: busy, wantCalls: 3},
		{name: "permanent error", errs: []error{fatal, nil}, wantErr: fatal, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryOp(cfg, func() error {
				err := tt.errs[calls]
				calls++
				return err
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("retryOp() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("retryOp() calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := retryConfig{maxRetries: 5, baseDelay: 10 * time.Millisecond, maxDelay: 40 * time.Millisecond}
	for attempt, base := range []time.Duration{10, 20, 40, 40} {
		base *= time.Millisecond
		got := backoffDelay(cfg, attempt)
		if got < base || got >= base+cfg.baseDelay {
			t.Errorf("backoffDelay(%d) = %v, want in [%v, %v)", attempt, got, base, base+cfg.baseDelay)
		}
	}
}
