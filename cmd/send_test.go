package cmd

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSendCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantUID int64
		wantErr string
	}{
		{
			name:    "by user id",
			args:    []string{"send", "20", "privet"},
			wantUID: 20,
		},
		{
			name:    "by first and last name",
			args:    []string{"send", "ivan", "pet", "privet"},
			wantUID: 10,
		},
		{
			name:    "ambiguous name",
			args:    []string{"send", "ivan", "privet"},
			wantErr: "2 friends match",
		},
		{
			name:    "unknown user id",
			args:    []string{"send", "99", "privet"},
			wantErr: "not in the friend list",
		},
		{
			name:    "empty message",
			args:    []string{"send", "20", "  "},
			wantErr: "empty message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCmdEnv(t)
			out, err := env.run(t, 5*time.Second, tt.args...)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("send error = %v, want %q", err, tt.wantErr)
				}
				if len(env.api.Sent) != 0 {
					t.Errorf("Sent = %v, want nothing sent", env.api.Sent)
				}
				return
			}
			if err != nil {
				t.Fatalf("send error = %v", err)
			}

			if len(env.api.Sent) != 1 {
				t.Fatalf("Sent = %v, want one message", env.api.Sent)
			}
			if got := env.api.Sent[0]; got.UserID != tt.wantUID || got.Body != "privet" {
				t.Errorf("Sent[0] = %+v, want privet to %d", got, tt.wantUID)
			}
			if !strings.Contains(out, "me: privet") {
				t.Errorf("output = %q, want the sent line", out)
			}

			conv, err := env.store(t).History(context.Background(), tt.wantUID, 0)
			if err != nil {
				t.Fatalf("History() error = %v", err)
			}
			if len(conv.Messages) != 1 || !conv.Messages[0].Outgoing {
				t.Errorf("History() = %+v, want the outgoing message", conv.Messages)
			}
		})
	}
}

func TestSendCommand_ListsCandidates(t *testing.T) {
	env := newCmdEnv(t)
	out, _ := env.run(t, 5*time.Second, "send", "ivan", "privet")

	for _, want := range []string{"Ivan Petrov", "Ivan Sidorov"} {
		if !strings.Contains(out, want) {
			t.Errorf("output = %q, want candidate %q", out, want)
		}
	}
}

func TestSendCommand_Failure(t *testing.T) {
	env := newCmdEnv(t)
	env.api.FailSend = true

	if _, err := env.run(t, 5*time.Second, "send", "20", "privet"); err == nil {
		t.Error("send should fail when the API rejects the message")
	}
}
