package internal

import (
	"bytes"
	"testing"
	"time"
)

func TestTerminalSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)
	contact := Contact{ID: 10, FirstName: "Ivan", LastName: "Petrov", Nickname: "vanya"}

	key, err := sink.OpenConversation(contact)
	if err != nil {
		t.Fatalf("OpenConversation() error = %v", err)
	}
	if key != "Ivan Petrov (vanya)" {
		t.Errorf("OpenConversation() = %q, want %q", key, "Ivan Petrov (vanya)")
	}

	ts := time.Date(2024, 1, 2, 15, 4, 5, 0, time.Local).Unix()
	if err := sink.AppendMessage(key, ts, "Ivan", "privet", false); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	want := "[15:04:05] Ivan Petrov (vanya) Ivan: privet\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	key, _ := sink.OpenConversation(Contact{ID: 20, FirstName: "Olga", LastName: "Ivanova"})
	if key != "Olga Ivanova (20)" {
		t.Errorf("OpenConversation() = %q, want %q", key, "Olga Ivanova (20)")
	}
	_ = sink.AppendMessage(key, 100, "me", "hi", true)

	lines := sink.Snapshot()
	want := SinkLine{Conversation: key, TimestampSec: 100, Sender: "me", Body: "hi", Outgoing: true}
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("Snapshot() = %+v, want [%+v]", lines, want)
	}

	lines[0].Body = "changed"
	if sink.Snapshot()[0].Body != "hi" {
		t.Error("Snapshot() should return a copy")
	}
}

func TestMessageText(t *testing.T) {
	tests := []struct {
		name string
		msg  ChatMessage
		want string
	}{
		{"plain", ChatMessage{Body: "hello"}, "hello"},
		{"attachment only", ChatMessage{HasAttachment: true}, "[attachment]"},
		{"body and attachment", ChatMessage{Body: "look", HasAttachment: true}, "look [attachment]"},
		{"empty", ChatMessage{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messageText(tt.msg); got != tt.want {
				t.Errorf("messageText() = %q, want %q", got, tt.want)
			}
		})
	}
}
