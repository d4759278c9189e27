package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lenormf/vk-chat/internal"
)

func TestMarkdownExporter_Export(t *testing.T) {
	tests := []struct {
		name string
		conv *internal.Conversation
		want []string
	}{
		{
			name: "basic conversation",
			conv: internal.CreateTestConversation(42),
			want: []string{
				"# Conversation with Ivan Petrov (vanya)",
				"**User ID:** 42",
				"**Messages:** 2",
				"## Messages",
				"**Ivan Petrov (vanya):** (2023-11-14T22:13:20Z)",
				"privet",
				"**me:**",
			},
		},
		{
			name: "conversation without key",
			conv: &internal.Conversation{UserID: 9},
			want: []string{
				"# Conversation with user 9",
				"**Messages:** 0",
			},
		},
		{
			name: "markdown in body is escaped",
			conv: internal.CreateTestConversationWithMessages(42, []internal.StoredMessage{
				{ID: 1, UserID: 42, TimestampSec: 1700000000, Body: "this is **loud**"},
			}),
			want: []string{`this is \*\*loud\*\*`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &MarkdownExporter{}

			if err := exporter.Export(tt.conv, &buf); err != nil {
				t.Fatalf("MarkdownExporter.Export() error = %v", err)
			}

			output := buf.String()
			for _, wantStr := range tt.want {
				if !strings.Contains(output, wantStr) {
					t.Errorf("Output should contain %q, got:\n%s", wantStr, output)
				}
			}
		})
	}
}

func TestMarkdownExporter_Extension(t *testing.T) {
	exporter := &MarkdownExporter{}
	if got := exporter.Extension(); got != "md" {
		t.Errorf("MarkdownExporter.Extension() = %v, want md", got)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     []string
		notWant  []string
	}{
		{
			name:  "basic text",
			input: "Hello world",
			want:  []string{"Hello world"},
		},
		{
			name:    "markdown bold",
			input:    "This is **bold** text",
			want:     []string{"\\*\\*bold\\*\\*"},
			notWant:  []string{"**bold**"},
		},
		{
			name:    "markdown underline",
			input:    "This is __underlined__ text",
			want:     []string{"\\_\\_underlined\\_\\_"},
			notWant:  []string{"__underlined__"},
		},
		{
			name:  "code block preserved",
			input: "```go\npackage main\n```",
			want:  []string{"```go", "package main", "```"},
		},
		{
			name:    "mixed content",
			input:    "Regular text **bold** and ```code```",
			want:     []string{"\\*\\*bold\\*\\*", "```code```"},
			notWant:  []string{"**bold**"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := escapeMarkdown(tt.input)
			for _, wantStr := range tt.want {
				if !strings.Contains(got, wantStr) {
					t.Errorf("escapeMarkdown() should contain %q, got: %s", wantStr, got)
				}
			}
			for _, notWantStr := range tt.notWant {
				if strings.Contains(got, notWantStr) {
					t.Errorf("escapeMarkdown() should not contain %q, got: %s", notWantStr, got)
				}
			}
		})
	}
}


