package export

import (
	"bytes"
	"testing"

	"github.com/lenormf/vk-chat/internal"
	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_Export(t *testing.T) {
	conv := internal.CreateTestConversation(42)

	var buf bytes.Buffer
	exporter := &YAMLExporter{}
	if err := exporter.Export(conv, &buf); err != nil {
		t.Fatalf("YAMLExporter.Export() error = %v", err)
	}

	var got internal.Conversation
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Output is not valid YAML: %v\nOutput: %s", err, buf.String())
	}
	if got.Conversation != conv.Conversation {
		t.Errorf("Conversation = %q, want %q", got.Conversation, conv.Conversation)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(got.Messages))
	}
	if !got.Messages[1].Outgoing {
		t.Errorf("Messages[1].Outgoing = false, want true")
	}
}

func TestYAMLExporter_Extension(t *testing.T) {
	exporter := &YAMLExporter{}
	if got := exporter.Extension(); got != "yaml" {
		t.Errorf("YAMLExporter.Extension() = %v, want yaml", got)
	}
}
