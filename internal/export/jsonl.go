package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lenormf/vk-chat/internal"
)

// JSONLExporter exports conversations in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a conversation to JSONL format
func (e *JSONLExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range conv.Messages {
		obj := map[string]interface{}{
			"id":     msg.ID,
			"sender": sender(conv, msg),
			"body":   msg.Body,
		}
		if msg.TimestampSec != 0 {
			obj["timestamp"] = msg.Time().UTC().Format(time.RFC3339)
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
