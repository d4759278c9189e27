package internal

import (
	"strings"

	"github.com/tidwall/gjson"
)

// UpdateKind tells which variant an UpdateRecord carries
type UpdateKind int

const (
	UpdateIgnored UpdateKind = iota
	UpdateNewMessage
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateNewMessage:
		return "new_message"
	default:
		return "ignored"
	}
}

const (
	newMessageTag       = 4
	newMessageMinFields = 8
)

// NewMessageUpdate holds the fields of a "new message" long-poll record
type NewMessageUpdate struct {
	MessageID     int64
	Flags         int64
	SenderID      int64
	TimestampSec  int64
	Body          string
	HasAttachment bool
}

// UpdateRecord is one decoded entry of the long-poll "updates" array.
// Records of any other tag, or too short to be trusted, decode to UpdateIgnored.
type UpdateRecord struct {
	Kind       UpdateKind
	Tag        int64
	Raw        string
	NewMessage *NewMessageUpdate
}

// Payload is a decoded long-poll body
type Payload struct {
	Cursor     string
	Updates    []UpdateRecord
	Failed     bool
	FailedCode int64
}

// Messages converts the payload's updates to displayable messages
func (p *Payload) Messages() []ChatMessage {
	if p == nil {
		return nil
	}
	return MessagesFromUpdates(p.Updates)
}

// Decoder turns long-poll bodies into typed update records
type Decoder struct{}

// NewDecoder creates a new Decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses a long-poll body. A body that is not JSON, that carries a "failed"
// field, or that lacks "ts" or "updates" comes back as a failed payload together with
// a *ProtocolError; the caller is expected to reconnect.
func (d *Decoder) Decode(body []byte) (*Payload, error) {
	text := strings.ToValidUTF8(string(body), "\uFFFD")

	if !gjson.Valid(text) {
		return &Payload{Failed: true}, &ProtocolError{Stage: "payload", Detail: "malformed JSON body"}
	}

	root := gjson.Parse(text)
	if !root.IsObject() {
		return &Payload{Failed: true}, &ProtocolError{Stage: "payload", Detail: "body is not an object"}
	}

	if failed := root.Get("failed"); failed.Exists() {
		return &Payload{Failed: true, FailedCode: failed.Int()},
			&ProtocolError{Stage: "payload", Detail: "server requested a new key: failed=" + failed.Raw}
	}

	ts := root.Get("ts")
	updates := root.Get("updates")
	if !ts.Exists() || !updates.Exists() || !updates.IsArray() {
		return &Payload{Failed: true}, &ProtocolError{Stage: "payload", Detail: "corrupted reply: missing ts or updates"}
	}

	cursor := ts.String()
	if cursor == "" {
		return &Payload{Failed: true}, &ProtocolError{Stage: "payload", Detail: "empty ts"}
	}

	payload := &Payload{Cursor: cursor}
	updates.ForEach(func(_, u gjson.Result) bool {
		payload.Updates = append(payload.Updates, decodeRecord(u))
		return true
	})

	LogDebug("decoded %d update(s), next ts=%s", len(payload.Updates), payload.Cursor)

	return payload, nil
}

func decodeRecord(u gjson.Result) UpdateRecord {
	rec := UpdateRecord{Kind: UpdateIgnored, Raw: u.Raw}
	if !u.IsArray() {
		return rec
	}

	fields := u.Array()
	if len(fields) == 0 || fields[0].Type != gjson.Number {
		return rec
	}
	rec.Tag = fields[0].Int()

	if rec.Tag != newMessageTag {
		return rec
	}
	if len(fields) < newMessageMinFields {
		LogDebug("message corrupted: %s", u.Raw)
		return rec
	}

	rec.Kind = UpdateNewMessage
	rec.NewMessage = &NewMessageUpdate{
		MessageID:     fields[1].Int(),
		Flags:         fields[2].Int(),
		SenderID:      fields[3].Int(),
		TimestampSec:  fields[4].Int(),
		Body:          fields[6].String(),
		HasAttachment: nonEmpty(fields[7]),
	}
	return rec
}

// nonEmpty follows JSON truthiness: null, false, 0, "" and empty containers are empty
func nonEmpty(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	default:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		if v.IsObject() {
			return len(v.Map()) > 0
		}
		return false
	}
}

// MessagesFromUpdates keeps the new-message records that are unread, from a friend and
// not outgoing, in their original order.
func MessagesFromUpdates(updates []UpdateRecord) []ChatMessage {
	var messages []ChatMessage
	for _, rec := range updates {
		if rec.Kind != UpdateNewMessage || rec.NewMessage == nil {
			continue
		}
		nm := rec.NewMessage
		if !IsIncomingUnread(nm.Flags) {
			LogDebug("message ignored: %s", rec.Raw)
			continue
		}
		messages = append(messages, ChatMessage{
			ID:            nm.MessageID,
			UserID:        nm.SenderID,
			TimestampSec:  nm.TimestampSec,
			Body:          nm.Body,
			HasAttachment: nm.HasAttachment,
		})
	}
	return messages
}
