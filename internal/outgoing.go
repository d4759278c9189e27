package internal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const selfLabel = "me"

// Outbox sends messages to contacts and echoes them in their conversation
type Outbox struct {
	sender MessageSender
	sink   Sink
	ledger DispatchLedger
	now    func() time.Time
}

// NewOutbox creates an Outbox. ledger may be nil.
func NewOutbox(sender MessageSender, sink Sink, ledger DispatchLedger) *Outbox {
	return &Outbox{sender: sender, sink: sink, ledger: ledger, now: time.Now}
}

// Send sends text to contact, then appends it locally as an outgoing message
func (o *Outbox) Send(ctx context.Context, contact Contact, text string) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, fmt.Errorf("refusing to send an empty message to %s", contact.Title())
	}

	id, err := o.sender.SendMessage(ctx, contact.ID, text)
	if err != nil {
		return ChatMessage{}, &RemoteCallError{Method: "messages.send", Err: err}
	}

	msg := ChatMessage{
		ID:           id,
		UserID:       contact.ID,
		TimestampSec: o.now().Unix(),
		Body:         text,
		Outgoing:     true,
	}

	key, err := o.sink.OpenConversation(contact)
	if err != nil {
		return msg, fmt.Errorf("message sent but the conversation could not be opened: %w", err)
	}
	if err := o.sink.AppendMessage(key, msg.TimestampSec, selfLabel, msg.Body, true); err != nil {
		LogWarn("unable to echo message %d: %v", id, err)
	}

	if o.ledger != nil {
		if err := o.ledger.RecordOutgoing(ctx, key, msg); err != nil {
			LogWarn("unable to record message %d: %v", id, err)
		}
	}

	return msg, nil
}

// ResolveRecipient finds the contact a message is addressed to: a user id, or first and
// last name patterns that must match exactly one contact. On ambiguity the candidates are
// returned along with the error.
func ResolveRecipient(contacts *ContactDirectory, args []string) (Contact, []Contact, error) {
	if len(args) == 0 {
		return Contact{}, nil, fmt.Errorf("no recipient given")
	}

	if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
		if c, ok := contacts.Lookup(id); ok {
			return c, nil, nil
		}
		return Contact{}, nil, fmt.Errorf("user %d is not in the friend list", id)
	}

	first := args[0]
	last := ""
	if len(args) > 1 {
		last = args[1]
	}

	matches := contacts.Match(first, last)
	switch len(matches) {
	case 1:
		return matches[0], nil, nil
	case 0:
		return Contact{}, contacts.All(), fmt.Errorf("no friend matches %q %q", first, last)
	default:
		return Contact{}, matches, fmt.Errorf("%d friends match %q %q", len(matches), first, last)
	}
}

// ParseOutgoingLine splits an interactive "<user id> <text>" line
func ParseOutgoingLine(line string) (int64, string, error) {
	line = strings.TrimSpace(line)
	head, text, ok := strings.Cut(line, " ")
	if !ok || strings.TrimSpace(text) == "" {
		return 0, "", fmt.Errorf("expected \"<user id> <text>\", got %q", line)
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid user id %q: %w", head, err)
	}
	return id, strings.TrimSpace(text), nil
}
