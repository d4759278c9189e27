package internal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const attachmentMarker = "[attachment]"

// Sink is the chat display surface
type Sink interface {
	// OpenConversation resolves or creates the display target for a contact
	OpenConversation(contact Contact) (string, error)
	// AppendMessage appends one line to a conversation
	AppendMessage(conversation string, timestampSec int64, sender, body string, outgoing bool) error
}

var (
	conversationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("62"))

	selfNickStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	otherNickStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Faint(true)
)

// TerminalSink prints conversations as timestamped lines
type TerminalSink struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	opened map[string]bool
}

// NewTerminalSink creates a sink writing to out. Colors are used only when out is a terminal.
func NewTerminalSink(out io.Writer) *TerminalSink {
	return &TerminalSink{
		out:    out,
		color:  isTerminal(out),
		opened: make(map[string]bool),
	}
}

// OpenConversation returns the conversation key of contact, announcing it the first time
func (s *TerminalSink) OpenConversation(contact Contact) (string, error) {
	key := contact.ConversationKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened[key] {
		s.opened[key] = true
		LogDebug("opened conversation %s", key)
	}
	return key, nil
}

// AppendMessage prints "[15:04:05] conversation nick: body"
func (s *TerminalSink) AppendMessage(conversation string, timestampSec int64, sender, body string, outgoing bool) error {
	stamp := time.Unix(timestampSec, 0).Format("15:04:05")

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.color {
		nick := otherNickStyle
		if outgoing {
			nick = selfNickStyle
		}
		_, err = fmt.Fprintf(s.out, "%s %s %s %s\n",
			timeStyle.Render("["+stamp+"]"),
			conversationStyle.Render(conversation),
			nick.Render(sender+":"),
			body)
	} else {
		_, err = fmt.Fprintf(s.out, "[%s] %s %s: %s\n", stamp, conversation, sender, body)
	}
	return err
}

// SinkLine is one message appended to a MemorySink
type SinkLine struct {
	Conversation string
	TimestampSec int64
	Sender       string
	Body         string
	Outgoing     bool
}

// MemorySink keeps appended messages in memory
type MemorySink struct {
	mu     sync.Mutex
	Opened []string
	Lines  []SinkLine
}

// NewMemorySink creates an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) OpenConversation(contact Contact) (string, error) {
	key := contact.ConversationKey()
	s.mu.Lock()
	s.Opened = append(s.Opened, key)
	s.mu.Unlock()
	return key, nil
}

func (s *MemorySink) AppendMessage(conversation string, timestampSec int64, sender, body string, outgoing bool) error {
	s.mu.Lock()
	s.Lines = append(s.Lines, SinkLine{
		Conversation: conversation,
		TimestampSec: timestampSec,
		Sender:       sender,
		Body:         body,
		Outgoing:     outgoing,
	})
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the appended lines
func (s *MemorySink) Snapshot() []SinkLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]SinkLine, len(s.Lines))
	copy(cp, s.Lines)
	return cp
}

// messageText is what the sink shows for a message body
func messageText(m ChatMessage) string {
	switch {
	case m.Body == "" && m.HasAttachment:
		return attachmentMarker
	case m.HasAttachment:
		return m.Body + " " + attachmentMarker
	default:
		return m.Body
	}
}
