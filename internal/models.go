package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MessageFlag is a bit of the flags field carried by long-poll message updates
type MessageFlag int64

const (
	FlagUnread    MessageFlag = 1
	FlagOutbox    MessageFlag = 2
	FlagReplied   MessageFlag = 4
	FlagImportant MessageFlag = 8
	FlagChat      MessageFlag = 16
	FlagFriends   MessageFlag = 32
	FlagSpam      MessageFlag = 64
	FlagDeleted   MessageFlag = 128
	FlagFixed     MessageFlag = 256
	FlagMedia     MessageFlag = 512
)

// Has reports whether all bits of f are set in flags
func (f MessageFlag) Has(flags int64) bool {
	return flags&int64(f) == int64(f)
}

// IsIncomingUnread reports whether the flags describe an unread message from a friend
// that was not sent by us: UNREAD and FRIENDS set, OUTBOX clear.
func IsIncomingUnread(flags int64) bool {
	return FlagUnread.Has(flags) && FlagFriends.Has(flags) && !FlagOutbox.Has(flags)
}

// ServerDescriptor describes the long-poll endpoint handed out by the API
type ServerDescriptor struct {
	Server string `json:"server" yaml:"server"` // "host/path"
	Key    string `json:"key" yaml:"key"`
	Cursor string `json:"ts" yaml:"ts"`

	Host string `json:"-" yaml:"-"`
	Path string `json:"-" yaml:"-"`
}

// SplitServer fills Host and Path by splitting Server on its first slash
func (d *ServerDescriptor) SplitServer() error {
	host, path, ok := strings.Cut(d.Server, "/")
	if !ok || host == "" {
		return fmt.Errorf("malformed long-poll server %q", d.Server)
	}
	if d.Key == "" {
		return fmt.Errorf("long-poll descriptor for %q has no key", d.Server)
	}
	d.Host = host
	d.Path = path
	return nil
}

// Contact is a friend as returned by the friend list
type Contact struct {
	ID        int64  `json:"id" yaml:"id"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Nickname  string `json:"nickname,omitempty" yaml:"nickname,omitempty"`
}

// ConversationKey names the conversation opened for this contact
func (c Contact) ConversationKey() string {
	nick := c.Nickname
	if nick == "" {
		nick = strconv.FormatInt(c.ID, 10)
	}
	return fmt.Sprintf("%s %s (%s)", c.FirstName, c.LastName, nick)
}

// Title is the human readable conversation title
func (c Contact) Title() string {
	return fmt.Sprintf("%s %s", c.FirstName, c.LastName)
}

// DisplayName is the label shown next to messages from this contact
func (c Contact) DisplayName() string {
	if c.FirstName == "" {
		return strconv.FormatInt(c.ID, 10)
	}
	return c.FirstName
}

// ChatMessage is a displayable message
type ChatMessage struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	TimestampSec  int64  `json:"date"`
	Body          string `json:"body"`
	HasAttachment bool   `json:"has_attachment,omitempty"`
	Outgoing      bool   `json:"out,omitempty"`
}

// Time returns the message timestamp as a time.Time
func (m ChatMessage) Time() time.Time {
	return time.Unix(m.TimestampSec, 0)
}

// MessageIDs returns the ids of messages, in order
func MessageIDs(messages []ChatMessage) []int64 {
	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}
