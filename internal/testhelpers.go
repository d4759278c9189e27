package internal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CreateTestMessage creates an incoming unread message
func CreateTestMessage(id, userID, ts int64, body string) ChatMessage {
	return ChatMessage{
		ID:           id,
		UserID:       userID,
		TimestampSec: ts,
		Body:         body,
	}
}

// CreateTestContact creates a contact named after its id
func CreateTestContact(id int64, first, last string) Contact {
	return Contact{
		ID:        id,
		FirstName: first,
		LastName:  last,
	}
}

// CreateTestConversation creates a stored conversation with one incoming and one outgoing message
func CreateTestConversation(userID int64) *Conversation {
	key := "Ivan Petrov (vanya)"
	return &Conversation{
		UserID:       userID,
		Conversation: key,
		Messages: []StoredMessage{
			{ID: 1, UserID: userID, Conversation: key, TimestampSec: 1700000000, Body: "privet"},
			{ID: 2, UserID: userID, Conversation: key, TimestampSec: 1700000060, Body: "hi there", Outgoing: true},
		},
	}
}

// CreateTestConversationWithMessages creates a stored conversation holding messages
func CreateTestConversationWithMessages(userID int64, messages []StoredMessage) *Conversation {
	return &Conversation{
		UserID:       userID,
		Conversation: "Ivan Petrov (vanya)",
		Messages:     messages,
	}
}

// ErrFakeAPI is returned by FakeAPI calls configured to fail
var ErrFakeAPI = errors.New("fake api failure")

// FakeAPI is an in-memory RemoteAPI for tests
type FakeAPI struct {
	mu sync.Mutex

	Token       string
	Self        Contact
	Descriptors []ServerDescriptor // handed out in order, the last one repeats
	Friends     []Contact
	Dialogs     []ChatMessage

	FailAuth       bool
	FailDescriptor bool
	FailFriends    bool
	FailDialogs    bool
	FailMarkAsRead bool
	FailSend       bool

	DescriptorCalls int
	MarkAsReadCalls [][]int64
	Sent            []ChatMessage
	nextID          int64
}

var _ RemoteAPI = (*FakeAPI)(nil)

func (f *FakeAPI) Authenticate(ctx context.Context) (*Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAuth || f.Token == "" {
		return nil, ErrFakeAPI
	}
	self := f.Self
	return &self, nil
}

func (f *FakeAPI) SetToken(token string) {
	f.mu.Lock()
	f.Token = token
	f.mu.Unlock()
}

func (f *FakeAPI) GetLongPollServer(ctx context.Context) (*ServerDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DescriptorCalls++
	if f.FailDescriptor || len(f.Descriptors) == 0 {
		return nil, ErrFakeAPI
	}
	d := f.Descriptors[0]
	if len(f.Descriptors) > 1 {
		f.Descriptors = f.Descriptors[1:]
	}
	return &d, nil
}

func (f *FakeAPI) GetFriends(ctx context.Context) ([]Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailFriends {
		return nil, ErrFakeAPI
	}
	return append([]Contact(nil), f.Friends...), nil
}

func (f *FakeAPI) GetDialogs(ctx context.Context, unreadOnly bool) ([]ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDialogs {
		return nil, ErrFakeAPI
	}
	return append([]ChatMessage(nil), f.Dialogs...), nil
}

func (f *FakeAPI) MarkAsRead(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MarkAsReadCalls = append(f.MarkAsReadCalls, append([]int64(nil), ids...))
	if f.FailMarkAsRead {
		return ErrFakeAPI
	}
	return nil
}

func (f *FakeAPI) SendMessage(ctx context.Context, userID int64, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return 0, ErrFakeAPI
	}
	f.nextID++
	id := 1000 + f.nextID
	f.Sent = append(f.Sent, ChatMessage{ID: id, UserID: userID, TimestampSec: time.Now().Unix(), Body: text, Outgoing: true})
	return id, nil
}

// ReceiptCalls returns a copy of the MarkAsRead calls
func (f *FakeAPI) ReceiptCalls() [][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]int64(nil), f.MarkAsReadCalls...)
}
