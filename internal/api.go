package internal

import "context"

// DescriptorSource hands out long-poll server descriptors
type DescriptorSource interface {
	GetLongPollServer(ctx context.Context) (*ServerDescriptor, error)
}

// FriendSource fetches the friend list
type FriendSource interface {
	GetFriends(ctx context.Context) ([]Contact, error)
}

// DialogSource fetches the latest message of each dialog
type DialogSource interface {
	GetDialogs(ctx context.Context, unreadOnly bool) ([]ChatMessage, error)
}

// ReadMarker acknowledges messages as read on the remote side
type ReadMarker interface {
	MarkAsRead(ctx context.Context, ids []int64) error
}

// MessageSender sends a message and returns its id
type MessageSender interface {
	SendMessage(ctx context.Context, userID int64, text string) (int64, error)
}

// RemoteAPI is the full set of remote calls the client depends on
type RemoteAPI interface {
	DescriptorSource
	FriendSource
	DialogSource
	ReadMarker
	MessageSender

	// Authenticate validates the current token and returns the account owner
	Authenticate(ctx context.Context) (*Contact, error)

	// SetToken replaces the access token used by later calls
	SetToken(token string)
}
