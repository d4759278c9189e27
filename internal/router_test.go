package internal

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func testDirectory() *ContactDirectory {
	return NewContactDirectory([]Contact{
		{ID: 10, FirstName: "Ivan", LastName: "Petrov", Nickname: "vanya"},
		{ID: 20, FirstName: "Olga", LastName: "Ivanova"},
	})
}

func TestGroupByConversation(t *testing.T) {
	msgs := []ChatMessage{
		CreateTestMessage(1, 10, 300, "late"),
		CreateTestMessage(2, 20, 100, "other"),
		CreateTestMessage(3, 10, 100, "early"),
		CreateTestMessage(4, 10, 300, "late too"),
	}

	groups := GroupByConversation(msgs)

	if got := groups.UserIDs(); !reflect.DeepEqual(got, []int64{10, 20}) {
		t.Errorf("UserIDs() = %v, want [10 20]", got)
	}
	if groups.Len() != 4 {
		t.Errorf("Len() = %d, want 4", groups.Len())
	}
	if got := MessageIDs(groups[10]); !reflect.DeepEqual(got, []int64{3, 1, 4}) {
		t.Errorf("group 10 ids = %v, want [3 1 4]", got)
	}
	if got := MessageIDs(groups[20]); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("group 20 ids = %v, want [2]", got)
	}
}

func TestGroupByConversation_Empty(t *testing.T) {
	groups := GroupByConversation(nil)
	if len(groups) != 0 || groups.Len() != 0 {
		t.Errorf("GroupByConversation(nil) = %v, want empty", groups)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	sink := NewMemorySink()
	api := &FakeAPI{}
	router := NewRouter(sink, api)

	groups := GroupByConversation([]ChatMessage{
		CreateTestMessage(1, 10, 200, "second"),
		CreateTestMessage(2, 10, 100, "first"),
		CreateTestMessage(3, 20, 150, ""),
	})
	groups[20][0].HasAttachment = true

	report := router.Dispatch(context.Background(), testDirectory(), groups)

	want := DispatchReport{Conversations: 2, Delivered: 3, ReceiptsSent: 2}
	if report != want {
		t.Errorf("Dispatch() report = %+v, want %+v", report, want)
	}

	wantLines := []SinkLine{
		{Conversation: "Ivan Petrov (vanya)", TimestampSec: 100, Sender: "Ivan", Body: "first"},
		{Conversation: "Ivan Petrov (vanya)", TimestampSec: 200, Sender: "Ivan", Body: "second"},
		{Conversation: "Olga Ivanova (20)", TimestampSec: 150, Sender: "Olga", Body: "[attachment]"},
	}
	if got := sink.Snapshot(); !reflect.DeepEqual(got, wantLines) {
		t.Errorf("sink lines = %+v, want %+v", got, wantLines)
	}

	wantReceipts := [][]int64{{2, 1}, {3}}
	if got := api.ReceiptCalls(); !reflect.DeepEqual(got, wantReceipts) {
		t.Errorf("MarkAsRead calls = %v, want %v", got, wantReceipts)
	}
}

func TestRouter_DispatchUnknownContact(t *testing.T) {
	sink := NewMemorySink()
	api := &FakeAPI{}
	router := NewRouter(sink, api)

	groups := GroupByConversation([]ChatMessage{
		CreateTestMessage(1, 99, 100, "who is this"),
		CreateTestMessage(2, 99, 110, "hello?"),
	})
	report := router.Dispatch(context.Background(), testDirectory(), groups)

	if report.Skipped != 2 || report.Delivered != 0 || report.Conversations != 0 {
		t.Errorf("Dispatch() report = %+v, want 2 skipped", report)
	}
	if len(sink.Opened) != 0 || len(sink.Snapshot()) != 0 {
		t.Error("Dispatch() touched the sink for an unknown contact")
	}
	if len(api.ReceiptCalls()) != 0 {
		t.Errorf("MarkAsRead called %d time(s) for an unknown contact", len(api.ReceiptCalls()))
	}
}

func TestRouter_DispatchNilContacts(t *testing.T) {
	sink := NewMemorySink()
	router := NewRouter(sink, nil)

	report := router.Dispatch(context.Background(), nil, GroupByConversation([]ChatMessage{
		CreateTestMessage(1, 10, 100, "hi"),
	}))
	if report.Skipped != 1 {
		t.Errorf("Dispatch() report = %+v, want 1 skipped", report)
	}
}

func TestRouter_ReceiptFailure(t *testing.T) {
	store := newTestStore(t)
	api := &FakeAPI{FailMarkAsRead: true}
	router := NewRouter(NewMemorySink(), api).WithLedger(store)
	ctx := context.Background()

	report := router.Route(ctx, testDirectory(), []ChatMessage{
		CreateTestMessage(1, 10, 100, "a"),
		CreateTestMessage(2, 10, 110, "b"),
	})
	if report.Delivered != 2 || report.ReceiptErrors != 1 || report.ReceiptsSent != 0 {
		t.Errorf("Route() report = %+v, want 2 delivered and 1 receipt error", report)
	}

	pending, err := store.PendingReceipts(ctx)
	if err != nil {
		t.Fatalf("PendingReceipts() error = %v", err)
	}
	if !reflect.DeepEqual(pending, []int64{1, 2}) {
		t.Errorf("PendingReceipts() = %v, want [1 2]", pending)
	}

	// the API recovers and the receipts are retried
	api.mu.Lock()
	api.FailMarkAsRead = false
	api.mu.Unlock()

	n, err := router.RetryPendingReceipts(ctx)
	if err != nil {
		t.Fatalf("RetryPendingReceipts() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RetryPendingReceipts() = %d, want 2", n)
	}
	pending, _ = store.PendingReceipts(ctx)
	if len(pending) != 0 {
		t.Errorf("PendingReceipts() after retry = %v, want none", pending)
	}

	calls := api.ReceiptCalls()
	if last := calls[len(calls)-1]; !reflect.DeepEqual(last, []int64{1, 2}) {
		t.Errorf("last MarkAsRead call = %v, want [1 2]", last)
	}
}

func TestRouter_RouteSkipsSeenMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.RecordDispatched(ctx, "Ivan Petrov (vanya)", []ChatMessage{CreateTestMessage(1, 10, 100, "old")}); err != nil {
		t.Fatalf("RecordDispatched() error = %v", err)
	}

	sink := NewMemorySink()
	api := &FakeAPI{}
	router := NewRouter(sink, api).WithLedger(store)

	msgs := []ChatMessage{
		CreateTestMessage(1, 10, 100, "old"),
		CreateTestMessage(2, 10, 120, "new"),
		CreateTestMessage(2, 10, 120, "new"),
	}
	report := router.Route(ctx, testDirectory(), msgs)
	if report.Delivered != 1 {
		t.Errorf("Route() delivered %d, want 1", report.Delivered)
	}

	// a second delivery of the same update is dropped by the deduplicator
	report = router.Route(ctx, testDirectory(), msgs)
	if report.Delivered != 0 {
		t.Errorf("second Route() delivered %d, want 0", report.Delivered)
	}

	lines := sink.Snapshot()
	if len(lines) != 1 || lines[0].Body != "new" {
		t.Errorf("sink lines = %+v, want only \"new\"", lines)
	}
	if got := api.ReceiptCalls(); !reflect.DeepEqual(got, [][]int64{{2}}) {
		t.Errorf("MarkAsRead calls = %v, want [[2]]", got)
	}
}

func TestRouter_RetryWithoutLedger(t *testing.T) {
	router := NewRouter(NewMemorySink(), &FakeAPI{})
	n, err := router.RetryPendingReceipts(context.Background())
	if n != 0 || err != nil {
		t.Errorf("RetryPendingReceipts() = (%d, %v), want (0, nil)", n, err)
	}
}

// flakySink fails the first appends and opens it is told to
type flakySink struct {
	*MemorySink
	failAppends int
	failOpens   int
}

func (s *flakySink) OpenConversation(contact Contact) (string, error) {
	if s.failOpens > 0 {
		s.failOpens--
		return "", errors.New("conversation unavailable")
	}
	return s.MemorySink.OpenConversation(contact)
}

func (s *flakySink) AppendMessage(conversation string, timestampSec int64, sender, body string, outgoing bool) error {
	if s.failAppends > 0 {
		s.failAppends--
		return errors.New("display unavailable")
	}
	return s.MemorySink.AppendMessage(conversation, timestampSec, sender, body, outgoing)
}

func TestRouter_RouteRedeliversAfterSinkFailure(t *testing.T) {
	tests := []struct {
		name string
		sink *flakySink
	}{
		{name: "append fails", sink: &flakySink{MemorySink: NewMemorySink(), failAppends: 1}},
		{name: "open fails", sink: &flakySink{MemorySink: NewMemorySink(), failOpens: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			api := &FakeAPI{}
			router := NewRouter(tt.sink, api).WithLedger(store)
			ctx := context.Background()
			msgs := []ChatMessage{CreateTestMessage(1, 10, 100, "privet")}

			report := router.Route(ctx, testDirectory(), msgs)
			if report.Delivered != 0 {
				t.Errorf("Route() delivered %d, want 0", report.Delivered)
			}
			if len(api.ReceiptCalls()) != 0 {
				t.Errorf("MarkAsRead calls = %v, want none for an undisplayed message", api.ReceiptCalls())
			}

			// the same update comes back and the sink accepts it this time
			report = router.Route(ctx, testDirectory(), msgs)
			if report.Delivered != 1 {
				t.Errorf("second Route() delivered %d, want 1", report.Delivered)
			}
			if got := api.ReceiptCalls(); !reflect.DeepEqual(got, [][]int64{{1}}) {
				t.Errorf("MarkAsRead calls = %v, want [[1]]", got)
			}

			// once delivered it stays deduplicated
			report = router.Route(ctx, testDirectory(), msgs)
			if report.Delivered != 0 {
				t.Errorf("third Route() delivered %d, want 0", report.Delivered)
			}
			if lines := tt.sink.Snapshot(); len(lines) != 1 {
				t.Errorf("sink lines = %+v, want exactly one", lines)
			}
		})
	}
}
