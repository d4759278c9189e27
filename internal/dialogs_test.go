package internal

import (
	"context"
	"reflect"
	"testing"
)

func TestShowUnreadDialogs(t *testing.T) {
	api := &FakeAPI{Dialogs: []ChatMessage{
		CreateTestMessage(5, 10, 500, "latest from ivan"),
		{ID: 6, UserID: 20, TimestampSec: 510, Body: "my own reply", Outgoing: true},
		CreateTestMessage(7, 99, 520, "stranger"),
		CreateTestMessage(8, 20, 530, "from olga"),
	}}
	sink := NewMemorySink()
	router := NewRouter(sink, api)

	report := ShowUnreadDialogs(context.Background(), api, testDirectory(), router)

	if report.Delivered != 2 || report.Skipped != 1 || report.Conversations != 2 {
		t.Errorf("ShowUnreadDialogs() report = %+v, want 2 delivered in 2 conversations, 1 skipped", report)
	}
	var bodies []string
	for _, l := range sink.Snapshot() {
		bodies = append(bodies, l.Body)
	}
	if want := []string{"latest from ivan", "from olga"}; !reflect.DeepEqual(bodies, want) {
		t.Errorf("sink bodies = %v, want %v", bodies, want)
	}
	if got := api.ReceiptCalls(); !reflect.DeepEqual(got, [][]int64{{5}, {8}}) {
		t.Errorf("MarkAsRead calls = %v, want [[5] [8]]", got)
	}
}

func TestShowUnreadDialogs_Failures(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		api := &FakeAPI{FailDialogs: true}
		sink := NewMemorySink()
		report := ShowUnreadDialogs(context.Background(), api, testDirectory(), NewRouter(sink, api))
		if report != (DispatchReport{}) || len(sink.Snapshot()) != 0 {
			t.Errorf("ShowUnreadDialogs() = %+v, want an empty report", report)
		}
	})

	t.Run("no contacts", func(t *testing.T) {
		api := &FakeAPI{Dialogs: []ChatMessage{CreateTestMessage(5, 10, 500, "hi")}}
		sink := NewMemorySink()
		report := ShowUnreadDialogs(context.Background(), api, NewContactDirectory(nil), NewRouter(sink, api))
		if report != (DispatchReport{}) || len(api.ReceiptCalls()) != 0 {
			t.Errorf("ShowUnreadDialogs() = %+v, want an empty report and no receipts", report)
		}
	})
}
