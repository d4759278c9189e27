package internal

import (
	"context"
	"sort"
)

// ConversationGroups maps a user id to its messages, oldest first
type ConversationGroups map[int64][]ChatMessage

// UserIDs returns the user ids of the groups in ascending order
func (g ConversationGroups) UserIDs() []int64 {
	ids := make([]int64, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of messages over all groups
func (g ConversationGroups) Len() int {
	n := 0
	for _, msgs := range g {
		n += len(msgs)
	}
	return n
}

// GroupByConversation partitions messages by user id and sorts each group by timestamp.
// Messages with equal timestamps keep their input order.
func GroupByConversation(messages []ChatMessage) ConversationGroups {
	groups := make(ConversationGroups)
	for _, m := range messages {
		groups[m.UserID] = append(groups[m.UserID], m)
	}
	for _, msgs := range groups {
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].TimestampSec < msgs[j].TimestampSec
		})
	}
	return groups
}

// DispatchReport summarizes a Dispatch call
type DispatchReport struct {
	Conversations int
	Delivered     int
	Skipped       int
	ReceiptsSent  int
	ReceiptErrors int
}

// Router delivers grouped messages to the sink and acknowledges them
type Router struct {
	sink     Sink
	receipts ReadMarker
	dedup    *Deduplicator
	ledger   DispatchLedger
}

// NewRouter creates a router. receipts may be nil to skip read receipts.
func NewRouter(sink Sink, receipts ReadMarker) *Router {
	return &Router{
		sink:     sink,
		receipts: receipts,
		dedup:    NewDeduplicator(),
	}
}

// WithLedger makes the router record dispatched messages and skip ids recorded earlier
func (r *Router) WithLedger(ledger DispatchLedger) *Router {
	r.ledger = ledger
	return r
}

// Route drops messages already dispatched, groups the rest and dispatches them
func (r *Router) Route(ctx context.Context, contacts *ContactDirectory, messages []ChatMessage) DispatchReport {
	fresh := r.dedup.Deduplicate(messages)

	if r.ledger != nil {
		kept := fresh[:0]
		for _, m := range fresh {
			seen, err := r.ledger.Seen(ctx, m.ID)
			if err != nil {
				LogWarn("unable to check message %d against the history: %v", m.ID, err)
			}
			if seen {
				LogDebug("message %d already dispatched", m.ID)
				continue
			}
			kept = append(kept, m)
		}
		fresh = kept
	}

	return r.Dispatch(ctx, contacts, GroupByConversation(fresh))
}

// Dispatch appends every group whose user is a known contact to its conversation, then
// acknowledges exactly the ids it appended with one read-receipt call per group.
// Groups from unknown users are skipped without any sink or receipt call. Messages the
// sink fails to take are forgotten by the deduplicator so a later cycle can retry them.
func (r *Router) Dispatch(ctx context.Context, contacts *ContactDirectory, groups ConversationGroups) DispatchReport {
	var report DispatchReport

	for _, uid := range groups.UserIDs() {
		msgs := groups[uid]

		contact, ok := contacts.Lookup(uid)
		if !ok {
			LogDebug("skipping %d message(s) from %d: not a known contact", len(msgs), uid)
			report.Skipped += len(msgs)
			continue
		}

		key, err := r.sink.OpenConversation(contact)
		if err != nil {
			LogWarn("unable to open a conversation with %s: %v", contact.Title(), err)
			r.dedup.Forget(MessageIDs(msgs))
			report.Skipped += len(msgs)
			continue
		}
		report.Conversations++

		delivered := make([]ChatMessage, 0, len(msgs))
		for _, m := range msgs {
			if err := r.sink.AppendMessage(key, m.TimestampSec, contact.DisplayName(), messageText(m), false); err != nil {
				LogWarn("unable to display message %d: %v", m.ID, err)
				r.dedup.Forget([]int64{m.ID})
				continue
			}
			delivered = append(delivered, m)
		}
		report.Delivered += len(delivered)
		if len(delivered) == 0 {
			continue
		}

		r.record(ctx, key, delivered)
		if r.acknowledge(ctx, MessageIDs(delivered)) {
			report.ReceiptsSent++
		} else if r.receipts != nil {
			report.ReceiptErrors++
		}
	}

	return report
}

// RetryPendingReceipts acknowledges read receipts that failed in earlier cycles
func (r *Router) RetryPendingReceipts(ctx context.Context) (int, error) {
	if r.ledger == nil || r.receipts == nil {
		return 0, nil
	}
	ids, err := r.ledger.PendingReceipts(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	LogDebug("retrying read receipts for %s", joinIDs(ids))
	if !r.acknowledge(ctx, ids) {
		return 0, nil
	}
	return len(ids), nil
}

func (r *Router) record(ctx context.Context, key string, msgs []ChatMessage) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.RecordDispatched(ctx, key, msgs); err != nil {
		LogWarn("unable to record messages of %s: %v", key, err)
	}
}

// acknowledge sends one read receipt for ids and records the outcome in the ledger
func (r *Router) acknowledge(ctx context.Context, ids []int64) bool {
	if r.receipts == nil {
		return false
	}
	if err := r.receipts.MarkAsRead(ctx, ids); err != nil {
		LogWarn("unable to mark messages %s as read: %v", joinIDs(ids), &RemoteCallError{Method: "messages.markAsRead", Err: err})
		return false
	}
	if r.ledger != nil {
		if err := r.ledger.MarkReceipts(ctx, ids, true); err != nil {
			LogWarn("unable to record read receipts: %v", err)
		}
	}
	return true
}
