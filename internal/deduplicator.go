package internal

import "sync"

// Deduplicator drops messages whose id was already let through
type Deduplicator struct {
	mu   sync.Mutex
	seen map[int64]bool
}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[int64]bool)}
}

// Deduplicate returns the messages not seen before, in their original order.
// Duplicates inside messages are dropped as well.
func (d *Deduplicator) Deduplicate(messages []ChatMessage) []ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()

	var unique []ChatMessage
	for _, msg := range messages {
		if d.seen[msg.ID] {
			LogDebug("dropping duplicate message %d", msg.ID)
			continue
		}
		d.seen[msg.ID] = true
		unique = append(unique, msg)
	}

	return unique
}

// Forget removes ids so they can be let through again
func (d *Deduplicator) Forget(ids []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		delete(d.seen, id)
	}
}

// Len returns the number of remembered ids
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
