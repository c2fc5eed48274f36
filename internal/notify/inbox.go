package notify

import (
	"sort"
	"sync"
)

// Inbox is the default sink: an in-memory, per-viewer notification list that
// request handlers read and dismiss from while the scheduler delivers into it.
type Inbox struct {
	mu         sync.RWMutex
	maxEntries int
	entries    map[string]Notification
}

// NewInbox constructs an empty inbox. maxEntries bounds retained
// notifications; the oldest are evicted first once the bound is hit.
func NewInbox(maxEntries int) *Inbox {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Inbox{
		maxEntries: maxEntries,
		entries:    make(map[string]Notification),
	}
}

// Deliver stores a notification for later reading.
func (b *Inbox) Deliver(notification Notification) {
	if b == nil || notification.ID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.maxEntries {
		b.evictOldestLocked()
	}
	b.entries[notification.ID] = notification
}

// Withdraw drops every stored notification referencing the given call.
func (b *Inbox) Withdraw(callID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, entry := range b.entries {
		if entry.CallID == callID {
			delete(b.entries, id)
		}
	}
}

// List returns the stored notifications ordered by firing time, oldest first.
func (b *Inbox) List() []Notification {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	out := make([]Notification, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, entry)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FiredAt.Before(out[j].FiredAt)
	})
	return out
}

// Dismiss removes a single notification by ID and reports whether it existed.
func (b *Inbox) Dismiss(notificationID string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[notificationID]; !ok {
		return false
	}
	delete(b.entries, notificationID)
	return true
}

// Len reports the number of stored notifications.
func (b *Inbox) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Inbox) evictOldestLocked() {
	oldestID := ""
	for id, entry := range b.entries {
		if oldestID == "" || entry.FiredAt.Before(b.entries[oldestID].FiredAt) {
			oldestID = id
		}
	}
	if oldestID != "" {
		delete(b.entries, oldestID)
	}
}
