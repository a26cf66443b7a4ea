package session

import "time"

// AdminRingCapacity bounds how many forwarded support messages an admin can
// answer with /reply_admin.
const AdminRingCapacity = 16

// RingEntry is one support message forwarded to an admin chat.
type RingEntry struct {
	MessageID int       `json:"message_id"`
	UserID    int64     `json:"user_id"`
	At        time.Time `json:"at"`
}

// AdminRing keeps the newest forwarded messages of one admin, oldest first.
type AdminRing struct {
	Entries []RingEntry `json:"entries,omitempty"`
}

// Push appends e and drops the oldest entry beyond capacity.
func (r *AdminRing) Push(e RingEntry) {
	r.Entries = append(r.Entries, e)
	if over := len(r.Entries) - AdminRingCapacity; over > 0 {
		r.Entries = append([]RingEntry(nil), r.Entries[over:]...)
	}
}

// Peek returns the newest entry.
func (r *AdminRing) Peek() (RingEntry, bool) {
	if len(r.Entries) == 0 {
		return RingEntry{}, false
	}
	return r.Entries[len(r.Entries)-1], true
}

// Pop removes and returns the newest entry.
func (r *AdminRing) Pop() (RingEntry, bool) {
	e, ok := r.Peek()
	if ok {
		r.Entries = r.Entries[:len(r.Entries)-1]
	}
	return e, ok
}

// Len returns the number of entries.
func (r *AdminRing) Len() int {
	return len(r.Entries)
}

// Remove drops the entry for messageID.
func (r *AdminRing) Remove(messageID int) bool {
	for i, e := range r.Entries {
		if e.MessageID == messageID {
			r.Entries = append(r.Entries[:i:i], r.Entries[i+1:]...)
			return true
		}
	}
	return false
}
