package domain

import (
	"sort"
	"time"
)

// Message is a single chat line. Messages are immutable once stored.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Involves reports whether username is the sender or the receiver of m.
func (m *Message) Involves(username string) bool {
	return m.Sender == username || m.Receiver == username
}

// BelongsTo reports whether m was exchanged between a and b, in either direction.
func (m *Message) BelongsTo(a, b string) bool {
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}

// ConversationKey identifies the unordered pair {a, b}.
// ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "\x00" + pair[1]
}
