package domain

// EventType names a realtime notification pushed to connected clients.
type EventType string

const (
	EventNewMessage  EventType = "new_message"
	EventChatCleared EventType = "chat_cleared"
)

// ChatCleared is the payload of a chat_cleared event.
type ChatCleared struct {
	Sender       string `json:"sender"`
	Receiver     string `json:"receiver"`
	DeletedCount int64  `json:"deletedCount"`
}

// Event is a realtime notification. Exactly one of Message or Cleared is set,
// matching Type.
type Event struct {
	Type    EventType    `json:"event"`
	Message *Message     `json:"message,omitempty"`
	Cleared *ChatCleared `json:"cleared,omitempty"`
}

// NewMessageEvent wraps a persisted message.
func NewMessageEvent(m *Message) Event {
	return Event{Type: EventNewMessage, Message: m}
}

// ChatClearedEvent announces the deletion of a conversation.
func ChatClearedEvent(sender, receiver string, deleted int64) Event {
	return Event{
		Type:    EventChatCleared,
		Cleared: &ChatCleared{Sender: sender, Receiver: receiver, DeletedCount: deleted},
	}
}

// Participants returns the two usernames the event concerns.
func (e Event) Participants() (string, string) {
	switch {
	case e.Message != nil:
		return e.Message.Sender, e.Message.Receiver
	case e.Cleared != nil:
		return e.Cleared.Sender, e.Cleared.Receiver
	}
	return "", ""
}

// ConversationKey returns the key of the conversation the event belongs to.
func (e Event) ConversationKey() string {
	a, b := e.Participants()
	return ConversationKey(a, b)
}

// Payload returns the value clients receive as the event data.
func (e Event) Payload() any {
	if e.Message != nil {
		return e.Message
	}
	return e.Cleared
}
