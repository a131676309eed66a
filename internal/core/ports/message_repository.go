package ports

import (
	"context"

	"github.com/pairchat/pairchat/internal/core/domain"
)

// MessageFilter selects messages. When Peer is empty, every message involving
// Participant is selected; otherwise only the conversation between the two,
// in either direction.
type MessageFilter struct {
	Participant string
	Peer        string
}

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) (*domain.Message, error)
	// Find returns matching messages ordered by ascending timestamp.
	Find(ctx context.Context, filter MessageFilter) ([]*domain.Message, error)
	// DeleteConversation removes every message between a and b and returns the count.
	DeleteConversation(ctx context.Context, a, b string) (int64, error)
}
