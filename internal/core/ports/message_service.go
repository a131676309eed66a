package ports

import (
	"context"

	"github.com/pairchat/pairchat/internal/core/domain"
)

// ListMessagesInput carries the optional conversation filter of GET /messages.
type ListMessagesInput struct {
	Caller   string
	Sender   string
	Receiver string
}

// SendMessageInput is the DTO passed from the transport layer to MessageService.Send.
type SendMessageInput struct {
	Caller   string
	Sender   string
	Receiver string
	Text     string
}

// ClearConversationInput identifies the conversation to delete.
type ClearConversationInput struct {
	Caller   string
	Sender   string
	Receiver string
}

// MessageService defines use-case operations for conversations.
type MessageService interface {
	List(ctx context.Context, input ListMessagesInput) ([]*domain.Message, error)
	Send(ctx context.Context, input SendMessageInput) (*domain.Message, error)
	Clear(ctx context.Context, input ClearConversationInput) (int64, error)
}
