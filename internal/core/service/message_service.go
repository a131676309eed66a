package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/ports"
)

type MessageService struct {
	messages  ports.MessageRepository
	users     ports.UserRepository
	publisher ports.EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewMessageService(messages ports.MessageRepository, users ports.UserRepository, publisher ports.EventPublisher, logger zerolog.Logger) *MessageService {
	return &MessageService{
		messages:  messages,
		users:     users,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns a conversation when both sender and receiver are given, and the
// caller's whole inbox and outbox otherwise. Results are ascending by timestamp.
func (s *MessageService) List(ctx context.Context, input ports.ListMessagesInput) ([]*domain.Message, error) {
	filter := ports.MessageFilter{Participant: input.Caller}

	if input.Sender != "" && input.Receiver != "" {
		switch input.Caller {
		case input.Sender:
			filter.Peer = input.Receiver
		case input.Receiver:
			filter.Peer = input.Sender
		default:
			return nil, domain.ErrForbidden
		}
	}

	msgs, err := s.messages.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Send persists a message from the caller and announces it to connected clients.
func (s *MessageService) Send(ctx context.Context, input ports.SendMessageInput) (*domain.Message, error) {
	if input.Sender == "" || input.Receiver == "" || input.Text == "" {
		return nil, domain.ErrMissingFields
	}
	if input.Sender != input.Caller {
		return nil, domain.ErrForbidden
	}

	exists, err := s.users.Exists(ctx, input.Receiver)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if !exists {
		return nil, domain.ErrReceiverNotFound
	}

	// Mongo stores millisecond precision; truncate so the returned message
	// matches what a later read yields.
	saved, err := s.messages.Create(ctx, &domain.Message{
		Sender:    input.Sender,
		Receiver:  input.Receiver,
		Text:      input.Text,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to store message")
		return nil, fmt.Errorf("send message: %w", err)
	}

	s.publisher.Publish(domain.NewMessageEvent(saved))

	s.logger.Debug().Str("id", saved.ID).Str("sender", saved.Sender).Str("receiver", saved.Receiver).Msg("message sent")
	return saved, nil
}

// Clear deletes the conversation between sender and receiver in both directions.
func (s *MessageService) Clear(ctx context.Context, input ports.ClearConversationInput) (int64, error) {
	if input.Sender == "" || input.Receiver == "" {
		return 0, domain.ErrMissingFields
	}
	if input.Caller != input.Sender && input.Caller != input.Receiver {
		return 0, domain.ErrForbidden
	}

	deleted, err := s.messages.DeleteConversation(ctx, input.Sender, input.Receiver)
	if err != nil {
		return 0, fmt.Errorf("clear conversation: %w", err)
	}

	s.publisher.Publish(domain.ChatClearedEvent(input.Sender, input.Receiver, deleted))

	s.logger.Info().
		Str("sender", input.Sender).
		Str("receiver", input.Receiver).
		Int64("deleted", deleted).
		Msg("conversation cleared")
	return deleted, nil
}
