package ports

import "github.com/pairchat/pairchat/internal/core/domain"

// EventPublisher fans realtime events out to connected clients.
// Publish must not block the caller and reports no delivery outcome.
type EventPublisher interface {
	Publish(event domain.Event)
}
