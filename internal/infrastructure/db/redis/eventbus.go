package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/api/metrics"
	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/ports"
)

// EventsChannel is the pub/sub channel shared by every server instance.
const EventsChannel = "pairchat:events"

const (
	outboxBuffer = 256
	retryMin     = time.Second
	retryMax     = 30 * time.Second
)

var errSubscriptionClosed = errors.New("subscription channel closed")

// EventBus relays realtime events between server instances through Redis
// pub/sub. Publish queues the event for the publisher goroutine and never
// blocks; events received from the channel, including the instance's own,
// are handed to the local sink.
type EventBus struct {
	client   *redis.Client
	channel  string
	outbox   chan domain.Event
	retryMin time.Duration
	log      zerolog.Logger
}

func NewEventBus(client *redis.Client, log zerolog.Logger) *EventBus {
	return &EventBus{
		client:   client,
		channel:  EventsChannel,
		outbox:   make(chan domain.Event, outboxBuffer),
		retryMin: retryMin,
		log:      log,
	}
}

// Publish implements ports.EventPublisher. The event is dropped when the
// outbox is full.
func (b *EventBus) Publish(event domain.Event) {
	select {
	case b.outbox <- event:
	default:
		metrics.RealtimeDroppedTotal.WithLabelValues("bus_full").Inc()
		b.log.Warn().Str("event", string(event.Type)).Msg("event bus outbox full, dropping event")
	}
}

// Run drains the outbox and forwards every event received on the channel to
// sink until ctx is cancelled. A failed or lost subscription is retried with
// backoff. An event that cannot be published to Redis is delivered to sink
// directly so local clients still receive it.
func (b *EventBus) Run(ctx context.Context, sink ports.EventPublisher) {
	go b.publishLoop(ctx, sink)

	var wait time.Duration
	for {
		err := b.subscribe(ctx, sink, func() { wait = 0 })
		if ctx.Err() != nil {
			return
		}

		wait = nextRetry(wait, b.retryMin)
		b.log.Warn().Err(err).Dur("retry_in", wait).Msg("event bus subscription lost")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// subscribe forwards channel messages to sink until the subscription ends.
// confirmed runs once Redis has acknowledged the subscription.
func (b *EventBus) subscribe(ctx context.Context, sink ports.EventPublisher, confirmed func()) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	confirmed()
	b.log.Info().Str("channel", b.channel).Msg("event bus subscribed")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errSubscriptionClosed
			}
			event, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				b.log.Warn().Err(err).Msg("discarding malformed event")
				continue
			}
			sink.Publish(event)
		}
	}
}

func (b *EventBus) publishLoop(ctx context.Context, fallback ports.EventPublisher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.outbox:
			payload, err := json.Marshal(event)
			if err != nil {
				b.log.Error().Err(err).Msg("encode event")
				continue
			}
			if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
				if ctx.Err() != nil {
					return
				}
				b.log.Error().Err(err).Str("event", string(event.Type)).Msg("publish event, delivering locally")
				fallback.Publish(event)
			}
		}
	}
}

// nextRetry doubles d within [floor, retryMax].
func nextRetry(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	d *= 2
	if d > retryMax {
		return retryMax
	}
	return d
}

func decodeEvent(payload []byte) (domain.Event, error) {
	var event domain.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.Event{}, err
	}
	switch event.Type {
	case domain.EventNewMessage:
		if event.Message == nil {
			return domain.Event{}, errors.New("new_message without message")
		}
	case domain.EventChatCleared:
		if event.Cleared == nil {
			return domain.Event{}, errors.New("chat_cleared without payload")
		}
	default:
		return domain.Event{}, fmt.Errorf("unknown event type %q", event.Type)
	}
	return event, nil
}
