package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/core/domain"
)

const (
	minBackoff = time.Second
	maxBackoff = 5 * time.Second
)

// nextBackoff doubles d within [minBackoff, maxBackoff].
func nextBackoff(d time.Duration) time.Duration {
	if d < minBackoff {
		return minBackoff
	}
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// EventHandler receives what the socket observes.
type EventHandler interface {
	OnEvent(domain.Event)
	OnConnection(connected bool)
}

// Socket keeps a WebSocket connection to the server open, redialing with
// backoff for as long as its context lives.
type Socket struct {
	dialer *websocket.Dialer
	log    zerolog.Logger
}

func NewSocket(log zerolog.Logger) *Socket {
	return &Socket{
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log,
	}
}

// SocketURL derives the WebSocket endpoint from the HTTP base address.
func SocketURL(base, token, peer string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	q := url.Values{"token": {token}}
	if peer != "" {
		q.Set("peer", peer)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run dials target and forwards events to h until ctx is cancelled.
// Retries are unbounded.
func (s *Socket) Run(ctx context.Context, target string, h EventHandler) {
	var wait time.Duration
	for {
		conn, _, err := s.dialer.DialContext(ctx, target, nil)
		if err == nil {
			wait = 0
			h.OnConnection(true)
			s.read(ctx, conn, h)
			h.OnConnection(false)
		} else {
			s.log.Debug().Err(err).Msg("dial failed")
		}

		if ctx.Err() != nil {
			return
		}
		wait = nextBackoff(wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Socket) read(ctx context.Context, conn *websocket.Conn, h EventHandler) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("connection lost")
			}
			return
		}
		ev, err := decodeFrame(raw)
		if err != nil {
			s.log.Warn().Err(err).Msg("skip frame")
			continue
		}
		h.OnEvent(ev)
	}
}

func decodeFrame(raw []byte) (domain.Event, error) {
	var f struct {
		Event domain.EventType `json:"event"`
		Data  json.RawMessage  `json:"data"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.Event{}, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Event {
	case domain.EventNewMessage:
		var m domain.Message
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return domain.Event{}, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		return domain.NewMessageEvent(&m), nil
	case domain.EventChatCleared:
		var c domain.ChatCleared
		if err := json.Unmarshal(f.Data, &c); err != nil {
			return domain.Event{}, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		return domain.ChatClearedEvent(c.Sender, c.Receiver, c.DeletedCount), nil
	default:
		return domain.Event{}, fmt.Errorf("unknown event %q", f.Event)
	}
}
