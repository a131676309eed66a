package realtime

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// Client is one authenticated WebSocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	username string
	peer     string
	// room is the conversation key when the client subscribed to a single
	// conversation, empty otherwise.
	room string
	send chan []byte
	log  zerolog.Logger
}

// NewClient binds conn to username. A non-empty peer narrows delivery to the
// conversation between username and peer.
func NewClient(hub *Hub, conn *websocket.Conn, username, peer string, log zerolog.Logger) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		username: username,
		peer:     peer,
		send:     make(chan []byte, sendBuffer),
		log:      log,
	}
	if peer != "" {
		c.room = domain.ConversationKey(username, peer)
	}
	return c
}

// wants reports whether an event between a and b may be delivered to c.
func (c *Client) wants(a, b, key string) bool {
	if c.username != a && c.username != b {
		return false
	}
	return c.room == "" || c.room == key
}

// Run registers c with the hub and pumps frames until the connection closes.
// It blocks for the lifetime of the connection.
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump()
}

// readPump discards client frames; reading is required to process pongs and
// detect closed connections.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Str("username", c.username).Msg("realtime read")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Str("username", c.username).Msg("realtime write")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// NewUpgrader returns an upgrader accepting handshakes from the given origins.
// Requests without an Origin header come from non-browser clients and are
// always accepted.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil || u.Host == "" {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}
