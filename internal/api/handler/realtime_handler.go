package handler

import (
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/infrastructure/realtime"
)

// RealtimeHandler upgrades authenticated requests to WebSocket connections
// registered with the hub.
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader *websocket.Upgrader
	log      zerolog.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, allowedOrigins []string, log zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:      hub,
		upgrader: realtime.NewUpgrader(allowedOrigins),
		log:      log,
	}
}

// Connect handles GET /ws.
//
// @Summary      Open the realtime event stream
// @Description  Upgrades to a WebSocket that receives new_message and chat_cleared events for conversations the caller takes part in. The token may be passed as ?token= since browsers cannot set headers on the handshake.
// @Tags         realtime
// @Security     BearerAuth
// @Param        token  query  string  false  "Bearer token"
// @Param        peer   query  string  false  "Only receive events of the conversation with this user"
// @Success      101    {string}  string  "Switching Protocols"
// @Failure      401    {object}  errorResponse
// @Router       /ws [get]
func (h *RealtimeHandler) Connect(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Debug().Err(err).Str("username", who.Username).Msg("websocket upgrade failed")
		return nil
	}

	realtime.NewClient(h.hub, conn, who.Username, c.QueryParam("peer"), h.log).Run()
	return nil
}
