package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pairchat/pairchat/internal/api/metrics"
	"github.com/pairchat/pairchat/internal/core/ports"
)

// MessageHandler handles HTTP requests for conversations.
type MessageHandler struct {
	service ports.MessageService
}

func NewMessageHandler(service ports.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// List handles GET /messages.
//
// @Summary      List messages
// @Description  With both sender and receiver, returns that conversation in both directions. Otherwise returns every message the caller sent or received.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        sender    query     string  false  "Conversation participant"
// @Param        receiver  query     string  false  "Conversation participant"
// @Success      200       {array}   domain.Message
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Failure      500       {object}  errorResponse
// @Router       /messages [get]
func (h *MessageHandler) List(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	msgs, err := h.service.List(c.Request().Context(), ports.ListMessagesInput{
		Caller:   who.Username,
		Sender:   c.QueryParam("sender"),
		Receiver: c.QueryParam("receiver"),
	})
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	return c.JSON(http.StatusOK, msgs)
}

// Send handles POST /messages.
//
// @Summary      Send a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      sendMessageRequest  true  "Message"
// @Success      201   {object}  domain.Message
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /messages [post]
func (h *MessageHandler) Send(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.service.Send(c.Request().Context(), ports.SendMessageInput{
		Caller:   who.Username,
		Sender:   req.Sender,
		Receiver: req.Receiver,
		Text:     req.Message,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSentTotal.Inc()

	return c.JSON(http.StatusCreated, msg)
}

// Clear handles DELETE /messages.
//
// @Summary      Clear a conversation
// @Description  Deletes every message between sender and receiver, in both directions. Parameters may be sent as a JSON body or as query parameters.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        sender    query     string  false  "Conversation participant"
// @Param        receiver  query     string  false  "Conversation participant"
// @Success      200       {object}  clearResponse
// @Failure      400       {object}  errorResponse
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Failure      500       {object}  errorResponse
// @Router       /messages [delete]
func (h *MessageHandler) Clear(c echo.Context) error {
	who, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req clearRequest
	binder := &echo.DefaultBinder{}
	if err := binder.BindQueryParams(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	// A JSON body overrides the query; other bodies are ignored.
	r := c.Request()
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := binder.BindBody(c, &req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
	}

	deleted, err := h.service.Clear(c.Request().Context(), ports.ClearConversationInput{
		Caller:   who.Username,
		Sender:   req.Sender,
		Receiver: req.Receiver,
	})
	if err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	metrics.MessagesDeletedTotal.Add(float64(deleted))

	return c.JSON(http.StatusOK, clearResponse{OK: true, Deleted: deleted})
}
