package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/ports"
)

type stubMessageService struct {
	listFn  func(ctx context.Context, in ports.ListMessagesInput) ([]*domain.Message, error)
	sendFn  func(ctx context.Context, in ports.SendMessageInput) (*domain.Message, error)
	clearFn func(ctx context.Context, in ports.ClearConversationInput) (int64, error)
}

func (s *stubMessageService) List(ctx context.Context, in ports.ListMessagesInput) ([]*domain.Message, error) {
	return s.listFn(ctx, in)
}

func (s *stubMessageService) Send(ctx context.Context, in ports.SendMessageInput) (*domain.Message, error) {
	return s.sendFn(ctx, in)
}

func (s *stubMessageService) Clear(ctx context.Context, in ports.ClearConversationInput) (int64, error) {
	return s.clearFn(ctx, in)
}

func TestMessageHandler_List(t *testing.T) {
	e := newEcho()
	ts := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var got ports.ListMessagesInput
	handler := NewMessageHandler(&stubMessageService{
		listFn: func(_ context.Context, in ports.ListMessagesInput) ([]*domain.Message, error) {
			got = in
			return []*domain.Message{{ID: "m1", Sender: "alice", Receiver: "bob", Text: "hi", Timestamp: ts}}, nil
		},
	})

	rec := httptest.NewRecorder()
	c := asAlice(e.NewContext(httptest.NewRequest(http.MethodGet, "/messages?sender=alice&receiver=bob", nil), rec))

	if err := handler.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.Caller != "alice" || got.Sender != "alice" || got.Receiver != "bob" {
		t.Fatalf("unexpected input: %+v", got)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0]["message"] != "hi" || resp[0]["id"] != "m1" || resp[0]["timestamp"] != "2026-01-01T10:00:00Z" {
		t.Fatalf("unexpected payload: %v", resp)
	}
}

func TestMessageHandler_List_EmptyIsArray(t *testing.T) {
	e := newEcho()
	handler := NewMessageHandler(&stubMessageService{
		listFn: func(context.Context, ports.ListMessagesInput) ([]*domain.Message, error) {
			return []*domain.Message{}, nil
		},
	})

	rec := httptest.NewRecorder()
	c := asAlice(e.NewContext(httptest.NewRequest(http.MethodGet, "/messages", nil), rec))
	if err := handler.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestMessageHandler_Send(t *testing.T) {
	e := newEcho()
	var got ports.SendMessageInput
	handler := NewMessageHandler(&stubMessageService{
		sendFn: func(_ context.Context, in ports.SendMessageInput) (*domain.Message, error) {
			got = in
			return &domain.Message{ID: "m9", Sender: in.Sender, Receiver: in.Receiver, Text: in.Text}, nil
		},
	})

	rec := httptest.NewRecorder()
	c := asAlice(e.NewContext(jsonRequest(http.MethodPost, "/messages", `{"sender":"alice","receiver":"bob","message":"hello"}`), rec))

	if err := handler.Send(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got.Caller != "alice" || got.Text != "hello" {
		t.Fatalf("unexpected input: %+v", got)
	}
}

func TestMessageHandler_Send_Forbidden(t *testing.T) {
	e := newEcho()
	handler := NewMessageHandler(&stubMessageService{
		sendFn: func(context.Context, ports.SendMessageInput) (*domain.Message, error) {
			return nil, domain.ErrForbidden
		},
	})

	c := asAlice(e.NewContext(jsonRequest(http.MethodPost, "/messages", `{"sender":"bob","receiver":"carol","message":"spoof"}`), httptest.NewRecorder()))
	if err := handler.Send(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestMessageHandler_Send_MissingFields(t *testing.T) {
	e := newEcho()
	handler := NewMessageHandler(&stubMessageService{})

	c := asAlice(e.NewContext(jsonRequest(http.MethodPost, "/messages", `{"sender":"alice","receiver":"bob"}`), httptest.NewRecorder()))
	err := handler.Send(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestMessageHandler_Clear(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"json body", jsonRequest(http.MethodDelete, "/messages", `{"sender":"alice","receiver":"bob"}`)},
		{"query string", httptest.NewRequest(http.MethodDelete, "/messages?sender=alice&receiver=bob", nil)},
		{"query with untyped body", httptest.NewRequest(http.MethodDelete, "/messages?sender=alice&receiver=bob", strings.NewReader(`{"x":1}`))},
		{"json body overrides query", jsonRequest(http.MethodDelete, "/messages?sender=carol&receiver=dave", `{"sender":"alice","receiver":"bob"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			var got ports.ClearConversationInput
			handler := NewMessageHandler(&stubMessageService{
				clearFn: func(_ context.Context, in ports.ClearConversationInput) (int64, error) {
					got = in
					return 4, nil
				},
			})

			rec := httptest.NewRecorder()
			c := asAlice(e.NewContext(tt.req, rec))
			if err := handler.Clear(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if got.Caller != "alice" || got.Sender != "alice" || got.Receiver != "bob" {
				t.Fatalf("unexpected input: %+v", got)
			}

			var resp clearResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if !resp.OK || resp.Deleted != 4 {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}
