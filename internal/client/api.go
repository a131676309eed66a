// Package client implements the terminal chat client: a REST client for the
// server API, a reconnecting WebSocket listener and an interactive shell.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pairchat/pairchat/internal/core/domain"
)

// ErrNotLoggedIn is returned by calls that need a token when none is set.
var ErrNotLoggedIn = errors.New("not logged in")

// User is the account summary returned by register and login.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Session is what the client keeps between runs.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// API talks to the chat server over HTTP.
type API struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

func NewAPI(baseURL string, timeout time.Duration) *API {
	return &API{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address the client was built with.
func (a *API) BaseURL() string { return a.base }

func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) Register(ctx context.Context, username, password, passkey string) (*User, error) {
	body := map[string]string{"username": username, "password": password, "passkey": passkey}
	var u User
	if err := a.do(ctx, http.MethodPost, "/auth/register", nil, body, &u, false); err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *API) Login(ctx context.Context, username, password string) (*Session, error) {
	body := map[string]string{"username": username, "password": password}
	var s Session
	if err := a.do(ctx, http.MethodPost, "/auth/login", nil, body, &s, false); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, true)
}

// Messages fetches the conversation between a and b in chronological order.
func (a *API) Messages(ctx context.Context, sender, receiver string) ([]domain.Message, error) {
	q := url.Values{"sender": {sender}, "receiver": {receiver}}
	var msgs []domain.Message
	if err := a.do(ctx, http.MethodGet, "/messages", q, nil, &msgs, true); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (a *API) Send(ctx context.Context, sender, receiver, text string) (*domain.Message, error) {
	body := map[string]string{"sender": sender, "receiver": receiver, "message": text}
	var m domain.Message
	if err := a.do(ctx, http.MethodPost, "/messages", nil, body, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// Clear deletes the conversation between a and b and returns how many
// messages were removed.
func (a *API) Clear(ctx context.Context, sender, receiver string) (int64, error) {
	q := url.Values{"sender": {sender}, "receiver": {receiver}}
	var res struct {
		OK      bool  `json:"ok"`
		Deleted int64 `json:"deleted"`
	}
	if err := a.do(ctx, http.MethodDelete, "/messages", q, nil, &res, true); err != nil {
		return 0, err
	}
	return res.Deleted, nil
}

func (a *API) Status(ctx context.Context, username string) (*domain.UserStatus, error) {
	var st domain.UserStatus
	path := "/users/" + url.PathEscape(username) + "/status"
	if err := a.do(ctx, http.MethodGet, path, nil, nil, &st, true); err != nil {
		return nil, err
	}
	return &st, nil
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, body, out any, auth bool) error {
	target := a.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		token := a.Token()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
