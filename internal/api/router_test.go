package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/service"
	"github.com/pairchat/pairchat/internal/infrastructure/realtime"
)

type testServer struct {
	*httptest.Server
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := newMemoryStore(
		&domain.Passkey{Key: "friends", Label: "friends", Active: true},
		&domain.Passkey{Key: "invite", Label: "one-off", Active: true, SingleUse: true},
	)
	log := zerolog.Nop()

	hub := realtime.NewHub(log)
	dispatcher := realtime.NewDispatcher(2, hub, log)
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)

	authSvc := service.NewAuthService(memoryUsers{store}, memoryPasskeys{store}, service.NewTokenService("test-secret", time.Hour), log)
	msgSvc := service.NewMessageService(memoryMessages{store}, memoryUsers{store}, dispatcher, log)

	e := NewRouter(Deps{
		Auth:           authSvc,
		Messages:       msgSvc,
		Hub:            hub,
		AllowedOrigins: []string{"http://localhost:5173"},
		Log:            log,
		Registry:       prometheus.NewRegistry(),
	})

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		cancel()
	})
	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}

func (s *testServer) register(t *testing.T, username, passkey string) int {
	t.Helper()
	code, _ := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "password": username + "-pw", "passkey": passkey,
	})
	return code
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": username + "-pw",
	})
	if code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, code, body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(body, &resp)
	return resp.Token
}

func errorOf(body []byte) string {
	var resp errorResponse
	_ = json.Unmarshal(body, &resp)
	return resp.Error
}

func TestRouter_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	if code := s.register(t, "alice", "friends"); code != http.StatusCreated {
		t.Fatalf("register alice: %d", code)
	}
	if code := s.register(t, "bob", "friends"); code != http.StatusCreated {
		t.Fatalf("register bob: %d", code)
	}
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	code, body := s.do(t, http.MethodPost, "/messages", alice, map[string]string{"sender": "alice", "receiver": "bob", "message": "hi bob"})
	if code != http.StatusCreated {
		t.Fatalf("send: %d %s", code, body)
	}
	code, _ = s.do(t, http.MethodPost, "/messages", bob, map[string]string{"sender": "bob", "receiver": "alice", "message": "hi alice"})
	if code != http.StatusCreated {
		t.Fatalf("reply: %d", code)
	}

	var views [2][]domain.Message
	for i, q := range []struct{ token, path string }{
		{alice, "/messages?sender=alice&receiver=bob"},
		{bob, "/messages?sender=bob&receiver=alice"},
	} {
		code, body := s.do(t, http.MethodGet, q.path, q.token, nil)
		if code != http.StatusOK {
			t.Fatalf("list: %d %s", code, body)
		}
		if err := json.Unmarshal(body, &views[i]); err != nil {
			t.Fatalf("decode list: %v", err)
		}
	}
	if len(views[0]) != 2 || views[0][0].Text != "hi bob" || views[0][1].Text != "hi alice" {
		t.Fatalf("unexpected conversation: %+v", views[0])
	}
	if len(views[1]) != 2 || views[1][0].ID != views[0][0].ID || views[1][1].ID != views[0][1].ID {
		t.Fatalf("bob's view differs from alice's: %+v vs %+v", views[1], views[0])
	}

	code, body = s.do(t, http.MethodGet, "/users/bob/status", alice, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"online":true`) {
		t.Fatalf("status: %d %s", code, body)
	}

	code, body = s.do(t, http.MethodDelete, "/messages?sender=alice&receiver=bob", bob, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"deleted":2`) {
		t.Fatalf("clear: %d %s", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/auth/logout", bob, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"ok":true`) {
		t.Fatalf("logout: %d %s", code, body)
	}
	_, body = s.do(t, http.MethodGet, "/users/bob/status", alice, nil)
	if !strings.Contains(string(body), `"online":false`) {
		t.Fatalf("bob should be offline: %s", body)
	}
}

func TestRouter_RegistrationRules(t *testing.T) {
	s := newTestServer(t)

	if code := s.register(t, "mallory", "guess"); code != http.StatusForbidden {
		t.Fatalf("unknown passkey: expected 403, got %d", code)
	}
	if code := s.register(t, "alice", "invite"); code != http.StatusCreated {
		t.Fatalf("single-use passkey first use: %d", code)
	}
	if code := s.register(t, "bob", "invite"); code != http.StatusForbidden {
		t.Fatalf("single-use passkey reuse: expected 403, got %d", code)
	}
	if code := s.register(t, "alice", "friends"); code != http.StatusConflict {
		t.Fatalf("duplicate username: expected 409, got %d", code)
	}
}

func TestRouter_RegisterRejectsOverlongPassword(t *testing.T) {
	s := newTestServer(t)

	// 40 runes but 80 bytes: within the field rule, beyond what bcrypt accepts.
	code, body := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "password": strings.Repeat("é", 40), "passkey": "invite",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", code, body)
	}
	if errorOf(body) != domain.ErrPasswordTooLong.Error() {
		t.Fatalf("unexpected error %q", errorOf(body))
	}

	// The single-use passkey is still available.
	if code := s.register(t, "alice", "invite"); code != http.StatusCreated {
		t.Fatalf("register after rejection: %d", code)
	}
}

func TestRouter_LoginFailuresLookAlike(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "friends")

	c1, b1 := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	c2, b2 := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "nobody", "password": "wrong"})

	if c1 != http.StatusUnauthorized || c2 != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", c1, c2)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("responses differ: %s vs %s", b1, b2)
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/messages"},
		{http.MethodPost, "/messages"},
		{http.MethodDelete, "/messages"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/users/alice/status"},
	} {
		code, body := s.do(t, tc.method, tc.path, "", nil)
		if code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, code)
		}
		if errorOf(body) == "" {
			t.Fatalf("%s %s: expected error envelope, got %s", tc.method, tc.path, body)
		}
	}

	code, body := s.do(t, http.MethodGet, "/messages", "not-a-jwt", nil)
	if code != http.StatusUnauthorized || errorOf(body) != "invalid token" {
		t.Fatalf("garbage token: %d %s", code, body)
	}
}

func TestRouter_ImpersonationForbidden(t *testing.T) {
	s := newTestServer(t)
	for _, u := range []string{"alice", "bob", "carol"} {
		s.register(t, u, "friends")
	}
	carol := s.login(t, "carol")

	code, _ := s.do(t, http.MethodPost, "/messages", carol, map[string]string{"sender": "alice", "receiver": "bob", "message": "spoof"})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	code, _ = s.do(t, http.MethodGet, "/messages?sender=alice&receiver=bob", carol, nil)
	if code != http.StatusForbidden {
		t.Fatalf("reading a foreign conversation: expected 403, got %d", code)
	}
	code, _ = s.do(t, http.MethodPost, "/messages", carol, map[string]string{"sender": "carol", "receiver": "nobody", "message": "hello?"})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown receiver: expected 400, got %d", code)
	}
}

func wsURL(s *testServer, query string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws" + query
}

func TestRouter_RealtimeDelivery(t *testing.T) {
	s := newTestServer(t)
	for _, u := range []string{"alice", "bob", "carol"} {
		s.register(t, u, "friends")
	}
	alice, bob, carol := s.login(t, "alice"), s.login(t, "bob"), s.login(t, "carol")

	bobConn, _, err := websocket.DefaultDialer.Dial(wsURL(s, "?token="+bob), nil)
	if err != nil {
		t.Fatalf("dial as bob: %v", err)
	}
	defer bobConn.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+carol)
	carolConn, _, err := websocket.DefaultDialer.Dial(wsURL(s, ""), header)
	if err != nil {
		t.Fatalf("dial as carol: %v", err)
	}
	defer carolConn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	s.do(t, http.MethodPost, "/messages", alice, map[string]string{"sender": "alice", "receiver": "bob", "message": "psst"})

	_ = bobConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := bobConn.ReadMessage()
	if err != nil {
		t.Fatalf("bob read: %v", err)
	}
	var frame struct {
		Event string         `json:"event"`
		Data  domain.Message `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event != "new_message" || frame.Data.Text != "psst" {
		t.Fatalf("unexpected frame %s (%v)", raw, err)
	}

	_ = carolConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, raw, err := carolConn.ReadMessage(); err == nil {
		t.Fatalf("carol must not receive alice and bob's message, got %s", raw)
	}
}

func TestRouter_RealtimeRequiresToken(t *testing.T) {
	s := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(s, ""), nil)
	if err == nil {
		t.Fatal("expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(s, "?token=forged"), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401, got %v", err)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		if code, body := s.do(t, http.MethodGet, path, "", nil); code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, code, body)
		}
	}
}
