package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/core/domain"
)

const (
	defaultHistoryEvery = 2 * time.Second
	defaultStatusEvery  = 5 * time.Second
)

const helpText = `commands:
  register [username]   create an account (asks for password and passkey)
  login [username]      sign in
  logout                sign out and forget the session
  open <peer>           open the conversation with peer
  send <text>           send text to the open peer (bare text works too)
  clear                 delete the open conversation for both sides
  status                show connection and peer presence
  help                  show this text
  exit                  quit`

// Options configures a Shell. API and Store are required.
type Options struct {
	API   *API
	Store *SessionStore
	In    io.Reader
	Out   io.Writer
	// ReadPassword reads a secret without echo. When nil the password is read
	// as a plain line from In.
	ReadPassword func() ([]byte, error)
	Log          zerolog.Logger

	HistoryEvery time.Duration
	StatusEvery  time.Duration
}

// Shell is the interactive chat prompt.
type Shell struct {
	api    *API
	store  *SessionStore
	socket *Socket
	state  *State
	log    zerolog.Logger

	in           *bufio.Reader
	out          io.Writer
	outMu        sync.Mutex
	readPassword func() ([]byte, error)

	historyEvery time.Duration
	statusEvery  time.Duration

	bgMu       sync.Mutex
	stopSocket context.CancelFunc
	stopPolls  context.CancelFunc
	bg         sync.WaitGroup
}

func NewShell(opts Options) *Shell {
	s := &Shell{
		api:          opts.API,
		store:        opts.Store,
		socket:       NewSocket(opts.Log),
		state:        NewState(),
		log:          opts.Log,
		in:           bufio.NewReader(opts.In),
		out:          opts.Out,
		readPassword: opts.ReadPassword,
		historyEvery: opts.HistoryEvery,
		statusEvery:  opts.StatusEvery,
	}
	if s.historyEvery <= 0 {
		s.historyEvery = defaultHistoryEvery
	}
	if s.statusEvery <= 0 {
		s.statusEvery = defaultStatusEvery
	}
	return s
}

// Run reads commands until exit, EOF or ctx cancellation. Background
// pollers and the socket are stopped before it returns.
func (s *Shell) Run(ctx context.Context) error {
	defer s.stopBackground()

	sess, err := s.store.Load()
	if err != nil {
		s.printf("could not restore session: %v\n", err)
	}
	if sess != nil {
		s.resume(ctx, sess)
		s.printf("logged in as %s\n", sess.User.Username)
	}
	s.printf("type help for commands\n")

	for ctx.Err() == nil {
		s.prompt()
		line, err := s.in.ReadString('\n')
		if cmd := strings.TrimSpace(line); cmd != "" {
			if quit := s.exec(ctx, cmd); quit {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
	return ctx.Err()
}

func (s *Shell) exec(ctx context.Context, line string) (quit bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch name {
	case "help":
		s.printf("%s\n", helpText)
	case "register":
		err = s.register(ctx, arg)
	case "login":
		err = s.login(ctx, arg)
	case "logout":
		err = s.logout(ctx)
	case "open":
		err = s.open(ctx, arg)
	case "send":
		err = s.send(ctx, arg)
	case "clear":
		err = s.clear(ctx)
	case "status":
		err = s.status(ctx)
	case "exit", "quit":
		s.printf("bye\n")
		return true
	default:
		if s.state.Peer() == "" {
			s.printf("unknown command %q, type help\n", name)
			return false
		}
		err = s.send(ctx, line)
	}

	if err != nil {
		s.printf("error: %v\n", err)
	}
	return false
}

func (s *Shell) register(ctx context.Context, username string) error {
	username, password, err := s.credentials(username)
	if err != nil {
		return err
	}
	passkey, err := s.ask("passkey")
	if err != nil {
		return err
	}

	u, err := s.api.Register(ctx, username, password, passkey)
	if err != nil {
		return err
	}
	s.printf("registered %s, you can now login\n", u.Username)
	return nil
}

func (s *Shell) login(ctx context.Context, username string) error {
	username, password, err := s.credentials(username)
	if err != nil {
		return err
	}

	sess, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := s.store.Save(sess); err != nil {
		s.printf("warning: %v\n", err)
	}
	s.resume(ctx, sess)
	s.printf("logged in as %s\n", sess.User.Username)
	return nil
}

func (s *Shell) logout(ctx context.Context) error {
	if s.state.Me() == "" {
		return ErrNotLoggedIn
	}

	err := s.api.Logout(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("server logout failed")
	}

	s.stopBackground()
	s.api.SetToken("")
	s.state.Logout()
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.printf("logged out\n")
	return nil
}

func (s *Shell) open(ctx context.Context, peer string) error {
	me := s.state.Me()
	if me == "" {
		return ErrNotLoggedIn
	}
	if peer == "" {
		return errors.New("usage: open <peer>")
	}

	s.state.Open(peer)
	history, err := s.api.Messages(ctx, me, peer)
	if err != nil {
		return err
	}

	s.printf("conversation with %s\n", peer)
	for _, m := range s.state.Replace(me, peer, history) {
		s.printMessage(m)
	}
	s.refreshStatus(ctx, peer)
	s.printf("%s is %s\n", peer, formatStatus(s.state.PeerStatus()))

	s.startPolls(ctx, me, peer)
	s.startSocket(ctx, peer)
	return nil
}

func (s *Shell) send(ctx context.Context, text string) error {
	me, peer := s.state.Me(), s.state.Peer()
	if me == "" {
		return ErrNotLoggedIn
	}
	if peer == "" {
		return errors.New("open a conversation first")
	}
	if text == "" {
		return errors.New("usage: send <text>")
	}

	m, err := s.api.Send(ctx, me, peer, text)
	if err != nil {
		return err
	}
	if s.state.Apply(domain.NewMessageEvent(m)) {
		s.printMessage(*m)
	}
	return nil
}

func (s *Shell) clear(ctx context.Context) error {
	me, peer := s.state.Me(), s.state.Peer()
	if me == "" {
		return ErrNotLoggedIn
	}
	if peer == "" {
		return errors.New("open a conversation first")
	}

	n, err := s.api.Clear(ctx, me, peer)
	if err != nil {
		return err
	}
	s.state.Apply(domain.ChatClearedEvent(me, peer, n))
	s.printf("cleared %d messages\n", n)
	return nil
}

func (s *Shell) status(ctx context.Context) error {
	me := s.state.Me()
	if me == "" {
		s.printf("not logged in\n")
		return nil
	}

	conn := "disconnected"
	if s.state.Connected() {
		conn = "connected"
	}
	s.printf("logged in as %s, realtime %s\n", me, conn)

	if peer := s.state.Peer(); peer != "" {
		s.refreshStatus(ctx, peer)
		s.printf("%s is %s\n", peer, formatStatus(s.state.PeerStatus()))
	}
	return nil
}

func (s *Shell) resume(ctx context.Context, sess *Session) {
	s.stopBackground()
	s.api.SetToken(sess.Token)
	s.state.Login(sess.User.Username)
	s.startSocket(ctx, "")
}

func (s *Shell) startSocket(ctx context.Context, peer string) {
	target, err := SocketURL(s.api.BaseURL(), s.api.Token(), peer)
	if err != nil {
		s.printf("realtime disabled: %v\n", err)
		return
	}

	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.stopSocket != nil {
		s.stopSocket()
	}
	sctx, cancel := context.WithCancel(ctx)
	s.stopSocket = cancel

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.socket.Run(sctx, target, &socketEvents{ctx: sctx, shell: s})
	}()
}

func (s *Shell) startPolls(ctx context.Context, me, peer string) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.stopPolls != nil {
		s.stopPolls()
	}
	pctx, cancel := context.WithCancel(ctx)
	s.stopPolls = cancel

	s.bg.Add(2)
	go func() {
		defer s.bg.Done()
		every(pctx, s.historyEvery, func() { s.refreshHistory(pctx, me, peer) })
	}()
	go func() {
		defer s.bg.Done()
		every(pctx, s.statusEvery, func() { s.refreshStatus(pctx, peer) })
	}()
}

func (s *Shell) stopBackground() {
	s.bgMu.Lock()
	if s.stopSocket != nil {
		s.stopSocket()
		s.stopSocket = nil
	}
	if s.stopPolls != nil {
		s.stopPolls()
		s.stopPolls = nil
	}
	s.bgMu.Unlock()
	s.bg.Wait()
	s.state.SetConnected(false)
}

func (s *Shell) refreshHistory(ctx context.Context, me, peer string) {
	history, err := s.api.Messages(ctx, me, peer)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Debug().Err(err).Msg("history poll failed")
		}
		return
	}
	for _, m := range s.state.Replace(me, peer, history) {
		s.printMessage(m)
	}
}

func (s *Shell) refreshStatus(ctx context.Context, peer string) {
	st, err := s.api.Status(ctx, peer)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Debug().Err(err).Str("peer", peer).Msg("status poll failed")
		}
		return
	}
	s.state.SetPeerStatus(st)
}

// socketEvents ties socket callbacks to the connection generation that
// produced them, so a replaced socket cannot overwrite the current state.
type socketEvents struct {
	ctx   context.Context
	shell *Shell
}

func (e *socketEvents) OnEvent(ev domain.Event) {
	if e.ctx.Err() != nil {
		return
	}
	s := e.shell
	if !s.state.Apply(ev) {
		return
	}
	switch ev.Type {
	case domain.EventNewMessage:
		s.printMessage(*ev.Message)
	case domain.EventChatCleared:
		if ev.Cleared.Sender != s.state.Me() {
			s.printf("%s cleared the conversation\n", ev.Cleared.Sender)
		}
	}
}

func (e *socketEvents) OnConnection(connected bool) {
	if e.ctx.Err() != nil {
		return
	}
	s := e.shell
	if s.state.Connected() == connected {
		return
	}
	s.state.SetConnected(connected)
	if connected {
		s.log.Debug().Msg("realtime connected")
		return
	}
	s.printf("realtime disconnected, reconnecting\n")
}

func (s *Shell) credentials(username string) (string, string, error) {
	var err error
	if username == "" {
		if username, err = s.ask("username"); err != nil {
			return "", "", err
		}
	}
	password, err := s.askPassword()
	if err != nil {
		return "", "", err
	}
	if username == "" || password == "" {
		return "", "", errors.New("username and password are required")
	}
	return username, password, nil
}

func (s *Shell) ask(label string) (string, error) {
	s.printf("%s: ", label)
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Shell) askPassword() (string, error) {
	if s.readPassword == nil {
		return s.ask("password")
	}
	s.printf("password: ")
	pw, err := s.readPassword()
	s.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (s *Shell) prompt() {
	me, peer := s.state.Me(), s.state.Peer()
	switch {
	case me == "":
		s.printf("> ")
	case peer == "":
		s.printf("%s> ", me)
	default:
		s.printf("%s@%s> ", me, peer)
	}
}

func (s *Shell) printMessage(m domain.Message) {
	s.printf("[%s] %s: %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.Sender, m.Text)
}

func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// formatStatus renders presence the way the prompt shows it.
func formatStatus(st *domain.UserStatus) string {
	switch {
	case st == nil:
		return "unknown"
	case st.Online:
		return "Online"
	case st.LastLogoutAt != nil:
		return "Last seen: " + st.LastLogoutAt.Local().Format(time.DateTime)
	default:
		return "Offline"
	}
}

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
