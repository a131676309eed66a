package client

import (
	"sync"

	"github.com/pairchat/pairchat/internal/core/domain"
)

// State is the shell's view of the open conversation. It is shared by the
// prompt, the pollers and the socket, so every access goes through mu.
type State struct {
	mu         sync.Mutex
	me         string
	peer       string
	messages   []domain.Message
	seen       map[string]struct{}
	connected  bool
	peerStatus *domain.UserStatus
}

func NewState() *State {
	return &State{seen: make(map[string]struct{})}
}

// Login sets the local identity and forgets any open conversation.
func (s *State) Login(me string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.me = me
	s.resetConversation("")
}

func (s *State) Logout() {
	s.Login("")
}

// Open switches to the conversation with peer and drops the previous one.
func (s *State) Open(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetConversation(peer)
}

func (s *State) resetConversation(peer string) {
	s.peer = peer
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.peerStatus = nil
}

func (s *State) Me() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.me
}

func (s *State) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Messages returns a copy of the open conversation.
func (s *State) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Replace installs a freshly fetched history for the pair (me, peer) and
// returns the messages that were not known before. Ids stay known until the
// conversation is cleared or closed, so a poll racing a pushed message never
// reports it twice. A history fetched for a conversation that is no longer
// open is ignored.
func (s *State) Replace(me, peer string, history []domain.Message) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if me != s.me || peer != s.peer {
		return nil
	}

	var fresh []domain.Message
	for _, m := range history {
		if _, ok := s.seen[m.ID]; !ok {
			s.seen[m.ID] = struct{}{}
			fresh = append(fresh, m)
		}
	}
	s.messages = append([]domain.Message(nil), history...)
	return fresh
}

// Apply reconciles a realtime event with the open conversation and reports
// whether it changed anything.
func (s *State) Apply(ev domain.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.me == "" || s.peer == "" {
		return false
	}

	switch ev.Type {
	case domain.EventNewMessage:
		m := ev.Message
		if m == nil || !m.BelongsTo(s.me, s.peer) {
			return false
		}
		if _, dup := s.seen[m.ID]; dup {
			return false
		}
		s.seen[m.ID] = struct{}{}
		s.messages = append(s.messages, *m)
		return true
	case domain.EventChatCleared:
		c := ev.Cleared
		if c == nil || domain.ConversationKey(c.Sender, c.Receiver) != domain.ConversationKey(s.me, s.peer) {
			return false
		}
		s.messages = nil
		s.seen = make(map[string]struct{})
		return true
	}
	return false
}

func (s *State) SetConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

func (s *State) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SetPeerStatus records st if it still describes the open peer.
func (s *State) SetPeerStatus(st *domain.UserStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st != nil && st.Username == s.peer {
		s.peerStatus = st
	}
}

func (s *State) PeerStatus() *domain.UserStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerStatus
}
