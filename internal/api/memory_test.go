package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/ports"
)

// memoryStore backs the router tests with in-memory users, passkeys and messages.
type memoryStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	passkeys map[string]*domain.Passkey
	messages []*domain.Message
	seq      int
}

func newMemoryStore(passkeys ...*domain.Passkey) *memoryStore {
	s := &memoryStore{
		users:    make(map[string]*domain.User),
		passkeys: make(map[string]*domain.Passkey),
	}
	for _, p := range passkeys {
		s.seq++
		p.ID = fmt.Sprintf("pk%d", s.seq)
		s.passkeys[p.Key] = p
	}
	return s
}

func (s *memoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

type memoryUsers struct{ *memoryStore }

func (r memoryUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; ok {
		return nil, domain.ErrUserExists
	}
	stored := *u
	stored.ID = r.nextID("u")
	r.users[u.Username] = &stored
	out := stored
	return &out, nil
}

func (r memoryUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r memoryUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r memoryUsers) Exists(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r memoryUsers) update(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			fn(u)
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (r memoryUsers) SetOnline(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) { u.Online = true })
}

func (r memoryUsers) SetOffline(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.Online = false
		u.LastLogoutAt = &at
	})
}

type memoryPasskeys struct{ *memoryStore }

func (r memoryPasskeys) FindActive(_ context.Context, key string) (*domain.Passkey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.passkeys[key]
	if !ok || !p.Active {
		return nil, domain.ErrInvalidPasskey
	}
	out := *p
	return &out, nil
}

func (r memoryPasskeys) setActive(id string, active bool, at *time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.passkeys {
		if p.ID == id && p.Active != active {
			p.Active = active
			p.ConsumedAt = at
			return true
		}
	}
	return false
}

func (r memoryPasskeys) Consume(_ context.Context, id string, at time.Time) error {
	if !r.setActive(id, false, &at) {
		return domain.ErrInvalidPasskey
	}
	return nil
}

func (r memoryPasskeys) Release(_ context.Context, id string) error {
	r.setActive(id, true, nil)
	return nil
}

func (r memoryPasskeys) Create(_ context.Context, p *domain.Passkey) (*domain.Passkey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passkeys[p.Key] = p
	return p, nil
}

func (r memoryPasskeys) List(context.Context) ([]*domain.Passkey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Passkey, 0, len(r.passkeys))
	for _, p := range r.passkeys {
		out = append(out, p)
	}
	return out, nil
}

func (r memoryPasskeys) Disable(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.passkeys[key]; ok {
		p.Active = false
	}
	return nil
}

type memoryMessages struct{ *memoryStore }

func (r memoryMessages) Create(_ context.Context, m *domain.Message) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *m
	stored.ID = fmt.Sprintf("m%04d", r.seq+1)
	r.seq++
	r.messages = append(r.messages, &stored)
	out := stored
	return &out, nil
}

func (r memoryMessages) Find(_ context.Context, f ports.MessageFilter) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Message, 0)
	for _, m := range r.messages {
		if (f.Peer != "" && m.BelongsTo(f.Participant, f.Peer)) || (f.Peer == "" && m.Involves(f.Participant)) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r memoryMessages) DeleteConversation(_ context.Context, a, b string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	var n int64
	for _, m := range r.messages {
		if m.BelongsTo(a, b) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return n, nil
}
