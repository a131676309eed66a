package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories shared by the service tests
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users     map[string]*domain.User // keyed by username
	nextID    int
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, exists := r.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	r.nextID++
	stored := cloneUser(user)
	stored.ID = fmt.Sprintf("u%d", r.nextID)
	r.users[stored.Username] = stored
	return cloneUser(stored), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Exists(_ context.Context, username string) (bool, error) {
	_, ok := r.users[username]
	return ok, nil
}

func (r *stubUserRepo) SetOnline(_ context.Context, id string) error {
	for _, u := range r.users {
		if u.ID == id {
			u.Online = true
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (r *stubUserRepo) SetOffline(_ context.Context, id string, at time.Time) error {
	for _, u := range r.users {
		if u.ID == id {
			u.Online = false
			u.LastLogoutAt = &at
			return nil
		}
	}
	return domain.ErrUserNotFound
}

type stubPasskeyRepo struct {
	keys     map[string]*domain.Passkey // keyed by key
	released []string
}

func newStubPasskeyRepo(keys ...*domain.Passkey) *stubPasskeyRepo {
	r := &stubPasskeyRepo{keys: make(map[string]*domain.Passkey)}
	for i, k := range keys {
		if k.ID == "" {
			k.ID = fmt.Sprintf("pk%d", i+1)
		}
		r.keys[k.Key] = k
	}
	return r
}

func (r *stubPasskeyRepo) FindActive(_ context.Context, key string) (*domain.Passkey, error) {
	pk, ok := r.keys[key]
	if !ok || !pk.Active {
		return nil, domain.ErrInvalidPasskey
	}
	clone := *pk
	return &clone, nil
}

func (r *stubPasskeyRepo) Consume(_ context.Context, id string, at time.Time) error {
	for _, pk := range r.keys {
		if pk.ID == id && pk.Active {
			pk.Active = false
			pk.ConsumedAt = &at
			return nil
		}
	}
	return domain.ErrInvalidPasskey
}

func (r *stubPasskeyRepo) Release(_ context.Context, id string) error {
	for _, pk := range r.keys {
		if pk.ID == id {
			pk.Active = true
			pk.ConsumedAt = nil
			r.released = append(r.released, id)
		}
	}
	return nil
}

func (r *stubPasskeyRepo) Create(_ context.Context, p *domain.Passkey) (*domain.Passkey, error) {
	r.keys[p.Key] = p
	return p, nil
}

func (r *stubPasskeyRepo) List(_ context.Context) ([]*domain.Passkey, error) {
	out := make([]*domain.Passkey, 0, len(r.keys))
	for _, pk := range r.keys {
		out = append(out, pk)
	}
	return out, nil
}

func (r *stubPasskeyRepo) Disable(_ context.Context, key string) error {
	if pk, ok := r.keys[key]; ok {
		pk.Active = false
		return nil
	}
	return domain.ErrInvalidPasskey
}

type stubMessageRepo struct {
	msgs      []*domain.Message
	nextID    int
	createErr error
}

func (r *stubMessageRepo) Create(_ context.Context, m *domain.Message) (*domain.Message, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	clone := *m
	clone.ID = fmt.Sprintf("m%03d", r.nextID)
	r.msgs = append(r.msgs, &clone)
	out := clone
	return &out, nil
}

// Find applies the same filter the real Mongo query uses.
func (r *stubMessageRepo) Find(_ context.Context, f ports.MessageFilter) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, m := range r.msgs {
		if f.Peer != "" {
			if !m.BelongsTo(f.Participant, f.Peer) {
				continue
			}
		} else if !m.Involves(f.Participant) {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *stubMessageRepo) DeleteConversation(_ context.Context, a, b string) (int64, error) {
	kept := r.msgs[:0]
	var deleted int64
	for _, m := range r.msgs {
		if m.BelongsTo(a, b) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.msgs = kept
	return deleted, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type stubRevoker struct {
	revoked map[string]time.Time
	err     error
}

func (r *stubRevoker) Revoke(_ context.Context, id string, until time.Time) error {
	if r.err != nil {
		return r.err
	}
	if r.revoked == nil {
		r.revoked = make(map[string]time.Time)
	}
	r.revoked[id] = until
	return nil
}

func (r *stubRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[id]
	return ok, nil
}
