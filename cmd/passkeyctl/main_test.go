package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pairchat/pairchat/internal/core/domain"
)

type memoryPasskeys struct {
	keys []*domain.Passkey
}

func (m *memoryPasskeys) FindActive(context.Context, string) (*domain.Passkey, error) {
	return nil, domain.ErrInvalidPasskey
}
func (m *memoryPasskeys) Consume(context.Context, string, time.Time) error { return nil }
func (m *memoryPasskeys) Release(context.Context, string) error            { return nil }

func (m *memoryPasskeys) Create(_ context.Context, p *domain.Passkey) (*domain.Passkey, error) {
	m.keys = append(m.keys, p)
	return p, nil
}

func (m *memoryPasskeys) List(context.Context) ([]*domain.Passkey, error) { return m.keys, nil }

func (m *memoryPasskeys) Disable(_ context.Context, key string) error {
	for _, p := range m.keys {
		if p.Key == key {
			p.Active = false
			return nil
		}
	}
	return domain.ErrInvalidPasskey
}

func TestRun_CreateListDisable(t *testing.T) {
	repo := &memoryPasskeys{}
	var out bytes.Buffer

	if err := run(context.Background(), repo, []string{"create", "-key", "friends", "-label", "close friends"}, &out); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := run(context.Background(), repo, []string{"create", "-single-use"}, &out); err != nil {
		t.Fatalf("create generated: %v", err)
	}
	if len(repo.keys) != 2 || repo.keys[0].Key != "friends" || !repo.keys[0].Active || repo.keys[0].SingleUse {
		t.Fatalf("unexpected keys: %+v", repo.keys)
	}
	if repo.keys[1].Key == "" || !repo.keys[1].SingleUse {
		t.Fatalf("expected a generated single-use key, got %+v", repo.keys[1])
	}

	out.Reset()
	if err := run(context.Background(), repo, []string{"list"}, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "friends") || !strings.Contains(out.String(), "close friends") {
		t.Fatalf("list output missing key: %q", out.String())
	}

	if err := run(context.Background(), repo, []string{"disable", "friends"}, &out); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if repo.keys[0].Active {
		t.Fatalf("passkey must be inactive after disable")
	}
	if err := run(context.Background(), repo, []string{"disable", "nope"}, &out); !errors.Is(err, domain.ErrInvalidPasskey) {
		t.Fatalf("expected ErrInvalidPasskey, got %v", err)
	}
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"rotate"}, {"disable"}} {
		if err := run(context.Background(), &memoryPasskeys{}, args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Errorf("%v: expected usage error, got %v", args, err)
		}
	}
}
