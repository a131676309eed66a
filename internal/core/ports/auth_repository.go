package ports

import (
	"context"
	"time"

	"github.com/pairchat/pairchat/internal/core/domain"
)

// UserRepository defines persistence for user accounts and presence.
type UserRepository interface {
	// Create inserts a new user. Returns domain.ErrUserExists on a duplicate username.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	// SetOnline flips the presence flag in a single atomic update.
	SetOnline(ctx context.Context, id string) error
	// SetOffline clears the presence flag and records the logout time.
	SetOffline(ctx context.Context, id string, at time.Time) error
}

// PasskeyRepository defines persistence for registration passkeys.
type PasskeyRepository interface {
	// FindActive returns the active passkey with the given key, or domain.ErrInvalidPasskey.
	FindActive(ctx context.Context, key string) (*domain.Passkey, error)
	// Consume deactivates an active passkey. It returns domain.ErrInvalidPasskey
	// when the passkey was already consumed by a concurrent registration.
	Consume(ctx context.Context, id string, at time.Time) error
	// Release re-activates a consumed passkey.
	Release(ctx context.Context, id string) error
	Create(ctx context.Context, p *domain.Passkey) (*domain.Passkey, error)
	List(ctx context.Context) ([]*domain.Passkey, error)
	Disable(ctx context.Context, key string) error
}

// TokenRevoker keeps a list of bearer tokens invalidated before their expiry.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
