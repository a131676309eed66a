package ports

import (
	"context"
	"time"

	"github.com/pairchat/pairchat/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password, passkey string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	Logout(ctx context.Context, who domain.Identity) (time.Time, error)
	Status(ctx context.Context, username string) (*domain.UserStatus, error)
	// Authenticate resolves a bearer token to a live user.
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}
