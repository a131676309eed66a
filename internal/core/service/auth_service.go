package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pairchat/pairchat/internal/core/domain"
	"github.com/pairchat/pairchat/internal/core/ports"
)

// dummyHash is compared against when the username is unknown so that failed
// logins take the same time whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("pairchat-dummy-password"), bcrypt.DefaultCost)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// AuthService implements registration, login, logout, presence lookup and
// bearer-token authentication.
type AuthService struct {
	users    ports.UserRepository
	passkeys ports.PasskeyRepository
	tokens   *TokenService
	revoker  ports.TokenRevoker
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(users ports.UserRepository, passkeys ports.PasskeyRepository, tokens *TokenService, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		passkeys: passkeys,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
	}
}

// WithRevoker enables revocation of tokens on logout.
func (s *AuthService) WithRevoker(r ports.TokenRevoker) *AuthService {
	s.revoker = r
	return s
}

func (s *AuthService) Register(ctx context.Context, username, password, passkey string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	passkey = strings.TrimSpace(passkey)
	if username == "" || password == "" || passkey == "" {
		return nil, domain.ErrMissingFields
	}
	if len(password) > maxPasswordBytes {
		return nil, domain.ErrPasswordTooLong
	}

	exists, err := s.users.Exists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, domain.ErrUserExists
	}

	pk, err := s.passkeys.FindActive(ctx, passkey)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now().UTC()
	consumed := false
	if pk.SingleUse {
		if err := s.passkeys.Consume(ctx, pk.ID, now); err != nil {
			return nil, fmt.Errorf("register: consume passkey: %w", err)
		}
		consumed = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.release(ctx, pk, consumed)
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	created, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		s.release(ctx, pk, consumed)
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("username", created.Username).Str("passkey", pk.Label).Msg("user registered")
	return created, nil
}

// release undoes a passkey consumption when the registration it gated failed.
func (s *AuthService) release(ctx context.Context, pk *domain.Passkey, consumed bool) {
	if !consumed {
		return
	}
	if err := s.passkeys.Release(ctx, pk.ID); err != nil {
		s.log.Error().Err(err).Str("passkey_id", pk.ID).Msg("failed to release passkey after aborted registration")
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	if username == "" || password == "" {
		return "", nil, domain.ErrMissingFields
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	if err := s.users.SetOnline(ctx, user.ID); err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}
	user.Online = true

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("login: issue token: %w", err)
	}

	s.log.Info().Str("username", user.Username).Msg("user logged in")
	return token, user, nil
}

// Logout marks the caller offline. The bearer token stays valid until it
// expires unless a revoker is configured.
func (s *AuthService) Logout(ctx context.Context, who domain.Identity) (time.Time, error) {
	at := s.now().UTC()
	err := s.users.SetOffline(ctx, who.ID, at)
	if errors.Is(err, domain.ErrUserNotFound) {
		return time.Time{}, domain.ErrUnauthorized
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("logout: %w", err)
	}

	if s.revoker != nil && who.TokenID != "" {
		if err := s.revoker.Revoke(ctx, who.TokenID, who.ExpiresAt); err != nil {
			s.log.Warn().Err(err).Str("username", who.Username).Msg("failed to revoke token")
		}
	}

	s.log.Info().Str("username", who.Username).Msg("user logged out")
	return at, nil
}

func (s *AuthService) Status(ctx context.Context, username string) (*domain.UserStatus, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	st := user.Status()
	return &st, nil
}

// Authenticate verifies token and resolves its subject to an existing user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.log.Warn().Err(err).Msg("revocation check failed, rejecting token")
			return nil, domain.ErrInvalidToken
		}
		if revoked {
			return nil, domain.ErrInvalidToken
		}
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	who := &domain.Identity{ID: user.ID, Username: user.Username, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		who.ExpiresAt = claims.ExpiresAt.Time
	}
	return who, nil
}
