package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pairchat/pairchat/internal/core/domain"
)

const identityKey = "identity"

// Authenticator resolves a bearer token to the user it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

// Auth validates the bearer token of the Authorization header and injects the
// caller's identity into the context.
func Auth(authn Authenticator) echo.MiddlewareFunc {
	return authenticate(authn, false)
}

// WebSocketAuth behaves like Auth and additionally accepts the token as the
// "token" query parameter, since browsers cannot set headers on a WebSocket
// handshake.
func WebSocketAuth(authn Authenticator) echo.MiddlewareFunc {
	return authenticate(authn, true)
}

func authenticate(authn Authenticator, allowQuery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil && allowQuery && c.QueryParam("token") != "" {
				token, err = c.QueryParam("token"), nil
			}
			if err != nil {
				return err
			}

			who, err := authn.Authenticate(c.Request().Context(), token)
			if err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}

			c.Set(identityKey, who)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// IdentityFrom returns the identity injected by Auth or WebSocketAuth.
func IdentityFrom(c echo.Context) (*domain.Identity, bool) {
	who, ok := c.Get(identityKey).(*domain.Identity)
	return who, ok && who != nil
}

// SetIdentity attaches who to c. Used by tests of handlers behind Auth.
func SetIdentity(c echo.Context, who *domain.Identity) {
	c.Set(identityKey, who)
}
