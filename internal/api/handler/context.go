package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pairchat/pairchat/internal/api/middleware"
	"github.com/pairchat/pairchat/internal/core/domain"
)

// ctxIdentity returns the caller injected by the Auth middleware. A missing
// identity means the route was registered without the middleware.
func ctxIdentity(c echo.Context) (*domain.Identity, error) {
	who, ok := middleware.IdentityFrom(c)
	if !ok || who.Username == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return who, nil
}
