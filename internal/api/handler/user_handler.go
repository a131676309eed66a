package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pairchat/pairchat/internal/core/ports"
)

type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// Status handles GET /users/:username/status.
//
// @Summary      Get presence of a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  domain.UserStatus
// @Failure      401       {object}  errorResponse
// @Failure      404       {object}  errorResponse
// @Failure      500       {object}  errorResponse
// @Router       /users/{username}/status [get]
func (h *UserHandler) Status(c echo.Context) error {
	st, err := h.authService.Status(c.Request().Context(), c.Param("username"))
	if err != nil {
		return fmt.Errorf("user status: %w", err)
	}
	return c.JSON(http.StatusOK, st)
}
