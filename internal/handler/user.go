package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/contacts-api/internal/model"
	"github.com/iliyamo/contacts-api/internal/repository"
	"github.com/iliyamo/contacts-api/internal/service"
)

// UserHandler serves the profile and email-confirmation endpoints.
type UserHandler struct {
	Auth *service.AuthService
}

func NewUserHandler(auth *service.AuthService) *UserHandler {
	return &UserHandler{Auth: auth}
}

type requestEmailReq struct {
	Email string `json:"email"`
}

// currentUser pulls the authenticated user stored by the CurrentUser
// middleware out of the Echo context.
func currentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get("user").(model.User)
	return u, ok
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// ConfirmEmail flips the confirmed flag for the address carried by the
// signed token in the URL.  Both an invalid token and an address with no
// account answer 400 so the link leaks nothing about registered emails.
func (h *UserHandler) ConfirmEmail(c echo.Context) error {
	token := c.Param("token")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	already, err := h.Auth.ConfirmEmail(ctx, token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "verification error"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
	}
	if already {
		return c.JSON(http.StatusOK, echo.Map{"message": "email already confirmed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email confirmed"})
}

// RequestEmail re-sends the confirmation email for an unconfirmed account.
func (h *UserHandler) RequestEmail(c echo.Context) error {
	var req requestEmailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	already, err := h.Auth.RequestConfirmEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	if already {
		return c.JSON(http.StatusOK, echo.Map{"message": "email already confirmed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email confirm request sent"})
}

// Moderator greets users holding the MODERATOR or ADMIN role.  The route
// exists to exercise role enforcement end to end.
func (h *UserHandler) Moderator(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("Hello, %s!", u.Username)})
}

// Admin greets users holding the ADMIN role.
func (h *UserHandler) Admin(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("Hello, %s!", u.Username)})
}
