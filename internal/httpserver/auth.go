package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/soggo/bounty/internal/events"
	"github.com/soggo/bounty/internal/logging"
	authmw "github.com/soggo/bounty/internal/middleware/auth"
	"github.com/soggo/bounty/internal/repo"
	"github.com/soggo/bounty/internal/service/auth"
)

type AuthHTTP struct {
	Svc    *auth.Service
	Repo   *repo.GormRepo
	Events *events.Producer
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    any    `json:"expires_at"`
	User         any    `json:"user"`
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrBadEmail), errors.Is(err, auth.ErrWeakPassword):
			l.Warn("register_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, repo.ErrUserAlreadyExists):
			l.Warn("register_error", "status", 409, "email", req.Email)
			return echo.NewHTTPError(http.StatusConflict, "an account with this email already exists")
		default:
			l.Error("register_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot register")
		}
	}

	// A sign-up immediately yields a session, so the new customer lands
	// signed in.
	_, pair, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "post-register login failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot register")
	}

	h.Events.Publish(ctx, events.TopicUserEvents, user.ID.String(), events.Event{
		Type:    "user_registered",
		Payload: map[string]any{"id": user.ID, "email": user.Email},
	})

	l.Info("register_success", "id", user.ID)
	return c.JSON(http.StatusCreated, sessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, pair, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidCredentials) {
			l.Warn("login_error", "status", 401, "email", req.Email)
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid login credentials")
		}
		l.Error("login_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot login")
	}

	h.Events.Publish(ctx, events.TopicUserEvents, user.ID.String(), events.Event{
		Type:    "user_logged_in",
		Payload: map[string]any{"id": user.ID},
	})

	l.Info("login_success", "id", user.ID)
	return c.JSON(http.StatusOK, sessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		l.Warn("refresh_error", "status", 400, "reason", "missing refresh token")
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	user, pair, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			l.Warn("refresh_error", "status", 401, "reason", "token expired")
			return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
		case errors.Is(err, auth.ErrTokenInvalid):
			l.Warn("refresh_error", "status", 401, "reason", "invalid token")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		default:
			l.Error("refresh_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot refresh")
		}
	}

	l.Info("refresh_success", "id", user.ID)
	return c.JSON(http.StatusOK, sessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.Bind(&req)

	if err := h.Svc.Logout(ctx, req.RefreshToken); err != nil {
		l.Warn("logout_error", "error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	user, err := h.Repo.UserByID(ctx, userID)
	if err != nil {
		l.Error("me_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load user")
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) Role(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.role")

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	role, err := h.Repo.RoleForUser(ctx, userID)
	if err != nil {
		l.Warn("role_lookup_failed", "id", userID, "error", err)
		role = "customer"
	}
	return c.JSON(http.StatusOK, map[string]string{"role": role})
}
