package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/soggo/bounty/internal/repo"
	"github.com/soggo/bounty/internal/route"
	"github.com/soggo/bounty/internal/service/auth"
)

const UserIDKey = "user_id"

type AuthMiddleware struct {
	Auth *auth.Service
	Repo *repo.GormRepo
}

func NewAuthMiddleware(svc *auth.Service, r *repo.GormRepo) *AuthMiddleware {
	return &AuthMiddleware{Auth: svc, Repo: r}
}

type validatorFunc func(c echo.Context, userID uuid.UUID) error

func (m *AuthMiddleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, nil)
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireWithValidator(next, func(c echo.Context, userID uuid.UUID) error {
		role, err := m.Repo.RoleForUser(c.Request().Context(), userID)
		if err != nil || role != route.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *AuthMiddleware) requireWithValidator(next echo.HandlerFunc, validator validatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		userID, err := m.Auth.VerifyAccess(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if validator != nil {
			if err := validator(c, userID); err != nil {
				return err
			}
		}

		c.Set(UserIDKey, userID)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

// UserID reads the id stored by RequireUser/RequireAdmin.
func UserID(c echo.Context) (uuid.UUID, bool) {
	v := c.Get(UserIDKey)
	id, ok := v.(uuid.UUID)
	return id, ok
}
