package middleware

import (
	"log/slog"
	"strings"

	deliverycontext "phonebook/internal/delivery/context"
	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/usecase"

	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

// AuthMiddleware provides middleware for bearer authentication and role authorization.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC}
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", domainerrors.ErrInvalidToken.WrapMessage("authorization header is missing")
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", domainerrors.ErrInvalidToken.WrapMessage("authorization header must be a bearer token")
	}

	return strings.TrimSpace(token), nil
}

// Authenticate resolves the access token into the current principal.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := BearerToken(c)
		if err != nil {
			return err
		}

		user, err := m.authUC.ResolveCurrentPrincipal(c.Request().Context(), token)
		if err != nil {
			return err
		}

		c.Set(principalKey, user)
		deliverycontext.BindLogAttrs(c, slog.String("user_id", user.ID.String()))

		return next(c)
	}
}

// RequireRoles admits only principals whose role is in the gate.
// It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequireRoles(gate entity.RoleGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, _ := GetPrincipal(c)
			if err := gate.Authorize(principal); err != nil {
				return err
			}

			return next(c)
		}
	}
}

// GetPrincipal returns the user resolved by Authenticate.
func GetPrincipal(c echo.Context) (*entity.User, bool) {
	user, ok := c.Get(principalKey).(*entity.User)

	return user, ok && user != nil
}
