// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"phonebook/internal/delivery/api/middleware"
	"phonebook/internal/delivery/api/response"
	"phonebook/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
	Logger *slog.Logger
}

// AuthHandler serves signup, login, token rotation and email confirmation.
type AuthHandler struct {
	authUC usecase.AuthUsecase
	logger *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC: params.AuthUC,
		logger: params.Logger,
	}
}

// SignupRequest represents the request body for registration.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=6,max=12"`
	Email    string `json:"email" validate:"required,email,max=250"`
	Password string `json:"password" validate:"required,min=6,max=8"`
}

// LoginRequest accepts JSON or an OAuth2 password form; username is the email.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// RequestEmailRequest asks for the confirmation email to be sent again.
type RequestEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Signup registers an unconfirmed user and mails the confirmation link.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.authUC.Register(c.Request().Context(), usecase.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, baseURL(c))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, newUserResponse(output.User))
}

// Login exchanges credentials for a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.authUC.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newTokenResponse(output.TokenPairOutput))
}

// RefreshToken rotates the refresh token presented as the bearer credential.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	token, err := middleware.BearerToken(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	output, err := h.authUC.Refresh(c.Request().Context(), token)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newTokenResponse(*output))
}

// ConfirmEmail marks the address in the path token as confirmed.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	output, err := h.authUC.ConfirmEmail(c.Request().Context(), c.Param("token"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	if output.AlreadyConfirmed {
		return response.Success(c, http.StatusOK, MessageResponse{Message: "Your email is already confirmed"})
	}

	return response.Success(c, http.StatusOK, MessageResponse{Message: "Email confirmed"})
}

// RequestEmail re-sends the confirmation email.
func (h *AuthHandler) RequestEmail(c echo.Context) error {
	var req RequestEmailRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid email input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.authUC.RequestConfirmation(c.Request().Context(), req.Email, baseURL(c))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	if output.AlreadyConfirmed {
		return response.Success(c, http.StatusOK, MessageResponse{Message: "Your email is already confirmed"})
	}

	return response.Success(c, http.StatusOK, MessageResponse{Message: "Check your email for confirmation."})
}

// Logout clears the principal's refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Could not validate credentials")
	}

	if err := h.authUC.Logout(c.Request().Context(), principal); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, MessageResponse{Message: "Successfully logged out"})
}

// baseURL is the externally visible root of this server, with a trailing slash.
func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host + "/"
}
