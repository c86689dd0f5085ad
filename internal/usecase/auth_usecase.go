// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"phonebook/internal/domain/entity"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created user.
type RegisterOutput struct {
	User *entity.User
}

// TokenPairOutput carries a freshly issued access and refresh token.
type TokenPairOutput struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// LoginOutput returns the generated tokens after a successful login.
type LoginOutput struct {
	TokenPairOutput
	User *entity.User
}

// ConfirmEmailOutput reports the outcome of an email confirmation.
type ConfirmEmailOutput struct {
	Email            string
	AlreadyConfirmed bool
}

// RequestConfirmationOutput reports whether the address was already confirmed.
type RequestConfirmationOutput struct {
	AlreadyConfirmed bool
}

// AuthUsecase issues and verifies tokens and resolves the current principal.
type AuthUsecase interface {
	Register(ctx context.Context, input RegisterInput, baseURL string) (*RegisterOutput, error)
	Authenticate(ctx context.Context, email, password string) (*LoginOutput, error)
	Refresh(ctx context.Context, presented string) (*TokenPairOutput, error)
	Logout(ctx context.Context, principal *entity.User) error

	// ResolveCurrentPrincipal maps an access token to its user, through the session cache.
	ResolveCurrentPrincipal(ctx context.Context, bearer string) (*entity.User, error)

	IssueEmailVerificationToken(email string) (string, error)
	ResolveEmailFromVerificationToken(token string) (string, error)
	ConfirmEmail(ctx context.Context, token string) (*ConfirmEmailOutput, error)
	RequestConfirmation(ctx context.Context, email, baseURL string) (*RequestConfirmationOutput, error)
}
