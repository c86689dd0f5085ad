// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"phonebook/internal/domain/entity"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository is the durable principal store.
// Lookups return ErrUserNotFound when the user is absent; any other error means the store could not answer.
type UserRepository interface {
	// FindByEmail retrieves a single user by their email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Create persists a new user entity to the storage.
	Create(ctx context.Context, user *entity.User) error

	// Each writer below touches only its own column, so concurrent writers never restore stale values.

	// SetRefreshToken stores token as the only valid refresh token, replacing any previous one.
	SetRefreshToken(ctx context.Context, email string, token string) error

	// ClearRefreshToken removes the stored refresh token, ending the session.
	ClearRefreshToken(ctx context.Context, email string) error

	// MarkConfirmed sets the confirmed flag.
	MarkConfirmed(ctx context.Context, email string) error

	// SetAvatarURL stores the avatar location.
	SetAvatarURL(ctx context.Context, email string, avatarURL string) error

	// CompareAndSwapRefreshToken replaces the stored refresh token with next only if it currently equals expected.
	// It reports whether the swap happened.
	CompareAndSwapRefreshToken(ctx context.Context, email string, expected string, next *string) (bool, error)
}
