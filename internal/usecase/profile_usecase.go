package usecase

import (
	"context"

	"phonebook/internal/domain/entity"
)

// UpdateAvatarInput is an uploaded avatar image.
type UpdateAvatarInput struct {
	ContentType string
	Data        []byte
}

// ProfileUsecase exposes the authenticated user's own profile.
type ProfileUsecase interface {
	Me(ctx context.Context, principal *entity.User) (*entity.User, error)
	UpdateAvatar(ctx context.Context, principal *entity.User, input UpdateAvatarInput) (*entity.User, error)
}
