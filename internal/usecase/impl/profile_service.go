package impl

import (
	"context"
	"log/slog"

	"phonebook/config"
	deliverycontext "phonebook/internal/delivery/context"
	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/domain/repository"
	"phonebook/internal/domain/service"
	"phonebook/internal/usecase"
	"phonebook/internal/util"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const avatarKeyPrefix = "avatars/"

// profileService implements the ProfileUsecase interface.
type profileService struct {
	userRepo       repository.UserRepository
	cache          service.SessionCache
	storage        service.AvatarStorage
	maxAvatarBytes int64
	logger         *slog.Logger
}

// ProfileServiceParams holds dependencies for ProfileService, injected by Fx.
type ProfileServiceParams struct {
	fx.In

	UserRepo repository.UserRepository
	Cache    service.SessionCache
	Storage  service.AvatarStorage
	Config   *config.Config
	Logger   *slog.Logger
}

// NewProfileService is the constructor for profileService.
func NewProfileService(params ProfileServiceParams) usecase.ProfileUsecase {
	var maxBytes int64
	if params.Config != nil && params.Config.Avatar != nil {
		maxBytes = params.Config.Avatar.MaxBytes
	}

	return &profileService{
		userRepo:       params.UserRepo,
		cache:          params.Cache,
		storage:        params.Storage,
		maxAvatarBytes: maxBytes,
		logger:         params.Logger,
	}
}

func (srv *profileService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Me returns the already resolved principal.
func (srv *profileService) Me(_ context.Context, principal *entity.User) (*entity.User, error) {
	if principal == nil {
		return nil, domainerrors.ErrUnknownPrincipal
	}

	return principal, nil
}

// UpdateAvatar uploads the image under a key derived from the email and stores its URL on the user.
func (srv *profileService) UpdateAvatar(ctx context.Context, principal *entity.User, input usecase.UpdateAvatarInput) (*entity.User, error) {
	if principal == nil {
		return nil, domainerrors.ErrUnknownPrincipal
	}
	if len(input.Data) == 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("avatar file is empty")
	}
	if srv.maxAvatarBytes > 0 && int64(len(input.Data)) > srv.maxAvatarBytes {
		return nil, domainerrors.ErrAvatarTooLarge.WithDetails("avatar must not exceed " + util.FormatBytes(srv.maxAvatarBytes))
	}

	url, err := srv.storage.Upload(ctx, avatarKey(principal.Email), input.ContentType, input.Data)
	if err != nil {
		srv.log(ctx).Error("Avatar upload failed", slog.String("email", principal.Email), slog.Any("error", err))

		return nil, domainerrors.ErrAvatarUploadFailed.WrapMessage(err.Error())
	}

	user, err := srv.userRepo.FindByEmail(ctx, principal.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUnknownPrincipal.WrapMessage("avatar for unknown user")
		}

		return nil, upstreamError(err, "failed to find user")
	}

	if err := srv.userRepo.SetAvatarURL(ctx, user.Email, url); err != nil {
		return nil, upstreamError(err, "failed to save avatar url")
	}
	user.AvatarURL = &url

	if err := srv.cache.Invalidate(ctx, user.Email); err != nil {
		srv.log(ctx).Warn("Failed to invalidate cached principal", slog.String("email", user.Email), slog.Any("error", err))
	}

	srv.log(ctx).Info("Avatar updated", slog.Any("userID", user.ID))

	return user, nil
}

func avatarKey(email string) string {
	return avatarKeyPrefix + util.ShortDigest(email, 12)
}
