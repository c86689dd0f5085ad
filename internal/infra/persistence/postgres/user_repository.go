// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/domain/repository"
	"phonebook/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// userRepository implements the domain.UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
// It returns the repository as a domain.UserRepository interface, adhering to dependency inversion.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByEmail retrieves a single user by their email address.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).
		Where("email = ?", email).
		First(&userM).Error

	if err != nil {
		// If the error is 'record not found', return a domain-specific error.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	// Map the persistence model back to a pure domain entity before returning.
	return toUserDomain(&userM), nil
}

// Create persists a new user entity to the database.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		// Convert PostgreSQL errors to domain errors
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already exists")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	// Update the user entity with the generated timestamps
	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// SetRefreshToken overwrites the refresh token unconditionally; used when a new session is opened.
func (repo *userRepository) SetRefreshToken(ctx context.Context, email string, token string) error {
	return repo.updateColumn(ctx, email, "refresh_token", token, "failed to set refresh token")
}

// ClearRefreshToken sets the refresh token to NULL.
func (repo *userRepository) ClearRefreshToken(ctx context.Context, email string) error {
	return repo.updateColumn(ctx, email, "refresh_token", gorm.Expr("NULL"), "failed to clear refresh token")
}

// MarkConfirmed flips the confirmed flag on.
func (repo *userRepository) MarkConfirmed(ctx context.Context, email string) error {
	return repo.updateColumn(ctx, email, "confirmed", true, "failed to confirm user")
}

// SetAvatarURL stores the avatar location.
func (repo *userRepository) SetAvatarURL(ctx context.Context, email string, avatarURL string) error {
	return repo.updateColumn(ctx, email, "avatar", avatarURL, "failed to set avatar")
}

// updateColumn writes a single column plus updated_at, leaving the rest of the row untouched.
func (repo *userRepository) updateColumn(ctx context.Context, email, column string, value any, message string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("email = ?", email).
		Updates(map[string]any{
			column:       value,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, message)
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

// CompareAndSwapRefreshToken rotates the refresh token only if the stored value still equals expected.
func (repo *userRepository) CompareAndSwapRefreshToken(ctx context.Context, email string, expected string, next *string) (bool, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("email = ? AND refresh_token = ?", email, expected).
		Updates(map[string]any{
			"refresh_token": nullableString(next),
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to swap refresh token")
	}

	return result.RowsAffected == 1, nil
}

func nullableString(s *string) any {
	if s == nil {
		return gorm.Expr("NULL")
	}

	return *s
}

// --- Mapper Functions ---
// These helpers convert between domain entities and persistence models.

// toUserDomain converts a GORM UserModel to a domain User entity.
func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	return &entity.User{
		ID:           data.ID,
		Email:        data.Email,
		Name:         data.Username,
		PasswordHash: data.Password,
		Role:         entity.Role(data.Role),
		Confirmed:    data.Confirmed,
		RefreshToken: data.RefreshToken,
		AvatarURL:    data.Avatar,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}

// fromUserDomain converts a domain User entity to a GORM UserModel for persistence.
func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	return &model.UserModel{
		ID:           data.ID,
		Email:        data.Email,
		Username:     data.Name,
		Password:     data.PasswordHash,
		Role:         data.Role.String(),
		Confirmed:    data.Confirmed,
		RefreshToken: data.RefreshToken,
		Avatar:       data.AvatarURL,
	}
}
