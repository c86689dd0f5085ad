// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"crypto/md5" //nolint:gosec // Gravatar addresses avatars by md5 of the email.
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"phonebook/config"
	deliverycontext "phonebook/internal/delivery/context"
	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/domain/repository"
	"phonebook/internal/domain/service"
	"phonebook/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	confirmationPath    = "api/auth/confirmed_email/"
	gravatarBaseURL     = "https://www.gravatar.com/avatar/"
	confirmationTimeout = 30 * time.Second
	dummyPassword       = "phonebook-no-such-account"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	cache     service.SessionCache
	snapshots service.SnapshotCodec
	hasher    service.PasswordHasher
	codec     service.TokenCodec
	mailer    service.Mailer
	logger    *slog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
	cacheTTL   time.Duration

	// dummyDigest is checked against for unknown emails so both rejections cost one hash.
	dummyDigest func() string

	now func() time.Time
	// async runs fire-and-forget work such as confirmation emails.
	async func(func())
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Cache     service.SessionCache
	Snapshots service.SnapshotCodec
	Hasher    service.PasswordHasher
	Codec     service.TokenCodec
	Mailer    service.Mailer
	Config    *config.Config
	Logger    *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return newAuthService(params)
}

func newAuthService(params AuthServiceParams) *authService {
	srv := &authService{
		txManager:  params.TxManager,
		userRepo:   params.UserRepo,
		cache:      params.Cache,
		snapshots:  params.Snapshots,
		hasher:     params.Hasher,
		codec:      params.Codec,
		mailer:     params.Mailer,
		logger:     params.Logger,
		accessTTL:  entity.DefaultAccessTTL,
		refreshTTL: entity.DefaultRefreshTTL,
		emailTTL:   entity.DefaultEmailVerificationTTL,
		cacheTTL:   900 * time.Second,
		now:        time.Now,
		async:      func(fn func()) { go fn() },
	}
	srv.dummyDigest = sync.OnceValue(func() string {
		digest, err := srv.hasher.Hash(dummyPassword)
		if err != nil {
			return ""
		}

		return digest
	})

	if cfg := params.Config; cfg != nil {
		if cfg.JWT != nil {
			srv.accessTTL = positiveOr(cfg.JWT.AccessTTL, srv.accessTTL)
			srv.refreshTTL = positiveOr(cfg.JWT.RefreshTTL, srv.refreshTTL)
			srv.emailTTL = positiveOr(cfg.JWT.EmailTTL, srv.emailTTL)
		}
		if cfg.Cache != nil {
			srv.cacheTTL = positiveOr(cfg.Cache.TTL, srv.cacheTTL)
		}
	}

	return srv
}

func positiveOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}

	return fallback
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates an unconfirmed user and sends the confirmation email in the background.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput, baseURL string) (*usecase.RegisterOutput, error) {
	srv.log(ctx).Info("Starting registration", slog.String("email", input.Email))

	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, domainerrors.ErrPasswordHashFailed.WrapMessage(err.Error())
	}

	user := &entity.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Name:         input.Username,
		PasswordHash: passwordHash,
		Role:         entity.RoleUser,
		Confirmed:    false,
		AvatarURL:    gravatarURL(input.Email),
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		_, err := userRepo.FindByEmail(ctx, input.Email)
		if err == nil {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("account already exists")
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return upstreamError(err, "failed to look up user")
		}

		return userRepo.Create(ctx, user)
	})
	if err != nil {
		if !isDomainError(err) {
			err = upstreamError(err, "failed to execute registration transaction")
		}
		srv.log(ctx).Warn("Registration failed", slog.String("email", input.Email), slog.Any("error", err))

		return nil, err
	}

	srv.sendConfirmation(ctx, user, baseURL)
	srv.log(ctx).Debug("Registration completed", slog.Any("userID", user.ID))

	return &usecase.RegisterOutput{User: user}, nil
}

// Authenticate verifies credentials against a fresh store read and opens a new session.
// The password is checked before the confirmation status so that status is never revealed to a caller without the password.
func (srv *authService) Authenticate(ctx context.Context, email, password string) (*usecase.LoginOutput, error) {
	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.hasher.Check(password, srv.dummyDigest())

			return nil, domainerrors.ErrInvalidCredentials.WrapMessage("unknown email")
		}

		return nil, upstreamError(err, "failed to find user")
	}

	if !srv.hasher.Check(password, user.PasswordHash) {
		srv.log(ctx).Info("Login rejected", slog.String("email", email), slog.String("reason", "password"))

		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("password mismatch")
	}

	if !user.Confirmed {
		return nil, domainerrors.ErrEmailNotConfirmed.WrapMessage("login before confirmation")
	}

	pair, err := srv.issuePair(user.Email)
	if err != nil {
		return nil, err
	}

	// Overwriting the stored token invalidates any previous session.
	if err := srv.userRepo.SetRefreshToken(ctx, user.Email, pair.RefreshToken); err != nil {
		return nil, upstreamError(err, "failed to persist refresh token")
	}
	user.RefreshToken = &pair.RefreshToken
	srv.invalidate(ctx, user.Email)

	srv.log(ctx).Info("Login succeeded", slog.Any("userID", user.ID))

	return &usecase.LoginOutput{TokenPairOutput: *pair, User: user}, nil
}

// Refresh rotates the refresh token. Presenting anything but the currently stored token revokes the session.
func (srv *authService) Refresh(ctx context.Context, presented string) (*usecase.TokenPairOutput, error) {
	claims, err := srv.decodeScoped(presented, entity.ScopeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := srv.userRepo.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUnknownPrincipal.WrapMessage("refresh for unknown user")
		}

		return nil, upstreamError(err, "failed to find user")
	}

	if !user.HasRefreshToken(presented) {
		srv.revoke(ctx, user.Email)

		return nil, domainerrors.ErrRefreshMismatch.WrapMessage("presented refresh token is not the stored one")
	}

	pair, err := srv.issuePair(user.Email)
	if err != nil {
		return nil, err
	}

	swapped, err := srv.userRepo.CompareAndSwapRefreshToken(ctx, user.Email, presented, &pair.RefreshToken)
	if err != nil {
		return nil, upstreamError(err, "failed to rotate refresh token")
	}
	if !swapped {
		// Another request rotated this token first.
		srv.revoke(ctx, user.Email)

		return nil, domainerrors.ErrRefreshMismatch.WrapMessage("refresh token rotated concurrently")
	}
	srv.invalidate(ctx, user.Email)

	return pair, nil
}

// Logout clears the stored refresh token.
func (srv *authService) Logout(ctx context.Context, principal *entity.User) error {
	if principal == nil {
		return domainerrors.ErrUnknownPrincipal
	}

	if err := srv.userRepo.ClearRefreshToken(ctx, principal.Email); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domainerrors.ErrUnknownPrincipal.WrapMessage("logout for unknown user")
		}

		return upstreamError(err, "failed to clear refresh token")
	}
	srv.invalidate(ctx, principal.Email)

	return nil
}

// ResolveCurrentPrincipal decodes an access token and loads its user, cache first.
// Cache failures degrade to the store; only the store decides whether the user exists.
func (srv *authService) ResolveCurrentPrincipal(ctx context.Context, bearer string) (*entity.User, error) {
	claims, err := srv.decodeScoped(bearer, entity.ScopeAccess)
	if err != nil {
		return nil, err
	}
	email := claims.Subject

	if user := srv.cachedPrincipal(ctx, email); user != nil {
		return user, nil
	}

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUnknownPrincipal.WrapMessage("token subject has no account")
		}

		return nil, upstreamError(err, "failed to find user")
	}

	snapshot, err := srv.snapshots.EncodeUser(user)
	if err != nil {
		srv.log(ctx).Warn("Failed to encode principal snapshot", slog.Any("error", err))

		return user, nil
	}
	if err := srv.cache.Put(ctx, email, snapshot, srv.cacheTTL); err != nil {
		srv.log(ctx).Warn("Failed to cache principal", slog.String("email", email), slog.Any("error", err))
	}

	return user, nil
}

func (srv *authService) cachedPrincipal(ctx context.Context, email string) *entity.User {
	snapshot, found, err := srv.cache.Get(ctx, email)
	if err != nil {
		srv.log(ctx).Warn("Session cache read failed, using store", slog.String("email", email), slog.Any("error", err))

		return nil
	}
	if !found {
		return nil
	}

	user, err := srv.snapshots.DecodeUser(snapshot)
	if err != nil || user.Email != email {
		srv.log(ctx).Warn("Discarding unreadable principal snapshot", slog.String("email", email), slog.Any("error", err))
		srv.invalidate(ctx, email)

		return nil
	}

	return user
}

// IssueEmailVerificationToken signs an email-verification token. The address is not checked.
func (srv *authService) IssueEmailVerificationToken(email string) (string, error) {
	token, err := srv.codec.Encode(entity.NewClaims(email, entity.ScopeEmailVerification, srv.now(), srv.emailTTL))
	if err != nil {
		return "", errors.Wrap(err, "failed to issue email verification token")
	}

	return token, nil
}

// ResolveEmailFromVerificationToken returns the address an email-verification token was issued for.
func (srv *authService) ResolveEmailFromVerificationToken(token string) (string, error) {
	claims, err := srv.codec.Decode(token)
	if err != nil {
		return "", domainerrors.ErrInvalidVerificationToken.WrapMessage(err.Error())
	}
	if claims.Scope != entity.ScopeEmailVerification || claims.Subject == "" {
		return "", domainerrors.ErrInvalidVerificationToken.WrapMessage("invalid scope for token")
	}

	return claims.Subject, nil
}

// ConfirmEmail marks the token's address as confirmed.
func (srv *authService) ConfirmEmail(ctx context.Context, token string) (*usecase.ConfirmEmailOutput, error) {
	email, err := srv.ResolveEmailFromVerificationToken(token)
	if err != nil {
		return nil, err
	}

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrVerificationFailed.WrapMessage("confirmation for unknown user")
		}

		return nil, upstreamError(err, "failed to find user")
	}

	if user.Confirmed {
		return &usecase.ConfirmEmailOutput{Email: email, AlreadyConfirmed: true}, nil
	}

	if err := srv.userRepo.MarkConfirmed(ctx, email); err != nil {
		return nil, upstreamError(err, "failed to confirm email")
	}
	srv.invalidate(ctx, email)

	srv.log(ctx).Info("Email confirmed", slog.Any("userID", user.ID))

	return &usecase.ConfirmEmailOutput{Email: email}, nil
}

// RequestConfirmation re-sends the confirmation email to an unconfirmed account.
// Unknown addresses get the same answer as unconfirmed ones.
func (srv *authService) RequestConfirmation(ctx context.Context, email, baseURL string) (*usecase.RequestConfirmationOutput, error) {
	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &usecase.RequestConfirmationOutput{}, nil
		}

		return nil, upstreamError(err, "failed to find user")
	}

	if user.Confirmed {
		return &usecase.RequestConfirmationOutput{AlreadyConfirmed: true}, nil
	}

	srv.sendConfirmation(ctx, user, baseURL)

	return &usecase.RequestConfirmationOutput{}, nil
}

func (srv *authService) issuePair(email string) (*usecase.TokenPairOutput, error) {
	now := srv.now()

	access, err := srv.codec.Encode(entity.NewClaims(email, entity.ScopeAccess, now, srv.accessTTL))
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	refresh, err := srv.codec.Encode(entity.NewClaims(email, entity.ScopeRefresh, now, srv.refreshTTL))
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	return &usecase.TokenPairOutput{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    entity.TokenTypeBearer,
	}, nil
}

func (srv *authService) decodeScoped(token string, scope entity.TokenScope) (entity.TokenClaims, error) {
	claims, err := srv.codec.Decode(token)
	if err != nil {
		return entity.TokenClaims{}, err
	}
	if claims.Scope != scope {
		return entity.TokenClaims{}, domainerrors.ErrInvalidToken.WrapMessage("invalid scope for token")
	}
	if claims.Subject == "" {
		return entity.TokenClaims{}, domainerrors.ErrInvalidToken.WrapMessage("token without subject")
	}

	return claims, nil
}

// revoke forces a logout: the stored refresh token is cleared and the cached copy dropped.
func (srv *authService) revoke(ctx context.Context, email string) {
	defer srv.invalidate(ctx, email)

	if err := srv.userRepo.ClearRefreshToken(ctx, email); err != nil {
		srv.log(ctx).Error("Failed to revoke refresh token", slog.String("email", email), slog.Any("error", err))

		return
	}

	srv.log(ctx).Warn("Refresh token revoked", slog.String("email", email))
}

func (srv *authService) invalidate(ctx context.Context, email string) {
	if err := srv.cache.Invalidate(ctx, email); err != nil {
		srv.log(ctx).Warn("Failed to invalidate cached principal", slog.String("email", email), slog.Any("error", err))
	}
}

func (srv *authService) sendConfirmation(ctx context.Context, user *entity.User, baseURL string) {
	token, err := srv.IssueEmailVerificationToken(user.Email)
	if err != nil {
		srv.log(ctx).Error("Failed to issue confirmation token", slog.String("email", user.Email), slog.Any("error", err))

		return
	}
	link := strings.TrimRight(baseURL, "/") + "/" + confirmationPath + token

	logger := srv.log(ctx)
	detached := context.WithoutCancel(ctx)
	srv.async(func() {
		sendCtx, cancel := context.WithTimeout(detached, confirmationTimeout)
		defer cancel()

		if err := srv.mailer.SendConfirmation(sendCtx, user.Email, user.Name, link); err != nil {
			logger.Error("Failed to send confirmation email", slog.String("email", user.Email), slog.Any("error", err))
		}
	})
}

func gravatarURL(email string) *string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	url := gravatarBaseURL + hex.EncodeToString(sum[:])

	return &url
}

// upstreamError reports a store failure as unavailability, never as absence.
func upstreamError(err error, message string) error {
	if isDomainError(err) {
		return errors.Wrap(err, message)
	}

	return errors.Wrapf(domainerrors.ErrUpstreamUnavailable, "%s: %v", message, err)
}

func isDomainError(err error) bool {
	var baseErr *domainerrors.BaseError

	return errors.As(err, &baseErr)
}
