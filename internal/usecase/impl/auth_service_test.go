package impl

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/domain/service"
	"phonebook/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "secret1"
	baseURL       = "http://localhost:8000/"
)

// tick makes every token issuance one second later than the previous one, so issued tokens differ.
func (f *authServiceFixtures) tick() {
	var mu sync.Mutex
	current := f.now
	f.service.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)

		return current
	}
}

func (f *authServiceFixtures) expectConfirmationMail(link *string) {
	f.mailer.On("SendConfirmation", mock.Anything, aliceEmail, "alice01", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			if link != nil {
				*link = args.String(3)
			}
		}).
		Return(nil)
}

func TestAuthService_AliceScenario(t *testing.T) {
	f := createTestAuthService(t)
	f.tick()
	ctx := context.Background()

	var link string
	f.expectConfirmationMail(&link)

	registered, err := f.service.Register(ctx, usecase.RegisterInput{
		Username: "alice01",
		Email:    aliceEmail,
		Password: alicePassword,
	}, baseURL)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, registered.User.Role)
	assert.False(t, registered.User.Confirmed)
	require.NotNil(t, registered.User.AvatarURL)
	assert.True(t, strings.HasPrefix(*registered.User.AvatarURL, "https://www.gravatar.com/avatar/"))
	f.mailer.AssertExpectations(t)

	require.True(t, strings.HasPrefix(link, baseURL+"api/auth/confirmed_email/"))
	token := strings.TrimPrefix(link, baseURL+"api/auth/confirmed_email/")

	// Unconfirmed login is refused.
	_, err = f.service.Authenticate(ctx, aliceEmail, alicePassword)
	assert.ErrorIs(t, err, domainerrors.ErrEmailNotConfirmed)

	confirmed, err := f.service.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, aliceEmail, confirmed.Email)
	assert.False(t, confirmed.AlreadyConfirmed)

	again, err := f.service.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, again.AlreadyConfirmed)

	login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)
	assert.Equal(t, "bearer", login.TokenType)
	assert.NotEmpty(t, login.AccessToken)
	assert.NotEmpty(t, login.RefreshToken)
	assert.True(t, f.users.get(aliceEmail).HasRefreshToken(login.RefreshToken))

	principal, err := f.service.ResolveCurrentPrincipal(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, aliceEmail, principal.Email)
	assert.True(t, principal.Confirmed)

	rotated, err := f.service.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.True(t, f.users.get(aliceEmail).HasRefreshToken(rotated.RefreshToken))
}

func TestAuthService_Authenticate_Errors(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)
	f.seedUser(t, "bob@example.com", "hunter2", false)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "unknown email", email: "nobody@example.com", password: alicePassword, want: domainerrors.ErrInvalidCredentials},
		{name: "wrong password", email: aliceEmail, password: "wrong", want: domainerrors.ErrInvalidCredentials},
		{name: "unconfirmed with wrong password", email: "bob@example.com", password: "wrong", want: domainerrors.ErrInvalidCredentials},
		{name: "unconfirmed with right password", email: "bob@example.com", password: "hunter2", want: domainerrors.ErrEmailNotConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.service.Authenticate(ctx, tt.email, tt.password)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Authenticate_StoreUnavailable(t *testing.T) {
	f := createTestAuthService(t)
	f.users.findErr = context.DeadlineExceeded

	_, err := f.service.Authenticate(context.Background(), aliceEmail, alicePassword)
	assert.ErrorIs(t, err, domainerrors.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuthService_Refresh_SupersededTokenForcesLogout(t *testing.T) {
	f := createTestAuthService(t)
	f.tick()
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)

	first, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)
	second, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.service.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshMismatch)
	assert.Nil(t, f.users.get(aliceEmail).RefreshToken)

	// The newer session was revoked too.
	_, err = f.service.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshMismatch)
}

func TestAuthService_Refresh_ConcurrentSingleWinner(t *testing.T) {
	f := createTestAuthService(t)
	f.tick()
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)

	login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := f.service.Refresh(ctx, login.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.ErrorIs(t, err, domainerrors.ErrRefreshMismatch)
	}
}

func TestAuthService_Refresh_RejectsWrongScope(t *testing.T) {
	f := createTestAuthService(t)
	f.tick()
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)

	login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
	// A scope error is not a mismatch; the session survives.
	assert.True(t, f.users.get(aliceEmail).HasRefreshToken(login.RefreshToken))
}

func TestAuthService_ResolveCurrentPrincipal_ColdAndWarmCacheAgree(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)

	login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)
	findsBefore := f.users.findCount()

	cold, err := f.service.ResolveCurrentPrincipal(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, findsBefore+1, f.users.findCount())
	assert.True(t, f.cache.has(aliceEmail))
	assert.Equal(t, 900*time.Second, f.cache.ttls[aliceEmail])

	warm, err := f.service.ResolveCurrentPrincipal(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, findsBefore+1, f.users.findCount(), "warm resolution must not hit the store")

	assert.Equal(t, cold.ID, warm.ID)
	assert.Equal(t, cold.Email, warm.Email)
	assert.Equal(t, cold.Role, warm.Role)
	assert.Equal(t, cold.Confirmed, warm.Confirmed)
	assert.Equal(t, cold.RefreshToken, warm.RefreshToken)
}

func TestAuthService_ResolveCurrentPrincipal_CacheFailuresDegrade(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)

	login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)

	t.Run("read error", func(t *testing.T) {
		f.cache.getErr = errors.New("redis down")
		f.cache.putErr = errors.New("redis down")
		defer func() {
			f.cache.getErr = nil
			f.cache.putErr = nil
		}()

		user, err := f.service.ResolveCurrentPrincipal(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, aliceEmail, user.Email)
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		require.NoError(t, f.cache.Put(ctx, aliceEmail, []byte{0x7f, 0x00}, time.Minute))

		user, err := f.service.ResolveCurrentPrincipal(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, aliceEmail, user.Email)
	})
}

func TestAuthService_ResolveCurrentPrincipal_Errors(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	now := time.Now()

	expired, err := f.service.codec.Encode(entity.NewClaims(aliceEmail, entity.ScopeAccess, now.Add(-time.Hour), 15*time.Minute))
	require.NoError(t, err)
	unknown, err := f.service.codec.Encode(entity.NewClaims("ghost@example.com", entity.ScopeAccess, now, time.Hour))
	require.NoError(t, err)
	refresh, err := f.service.codec.Encode(entity.NewClaims(aliceEmail, entity.ScopeRefresh, now, time.Hour))
	require.NoError(t, err)
	noSubject, err := f.service.codec.Encode(entity.NewClaims("", entity.ScopeAccess, now, time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "expired", token: expired, want: domainerrors.ErrInvalidToken},
		{name: "garbage", token: "not-a-token", want: domainerrors.ErrInvalidToken},
		{name: "refresh scope", token: refresh, want: domainerrors.ErrInvalidToken},
		{name: "empty subject", token: noSubject, want: domainerrors.ErrInvalidToken},
		{name: "unknown principal", token: unknown, want: domainerrors.ErrUnknownPrincipal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.ResolveCurrentPrincipal(ctx, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("expired token never touches the cache", func(t *testing.T) {
		before := f.cache.gets
		_, err := f.service.ResolveCurrentPrincipal(ctx, expired)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
		assert.Equal(t, before, f.cache.gets)
	})

	t.Run("store unavailable is not absence", func(t *testing.T) {
		f.users.findErr = context.DeadlineExceeded
		defer func() { f.users.findErr = nil }()

		_, err := f.service.ResolveCurrentPrincipal(ctx, unknown)
		assert.ErrorIs(t, err, domainerrors.ErrUpstreamUnavailable)
		assert.NotErrorIs(t, err, domainerrors.ErrUnknownPrincipal)
	})
}

func TestAuthService_VerificationTokens(t *testing.T) {
	f := createTestAuthService(t)
	f.tick()
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)

	token, err := f.service.IssueEmailVerificationToken("anyone@example.com")
	require.NoError(t, err)

	email, err := f.service.ResolveEmailFromVerificationToken(token)
	require.NoError(t, err)
	assert.Equal(t, "anyone@example.com", email)

	login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"access token":  login.AccessToken,
		"refresh token": login.RefreshToken,
		"garbage":       "garbage",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.ResolveEmailFromVerificationToken(tok)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidVerificationToken)
		})
	}
}

func TestAuthService_ConfirmEmail_UnknownUser(t *testing.T) {
	f := createTestAuthService(t)

	token, err := f.service.IssueEmailVerificationToken("ghost@example.com")
	require.NoError(t, err)

	_, err = f.service.ConfirmEmail(context.Background(), token)
	assert.ErrorIs(t, err, domainerrors.ErrVerificationFailed)
}

func TestAuthService_ConfirmEmail_InvalidatesCache(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, false)
	require.NoError(t, f.cache.Put(ctx, aliceEmail, []byte("stale"), time.Minute))

	token, err := f.service.IssueEmailVerificationToken(aliceEmail)
	require.NoError(t, err)

	_, err = f.service.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, f.users.get(aliceEmail).Confirmed)
	assert.False(t, f.cache.has(aliceEmail))
}

func TestAuthService_RequestConfirmation(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()

	// Unknown address: generic answer, no mail.
	out, err := f.service.RequestConfirmation(ctx, aliceEmail, baseURL)
	require.NoError(t, err)
	assert.False(t, out.AlreadyConfirmed)
	f.mailer.AssertNotCalled(t, "SendConfirmation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.seedUser(t, aliceEmail, alicePassword, false)
	f.expectConfirmationMail(nil)

	out, err = f.service.RequestConfirmation(ctx, aliceEmail, baseURL)
	require.NoError(t, err)
	assert.False(t, out.AlreadyConfirmed)
	f.mailer.AssertNumberOfCalls(t, "SendConfirmation", 1)

	f.seedUser(t, aliceEmail, alicePassword, true)
	out, err = f.service.RequestConfirmation(ctx, aliceEmail, baseURL)
	require.NoError(t, err)
	assert.True(t, out.AlreadyConfirmed)
	f.mailer.AssertNumberOfCalls(t, "SendConfirmation", 1)
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	f := createTestAuthService(t)
	f.seedUser(t, aliceEmail, alicePassword, true)

	_, err := f.service.Register(context.Background(), usecase.RegisterInput{
		Username: "alice01",
		Email:    aliceEmail,
		Password: alicePassword,
	}, baseURL)
	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
	f.mailer.AssertNotCalled(t, "SendConfirmation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthService_Register_MailFailureIsSwallowed(t *testing.T) {
	f := createTestAuthService(t)
	f.mailer.On("SendConfirmation", mock.Anything, aliceEmail, "alice01", mock.Anything).
		Return(errors.New("smtp down"))

	out, err := f.service.Register(context.Background(), usecase.RegisterInput{
		Username: "alice01",
		Email:    aliceEmail,
		Password: alicePassword,
	}, baseURL)
	require.NoError(t, err)
	assert.NotNil(t, f.users.get(aliceEmail))
	assert.Equal(t, aliceEmail, out.User.Email)
}

func TestAuthService_Logout(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := f.seedUser(t, aliceEmail, alicePassword, true)

	login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)
	_, err = f.service.ResolveCurrentPrincipal(ctx, login.AccessToken)
	require.NoError(t, err)
	require.True(t, f.cache.has(aliceEmail))

	require.NoError(t, f.service.Logout(ctx, user))
	assert.Nil(t, f.users.get(aliceEmail).RefreshToken)
	assert.False(t, f.cache.has(aliceEmail))

	_, err = f.service.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshMismatch)
}

func TestGravatarURL(t *testing.T) {
	// md5("alice@example.com")
	assert.Equal(t,
		"https://www.gravatar.com/avatar/c160f8cc69a4f0bf2b0362752353d060",
		*gravatarURL("  Alice@Example.com "),
	)
}

// countingHasher records how many password checks ran.
type countingHasher struct {
	service.PasswordHasher
	checks int
}

func (h *countingHasher) Check(password, hash string) bool {
	h.checks++

	return h.PasswordHasher.Check(password, hash)
}

func TestAuthService_Authenticate_UnknownEmailCostsOneHash(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	f.seedUser(t, aliceEmail, alicePassword, true)

	hasher := &countingHasher{PasswordHasher: f.service.hasher}
	f.service.hasher = hasher

	_, err := f.service.Authenticate(ctx, "nobody@example.com", alicePassword)
	require.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, 1, hasher.checks)

	_, err = f.service.Authenticate(ctx, aliceEmail, "wrong")
	require.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, 2, hasher.checks)

	digest := f.service.dummyDigest()
	require.NotEmpty(t, digest)
	assert.True(t, hasher.PasswordHasher.Check(dummyPassword, digest))
}

// A profile or confirmation write that overlaps a rotation must not bring back the retired refresh token.
func TestAuthService_Refresh_SurvivesOverlappingWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("avatar upload", func(t *testing.T) {
		f := createTestAuthService(t)
		f.tick()
		principal := f.seedUser(t, aliceEmail, alicePassword, true)

		login, err := f.service.Authenticate(ctx, aliceEmail, alicePassword)
		require.NoError(t, err)

		storage := &mockAvatarStorage{}
		storage.On("Upload", mock.Anything, avatarKey(aliceEmail), "image/png", mock.Anything).
			Return("https://cdn.example.com/avatars/abc", nil).Once()
		profiles := NewProfileService(ProfileServiceParams{
			UserRepo: f.users,
			Cache:    f.cache,
			Storage:  storage,
			Config:   newTestConfig(),
			Logger:   newDiscardLogger(),
		})

		var rotated *usecase.TokenPairOutput
		f.users.beforeWrite = func(column string) {
			if column != "avatar" || rotated != nil {
				return
			}
			rotated, err = f.service.Refresh(ctx, login.RefreshToken)
			require.NoError(t, err)
		}

		_, err = profiles.UpdateAvatar(ctx, principal, usecase.UpdateAvatarInput{ContentType: "image/png", Data: []byte("png")})
		require.NoError(t, err)
		require.NotNil(t, rotated)

		stored := f.users.get(aliceEmail)
		require.NotNil(t, stored.RefreshToken)
		assert.Equal(t, rotated.RefreshToken, *stored.RefreshToken)
		assert.Equal(t, "https://cdn.example.com/avatars/abc", *stored.AvatarURL)

		_, err = f.service.Refresh(ctx, rotated.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("email confirmation", func(t *testing.T) {
		f := createTestAuthService(t)
		f.tick()
		f.seedUser(t, aliceEmail, alicePassword, false)

		pair, err := f.service.issuePair(aliceEmail)
		require.NoError(t, err)
		require.NoError(t, f.users.SetRefreshToken(ctx, aliceEmail, pair.RefreshToken))

		verification, err := f.service.IssueEmailVerificationToken(aliceEmail)
		require.NoError(t, err)

		var rotated *usecase.TokenPairOutput
		f.users.beforeWrite = func(column string) {
			if column != "confirmed" || rotated != nil {
				return
			}
			rotated, err = f.service.Refresh(ctx, pair.RefreshToken)
			require.NoError(t, err)
		}

		out, err := f.service.ConfirmEmail(ctx, verification)
		require.NoError(t, err)
		assert.False(t, out.AlreadyConfirmed)
		require.NotNil(t, rotated)

		stored := f.users.get(aliceEmail)
		assert.True(t, stored.Confirmed)
		require.NotNil(t, stored.RefreshToken)
		assert.Equal(t, rotated.RefreshToken, *stored.RefreshToken)

		_, err = f.service.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, domainerrors.ErrRefreshMismatch)
	})
}
