package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"phonebook/config"
	"phonebook/internal/domain/entity"
	"phonebook/internal/domain/repository"
	"phonebook/internal/infra/auth"
	"phonebook/internal/infra/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		JWT:   &config.JWTConfig{SecretKey: "test_secret_key_very_long_for_testing", Algorithm: "HS256"},
		Auth:  &config.AuthConfig{BcryptCost: bcrypt.MinCost},
		Cache: &config.CacheConfig{Driver: config.CacheDriverMemory},
	}
	cfg.ApplyDefaults()

	return cfg
}

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User

	findErr   error
	updateErr error
	finds     int

	// beforeWrite, if set, is called with the column name before a single-column write lands.
	beforeWrite func(column string)
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*entity.User{}}
}

func cloneUser(u *entity.User) *entity.User {
	c := *u
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		c.RefreshToken = &token
	}
	if u.AvatarURL != nil {
		avatar := *u.AvatarURL
		c.AvatarURL = &avatar
	}

	return &c
}

func (r *fakeUserRepo) put(u *entity.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Email] = cloneUser(u)
}

func (r *fakeUserRepo) get(email string) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[email]
	if !ok {
		return nil
	}

	return cloneUser(u)
}

func (r *fakeUserRepo) findCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.finds
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return cloneUser(u), nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.Email] = cloneUser(user)

	return nil
}

func (r *fakeUserRepo) SetRefreshToken(_ context.Context, email string, token string) error {
	return r.write(email, "refresh_token", func(u *entity.User) { u.RefreshToken = &token })
}

func (r *fakeUserRepo) ClearRefreshToken(_ context.Context, email string) error {
	return r.write(email, "refresh_token", func(u *entity.User) { u.RefreshToken = nil })
}

func (r *fakeUserRepo) MarkConfirmed(_ context.Context, email string) error {
	return r.write(email, "confirmed", func(u *entity.User) { u.Confirmed = true })
}

func (r *fakeUserRepo) SetAvatarURL(_ context.Context, email string, avatarURL string) error {
	return r.write(email, "avatar", func(u *entity.User) { u.AvatarURL = &avatarURL })
}

// write applies a single-column change. beforeWrite runs outside the lock, so it may call back into the repo.
func (r *fakeUserRepo) write(email, column string, apply func(*entity.User)) error {
	if r.beforeWrite != nil {
		r.beforeWrite(column)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}
	u, ok := r.users[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	apply(u)
	u.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *fakeUserRepo) CompareAndSwapRefreshToken(_ context.Context, email string, expected string, next *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[email]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != expected {
		return false, nil
	}
	if next == nil {
		u.RefreshToken = nil
	} else {
		token := *next
		u.RefreshToken = &token
	}

	return true, nil
}

// --- contacts ---

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]*entity.Contact
	err      error
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: map[uuid.UUID]*entity.Contact{}}
}

func (r *fakeContactRepo) all(match func(*entity.Contact) bool) []*entity.Contact {
	out := []*entity.Contact{}
	for _, c := range r.contacts {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}

	return out
}

func (r *fakeContactRepo) List(_ context.Context, limit, offset int) ([]*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	out := r.all(func(*entity.Contact) bool { return true })
	if offset >= len(out) {
		return []*entity.Contact{}, nil
	}
	end := min(offset+limit, len(out))

	return out[offset:end], nil
}

func (r *fakeContactRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	c, ok := r.contacts[id]
	if !ok {
		return nil, repository.ErrContactNotFound
	}
	cp := *c

	return &cp, nil
}

func (r *fakeContactRepo) FindByEmail(_ context.Context, email string) (*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	found := r.all(func(c *entity.Contact) bool { return c.Email == email })
	if len(found) == 0 {
		return nil, repository.ErrContactNotFound
	}

	return found[0], nil
}

func (r *fakeContactRepo) FindByFirstName(_ context.Context, firstName string) ([]*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.all(func(c *entity.Contact) bool { return c.FirstName == firstName }), r.err
}

func (r *fakeContactRepo) FindByLastName(_ context.Context, lastName string) ([]*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.all(func(c *entity.Contact) bool { return c.LastName == lastName }), r.err
}

func (r *fakeContactRepo) FindBirthdaysWithin(_ context.Context, today time.Time, days int) ([]*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.all(func(c *entity.Contact) bool { return c.BirthdayWithin(today, days) }), r.err
}

func (r *fakeContactRepo) Create(_ context.Context, contact *entity.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *contact
	r.contacts[contact.ID] = &cp

	return nil
}

func (r *fakeContactRepo) Update(_ context.Context, contact *entity.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contacts[contact.ID]; !ok {
		return repository.ErrContactNotFound
	}
	cp := *contact
	r.contacts[contact.ID] = &cp

	return nil
}

func (r *fakeContactRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contacts[id]; !ok {
		return repository.ErrContactNotFound
	}
	delete(r.contacts, id)

	return nil
}

// --- transactions ---

type fakeTxManager struct {
	users    repository.UserRepository
	contacts repository.ContactRepository
}

type fakeRepositoryFactory struct {
	tm *fakeTxManager
}

func (f fakeRepositoryFactory) NewUserRepository() repository.UserRepository {
	return f.tm.users
}

func (f fakeRepositoryFactory) NewContactRepository() repository.ContactRepository {
	return f.tm.contacts
}

func (tm *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(fakeRepositoryFactory{tm: tm})
}

// --- cache ---

type fakeSessionCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration

	getErr error
	putErr error
	gets   int
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeSessionCache) Get(_ context.Context, email string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	data, ok := c.entries[email]

	return data, ok, nil
}

func (c *fakeSessionCache) Put(_ context.Context, email string, snapshot []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.putErr != nil {
		return c.putErr
	}
	c.entries[email] = snapshot
	c.ttls[email] = ttl

	return nil
}

func (c *fakeSessionCache) Invalidate(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, email)
	delete(c.ttls, email)

	return nil
}

func (c *fakeSessionCache) has(email string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[email]

	return ok
}

// --- mailer / storage ---

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendConfirmation(ctx context.Context, to, username, confirmURL string) error {
	args := m.Called(ctx, to, username, confirmURL)

	return args.Error(0)
}

type mockAvatarStorage struct {
	mock.Mock
}

func (m *mockAvatarStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)

	return args.String(0), args.Error(1)
}

// --- auth service fixture ---

type authServiceFixtures struct {
	service *authService
	users   *fakeUserRepo
	cache   *fakeSessionCache
	mailer  *mockMailer
	now     time.Time
}

func createTestAuthService(t *testing.T) *authServiceFixtures {
	t.Helper()

	cfg := newTestConfig()
	codec, err := auth.NewJWTCodec(cfg)
	require.NoError(t, err)

	users := newFakeUserRepo()
	fixtures := &authServiceFixtures{
		users:  users,
		cache:  newFakeSessionCache(),
		mailer: &mockMailer{},
		now:    time.Now().UTC(),
	}

	fixtures.service = newAuthService(AuthServiceParams{
		TxManager: &fakeTxManager{users: users},
		UserRepo:  users,
		Cache:     fixtures.cache,
		Snapshots: cache.NewSnapshotCodec(),
		Hasher:    auth.NewBcryptHasher(cfg),
		Codec:     codec,
		Mailer:    fixtures.mailer,
		Config:    cfg,
		Logger:    newDiscardLogger(),
	})
	// Run background mail synchronously so assertions see it.
	fixtures.service.async = func(fn func()) { fn() }

	return fixtures
}

// seedUser stores a user with the given password and confirmation state.
func (f *authServiceFixtures) seedUser(t *testing.T, email, password string, confirmed bool) *entity.User {
	t.Helper()

	hash, err := f.service.hasher.Hash(password)
	require.NoError(t, err)

	user := &entity.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "alice01",
		PasswordHash: hash,
		Role:         entity.RoleUser,
		Confirmed:    confirmed,
	}
	f.users.put(user)

	return user
}
