package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/rolewarden/rolewarden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users          map[string]*domain.User
	createUserErr  error
	countRoleErr   error
	getUserByEmail func(email string) (*domain.User, error)
	revokedAllFor  []string
	expiredCount   int64
	expiredErr     error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockRepository) CreateUser(_ context.Context, user *domain.User) error {
	if m.createUserErr != nil {
		return m.createUserErr
	}
	user.ID = "test-user-id"
	m.users[user.Email] = user
	return nil
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.getUserByEmail != nil {
		return m.getUserByEmail(email)
	}
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) CountUsersWithRole(_ context.Context, role domain.Role) (int, error) {
	if m.countRoleErr != nil {
		return 0, m.countRoleErr
	}
	count := 0
	for _, u := range m.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

func (m *mockRepository) SaveRefreshToken(_ context.Context, _ *domain.RefreshToken) error {
	return nil
}

func (m *mockRepository) GetRefreshToken(_ context.Context, _ string) (*domain.RefreshToken, error) {
	return nil, nil
}

func (m *mockRepository) DeleteRefreshToken(_ context.Context, _ string) error {
	return nil
}

func (m *mockRepository) DeleteUserRefreshTokens(_ context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockRepository) DeleteExpiredRefreshTokens(_ context.Context) (int64, error) {
	if m.expiredErr != nil {
		return 0, m.expiredErr
	}
	return m.expiredCount, nil
}

// mockAuthenticator implements Authenticator for testing.
type mockAuthenticator struct {
	validateUserID string
	validateRole   domain.Role
	validateErr    error
}

func (m *mockAuthenticator) GenerateTokens(_ context.Context, _ *domain.User) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) ValidateAccessToken(_ context.Context, _ string) (string, domain.Role, error) {
	return m.validateUserID, m.validateRole, m.validateErr
}

func (m *mockAuthenticator) RefreshTokens(_ context.Context, _ string) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) RevokeRefreshToken(_ context.Context, _ string) error {
	return nil
}

func (m *mockAuthenticator) Type() string {
	return "mock"
}

// mockUserCreatedHandler implements UserCreatedHandler for testing.
type mockUserCreatedHandler struct {
	called       bool
	receivedUser *domain.User
	err          error
}

func (m *mockUserCreatedHandler) OnUserCreated(_ context.Context, user *domain.User) error {
	m.called = true
	m.receivedUser = user
	return m.err
}

func TestRegister_CallsUserCreatedHandler(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{}

	service := NewService(repo, auth, handler)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, handler.called, "handler should be called")
	assert.Equal(t, user.ID, handler.receivedUser.ID)
	assert.Equal(t, user.Email, handler.receivedUser.Email)
}

func TestRegister_StartsAsAuthenticated(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert — the initial role is fixed, not caller-chosen
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAuthenticated, user.Role)
	assert.NotEqual(t, "password123", user.Password, "password must be stored hashed")
}

func TestRegister_ContinuesIfHandlerFails(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{err: errors.New("handler error")}

	service := NewService(repo, auth, handler)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert — registration succeeds despite handler error
	require.NoError(t, err)
	assert.NotNil(t, user)
	assert.True(t, handler.called, "handler should still be called")
}

func TestRegister_EmailAlreadyExists(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.users["existing@example.com"] = &domain.User{Email: "existing@example.com"}
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{}

	service := NewService(repo, auth, handler)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "existing@example.com",
		Password: "password123",
	})

	// Assert
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.False(t, handler.called, "handler should not be called for duplicate email")
}

func TestRegister_CreateUserFails(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.createUserErr = errors.New("database error")
	auth := &mockAuthenticator{}
	handler := &mockUserCreatedHandler{}

	service := NewService(repo, auth, handler)

	// Act
	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	assert.Nil(t, user)
	assert.Error(t, err)
	assert.False(t, handler.called, "handler should not be called if user creation fails")
}

func addUserWithPassword(t *testing.T, repo *mockRepository, id, email, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{ID: id, Email: email, Password: string(hash), Role: role}
	repo.users[email] = user
	return user
}

func TestLogin_Success(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	addUserWithPassword(t, repo, "user-1", "test@example.com", "password123", domain.RoleAuthenticated)
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	user, tokens, err := service.Login(context.Background(), LoginInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	addUserWithPassword(t, repo, "user-1", "test@example.com", "password123", domain.RoleAuthenticated)
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	user, tokens, err := service.Login(context.Background(), LoginInput{
		Email:    "test@example.com",
		Password: "wrong-password",
	})

	// Assert
	assert.Nil(t, user)
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "password123",
	})

	// Assert — indistinguishable from a wrong password
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestValidateToken_ReturnsLiveRole(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	user := addUserWithPassword(t, repo, "user-1", "test@example.com", "password123", domain.RoleAdmin)
	auth := &mockAuthenticator{validateUserID: "user-1", validateRole: domain.RoleAuthenticated}
	service := NewService(repo, auth, nil)

	// Act
	userID, role, err := service.ValidateToken(context.Background(), "some-token")

	// Assert — the role comes from the store, not the token claim
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, domain.RoleAdmin, role)
}

func TestValidateToken_InvalidToken(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{validateErr: errors.New("bad signature")}
	service := NewService(repo, auth, nil)

	// Act
	_, _, err := service.ValidateToken(context.Background(), "garbage")

	// Assert
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_DeletedUser(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{validateUserID: "gone-user"}
	service := NewService(repo, auth, nil)

	// Act
	_, _, err := service.ValidateToken(context.Background(), "stale-token")

	// Assert — a valid token for a deleted account is rejected
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEnsureAdmin_CreatesWhenNoneExist(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	err := service.EnsureAdmin(context.Background(), "admin@example.com", "bootstrap-secret")

	// Assert
	require.NoError(t, err)
	created, ok := repo.users["admin@example.com"]
	require.True(t, ok, "bootstrap admin should be created")
	assert.Equal(t, domain.RoleAdmin, created.Role)
	assert.NotEqual(t, "bootstrap-secret", created.Password)
}

func TestEnsureAdmin_NoOpWhenAdminExists(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	addUserWithPassword(t, repo, "user-1", "existing@example.com", "password123", domain.RoleAdmin)
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	err := service.EnsureAdmin(context.Background(), "admin@example.com", "bootstrap-secret")

	// Assert
	require.NoError(t, err)
	_, ok := repo.users["admin@example.com"]
	assert.False(t, ok, "no second admin should be created")
}

func TestEnsureAdmin_NoOpWithoutCredentials(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.countRoleErr = errors.New("store should not be consulted")
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act + Assert
	require.NoError(t, service.EnsureAdmin(context.Background(), "", ""))
	require.NoError(t, service.EnsureAdmin(context.Background(), "admin@example.com", ""))
	require.NoError(t, service.EnsureAdmin(context.Background(), "", "secret"))
	assert.Empty(t, repo.users)
}

func TestLogoutAll_RevokesEveryUserToken(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	err := service.LogoutAll(context.Background(), "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, repo.revokedAllFor)
}

func TestPurgeExpiredTokens_ReportsCount(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.expiredCount = 3
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	purged, err := service.PurgeExpiredTokens(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
}

func TestPurgeExpiredTokens_PropagatesError(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.expiredErr = errors.New("store down")
	service := NewService(repo, &mockAuthenticator{}, nil)

	// Act
	_, err := service.PurgeExpiredTokens(context.Background())

	// Assert
	assert.Error(t, err)
}
