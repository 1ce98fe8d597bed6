package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/KYANTECH254/social-server/internal/apperrors"
	"github.com/KYANTECH254/social-server/internal/domain"
	"github.com/KYANTECH254/social-server/internal/token"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Upsert(ctx context.Context, identity *domain.FederatedIdentity) (*domain.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// --- Mock Account Repository ---

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, userID, tok string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tok, expiresAt)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByToken(ctx context.Context, tok string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tok)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Delete(ctx context.Context, tok string) (bool, error) {
	args := m.Called(ctx, tok)
	return args.Bool(0), args.Error(1)
}

// --- Mock Session Repository ---

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// --- Mock Access Token Store ---

type mockAccessTokenStore struct {
	mock.Mock
}

func (m *mockAccessTokenStore) Revoke(ctx context.Context, tok string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, tok, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccessTokenStore) IsRevoked(ctx context.Context, tok string) (bool, error) {
	args := m.Called(ctx, tok)
	return args.Bool(0), args.Error(1)
}

// --- Mock Exchanger ---

type mockExchanger struct {
	mock.Mock
}

func (m *mockExchanger) ExchangeCode(ctx context.Context, code string) (*domain.FederatedIdentity, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FederatedIdentity), args.Error(1)
}

// --- Mock Event Publisher ---

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishUserLoggedIn(ctx context.Context, user *domain.User, session *domain.Session) error {
	args := m.Called(ctx, user, session)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishAccountCompleted(ctx context.Context, user *domain.User, account *domain.Account) error {
	args := m.Called(ctx, user, account)
	return args.Error(0)
}

// --- Test Helpers ---

type authFixture struct {
	userRepo     *mockUserRepository
	accountRepo  *mockAccountRepository
	refreshRepo  *mockRefreshTokenRepository
	sessionRepo  *mockSessionRepository
	accessTokens *mockAccessTokenStore
	exchanger    *mockExchanger
	producer     *mockEventPublisher
	tokens       *token.Manager
	svc          *AuthService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokenManager(refreshTTL time.Duration) *token.Manager {
	return token.NewManager(
		"access-secret-key-used-for-testing-0001",
		"refresh-secret-key-used-for-testing-01",
		15*time.Minute,
		refreshTTL,
	)
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		userRepo:     new(mockUserRepository),
		accountRepo:  new(mockAccountRepository),
		refreshRepo:  new(mockRefreshTokenRepository),
		sessionRepo:  new(mockSessionRepository),
		accessTokens: new(mockAccessTokenStore),
		exchanger:    new(mockExchanger),
		producer:     new(mockEventPublisher),
		tokens:       newTestTokenManager(7 * 24 * time.Hour),
	}
	f.svc = NewAuthService(
		f.userRepo, f.accountRepo, f.refreshRepo, f.sessionRepo,
		f.accessTokens, f.tokens, f.exchanger, f.producer, newTestLogger(),
	)
	return f
}

func sampleUser() *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:            "u-1234",
		Email:         "alice@example.com",
		Name:          "Alice Smith",
		Avatar:        "https://lh3.googleusercontent.com/a/alice",
		GoogleID:      "g-108331",
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func sampleIdentity() *domain.FederatedIdentity {
	return &domain.FederatedIdentity{
		ProviderUserID: "g-108331",
		Email:          "alice@example.com",
		Name:           "Alice Smith",
		Avatar:         "https://lh3.googleusercontent.com/a/alice",
		EmailVerified:  true,
	}
}

func sampleSetupAccount() *domain.Account {
	return &domain.Account{
		ID:        "a-5678",
		Email:     "alice@example.com",
		DOB:       time.Date(1996, 4, 12, 0, 0, 0, 0, time.UTC),
		Username:  "alice96",
		CreatedAt: time.Now().UTC(),
	}
}

// --- AuthenticateWithCode Tests ---

func TestAuthenticateWithCode_FirstLogin(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	f.exchanger.On("ExchangeCode", mock.Anything, "auth-code").Return(sampleIdentity(), nil)
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.FederatedIdentity")).Return(user, nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	f.sessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	f.accountRepo.On("GetByEmail", mock.Anything, user.Email).Return(nil, apperrors.ErrNotFound)
	f.producer.On("PublishUserRegistered", mock.Anything, user).Return(nil)
	f.producer.On("PublishUserLoggedIn", mock.Anything, user, mock.AnythingOfType("*domain.Session")).Return(nil)

	result, err := f.svc.AuthenticateWithCode(context.Background(), "auth-code", SessionMeta{Device: "web"})
	require.NoError(t, err)

	assert.False(t, result.LoggedIn)
	assert.Equal(t, user.Email, result.User.Email)
	assert.Empty(t, result.User.Username)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	claims, err := f.tokens.ValidateAccessToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)

	f.producer.AssertCalled(t, "PublishUserRegistered", mock.Anything, user)
	f.userRepo.AssertExpectations(t)
	f.refreshRepo.AssertExpectations(t)
}

func TestAuthenticateWithCode_ReturningUserWithAccount(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	account := sampleSetupAccount()

	f.exchanger.On("ExchangeCode", mock.Anything, "auth-code").Return(sampleIdentity(), nil)
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.userRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.FederatedIdentity")).Return(user, nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	f.sessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	f.accountRepo.On("GetByEmail", mock.Anything, user.Email).Return(account, nil)
	f.producer.On("PublishUserLoggedIn", mock.Anything, user, mock.AnythingOfType("*domain.Session")).Return(nil)

	result, err := f.svc.AuthenticateWithCode(context.Background(), "auth-code", SessionMeta{})
	require.NoError(t, err)

	assert.True(t, result.LoggedIn)
	assert.Equal(t, account.Username, result.User.Username)
	f.producer.AssertNotCalled(t, "PublishUserRegistered", mock.Anything, mock.Anything)
}

func TestAuthenticateWithCode_ExchangeErrorPassesThrough(t *testing.T) {
	f := newAuthFixture()

	f.exchanger.On("ExchangeCode", mock.Anything, "").Return(nil, apperrors.CodeMissing())

	result, err := f.svc.AuthenticateWithCode(context.Background(), "", SessionMeta{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.userRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestAuthenticateWithCode_SessionFailureDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	f.exchanger.On("ExchangeCode", mock.Anything, "auth-code").Return(sampleIdentity(), nil)
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.userRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.FederatedIdentity")).Return(user, nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	f.sessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(errors.New("sessions table unavailable"))
	f.accountRepo.On("GetByEmail", mock.Anything, user.Email).Return(nil, apperrors.ErrNotFound)
	f.producer.On("PublishUserLoggedIn", mock.Anything, user, (*domain.Session)(nil)).Return(nil)

	result, err := f.svc.AuthenticateWithCode(context.Background(), "auth-code", SessionMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
}

func TestAuthenticateWithCode_RefreshPersistFailure(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	f.exchanger.On("ExchangeCode", mock.Anything, "auth-code").Return(sampleIdentity(), nil)
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.userRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.FederatedIdentity")).Return(user, nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(errors.New("connection reset"))

	result, err := f.svc.AuthenticateWithCode(context.Background(), "auth-code", SessionMeta{})
	assert.Nil(t, result)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
}

func TestAuthenticateWithCode_EventFailureDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	f.exchanger.On("ExchangeCode", mock.Anything, "auth-code").Return(sampleIdentity(), nil)
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.FederatedIdentity")).Return(user, nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	f.sessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	f.accountRepo.On("GetByEmail", mock.Anything, user.Email).Return(nil, apperrors.ErrNotFound)
	f.producer.On("PublishUserRegistered", mock.Anything, user).Return(errors.New("broker down"))
	f.producer.On("PublishUserLoggedIn", mock.Anything, user, mock.AnythingOfType("*domain.Session")).Return(errors.New("broker down"))

	result, err := f.svc.AuthenticateWithCode(context.Background(), "auth-code", SessionMeta{})
	require.NoError(t, err)
	assert.NotNil(t, result.Tokens)
}

// --- CompleteAccountSetup Tests ---

func TestCompleteAccountSetup_Success(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.accountRepo.On("GetByUsername", mock.Anything, "alice96").Return(nil, apperrors.ErrNotFound)
	f.accountRepo.On("GetByEmail", mock.Anything, user.Email).Return(nil, apperrors.ErrNotFound)
	f.accountRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Account")).Return(nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	f.sessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	f.producer.On("PublishAccountCompleted", mock.Anything, user, mock.AnythingOfType("*domain.Account")).Return(nil)

	input := AccountSetupInput{Email: user.Email, DOB: "1996-04-12", Username: "alice96"}
	result, err := f.svc.CompleteAccountSetup(context.Background(), input, SessionMeta{})
	require.NoError(t, err)

	assert.True(t, result.LoggedIn)
	assert.Equal(t, "alice96", result.User.Username)
	assert.Equal(t, "1996-04-12", result.User.DOB)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	created := f.accountRepo.Calls[2].Arguments.Get(1).(*domain.Account)
	assert.Equal(t, user.Email, created.Email)
	assert.Equal(t, "alice96", created.Username)
	f.accountRepo.AssertExpectations(t)
}

func TestCompleteAccountSetup_UserNotFound(t *testing.T) {
	f := newAuthFixture()

	f.userRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	input := AccountSetupInput{Email: "ghost@example.com", DOB: "1996-04-12", Username: "ghost"}
	result, err := f.svc.CompleteAccountSetup(context.Background(), input, SessionMeta{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.accountRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCompleteAccountSetup_InvalidDOB(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	input := AccountSetupInput{Email: user.Email, DOB: "12/04/1996", Username: "alice96"}
	result, err := f.svc.CompleteAccountSetup(context.Background(), input, SessionMeta{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCompleteAccountSetup_UsernameTaken(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.accountRepo.On("GetByUsername", mock.Anything, "alice96").Return(sampleSetupAccount(), nil)

	input := AccountSetupInput{Email: user.Email, DOB: "1996-04-12", Username: "alice96"}
	result, err := f.svc.CompleteAccountSetup(context.Background(), input, SessionMeta{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	f.accountRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCompleteAccountSetup_DuplicateSurfacedByStore(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()

	// Pre-checks race: both pass, the unique constraint is the authority.
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.accountRepo.On("GetByUsername", mock.Anything, "alice96").Return(nil, apperrors.ErrNotFound)
	f.accountRepo.On("GetByEmail", mock.Anything, user.Email).Return(nil, apperrors.ErrNotFound)
	f.accountRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Account")).
		Return(apperrors.ConstraintViolation("account", "username", "alice96"))

	input := AccountSetupInput{Email: user.Email, DOB: "1996-04-12", Username: "alice96"}
	result, err := f.svc.CompleteAccountSetup(context.Background(), input, SessionMeta{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	f.refreshRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- CheckUsernameAvailable Tests ---

func TestCheckUsernameAvailable_Free(t *testing.T) {
	f := newAuthFixture()

	f.accountRepo.On("GetByUsername", mock.Anything, "newname").Return(nil, apperrors.ErrNotFound)

	account, available, err := f.svc.CheckUsernameAvailable(context.Background(), "newname")
	require.NoError(t, err)
	assert.True(t, available)
	assert.Nil(t, account)
}

func TestCheckUsernameAvailable_Taken(t *testing.T) {
	f := newAuthFixture()
	existing := sampleSetupAccount()

	f.accountRepo.On("GetByUsername", mock.Anything, existing.Username).Return(existing, nil)

	account, available, err := f.svc.CheckUsernameAvailable(context.Background(), existing.Username)
	require.NoError(t, err)
	assert.False(t, available)
	assert.Equal(t, existing, account)
}

func TestCheckUsernameAvailable_CaseSensitive(t *testing.T) {
	f := newAuthFixture()
	existing := sampleSetupAccount() // username "alice96"

	// Lookups are exact: no case folding happens anywhere between the
	// request and the store, so "Alice96" and "alice96" are distinct names.
	f.accountRepo.On("GetByUsername", mock.Anything, "alice96").Return(existing, nil)
	f.accountRepo.On("GetByUsername", mock.Anything, "Alice96").Return(nil, apperrors.ErrNotFound)

	_, available, err := f.svc.CheckUsernameAvailable(context.Background(), "alice96")
	require.NoError(t, err)
	assert.False(t, available)

	_, available, err = f.svc.CheckUsernameAvailable(context.Background(), "Alice96")
	require.NoError(t, err)
	assert.True(t, available)

	f.accountRepo.AssertCalled(t, "GetByUsername", mock.Anything, "Alice96")
	f.accountRepo.AssertExpectations(t)
}

func TestCheckUsernameAvailable_StoreError(t *testing.T) {
	f := newAuthFixture()

	f.accountRepo.On("GetByUsername", mock.Anything, "newname").Return(nil, errors.New("connection reset"))

	_, available, err := f.svc.CheckUsernameAvailable(context.Background(), "newname")
	assert.False(t, available)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
}

// --- Rotate Tests ---

func issueTestPair(t *testing.T, f *authFixture, user *domain.User) (*domain.TokenPair, time.Time) {
	t.Helper()
	pair, expiry, err := f.tokens.IssuePair(user.ID, user.Email)
	require.NoError(t, err)
	return pair, expiry
}

func TestRotate_Success(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, expiry := issueTestPair(t, f, user)

	stored := &domain.RefreshToken{
		ID:        "rt-1",
		UserID:    user.ID,
		ExpiresAt: expiry,
		UserEmail: user.Email,
	}

	f.refreshRepo.On("GetByToken", mock.Anything, pair.RefreshToken).Return(stored, nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	f.refreshRepo.On("Delete", mock.Anything, pair.RefreshToken).Return(true, nil)

	newPair, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	assert.NotEmpty(t, newPair.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	claims, err := f.tokens.ValidateAccessToken(newPair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)

	f.refreshRepo.AssertExpectations(t)
}

func TestRotate_EmptyToken(t *testing.T) {
	f := newAuthFixture()

	pair, err := f.svc.Rotate(context.Background(), "")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestRotate_TamperedToken(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	tampered := pair.RefreshToken[:len(pair.RefreshToken)-4] + "XXXX"

	got, err := f.svc.Rotate(context.Background(), tampered)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	f.refreshRepo.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
}

func TestRotate_UnknownPersistedToken(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	f.refreshRepo.On("GetByToken", mock.Anything, pair.RefreshToken).Return(nil, apperrors.ErrNotFound)

	got, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestRotate_UserMismatch(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, expiry := issueTestPair(t, f, user)

	stored := &domain.RefreshToken{
		ID:        "rt-1",
		UserID:    "someone-else",
		ExpiresAt: expiry,
		UserEmail: "other@example.com",
	}
	f.refreshRepo.On("GetByToken", mock.Anything, pair.RefreshToken).Return(stored, nil)

	got, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	f.refreshRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRotate_PersistedExpiryPassed(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	stored := &domain.RefreshToken{
		ID:        "rt-1",
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
		UserEmail: user.Email,
	}
	f.refreshRepo.On("GetByToken", mock.Anything, pair.RefreshToken).Return(stored, nil)
	f.refreshRepo.On("Delete", mock.Anything, pair.RefreshToken).Return(true, nil)

	got, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
	f.refreshRepo.AssertCalled(t, "Delete", mock.Anything, pair.RefreshToken)
}

func TestRotate_ExpiredSignature(t *testing.T) {
	f := newAuthFixture()
	// A manager whose refresh tokens are born expired.
	f.tokens = newTestTokenManager(-time.Minute)
	f.svc = NewAuthService(
		f.userRepo, f.accountRepo, f.refreshRepo, f.sessionRepo,
		f.accessTokens, f.tokens, f.exchanger, f.producer, newTestLogger(),
	)

	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	f.refreshRepo.On("Delete", mock.Anything, pair.RefreshToken).Return(true, nil)

	got, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
	f.refreshRepo.AssertCalled(t, "Delete", mock.Anything, pair.RefreshToken)
}

func TestRotate_NewTokenPersistFailureDeletesNothing(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, expiry := issueTestPair(t, f, user)

	stored := &domain.RefreshToken{
		ID:        "rt-1",
		UserID:    user.ID,
		ExpiresAt: expiry,
		UserEmail: user.Email,
	}
	f.refreshRepo.On("GetByToken", mock.Anything, pair.RefreshToken).Return(stored, nil)
	f.refreshRepo.On("Create", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(errors.New("connection reset"))

	got, err := f.svc.Rotate(context.Background(), pair.RefreshToken)
	assert.Nil(t, got)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
	f.refreshRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- Logout Tests ---

func TestLogout_DeletesRefreshAndRevokesAccess(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	f.refreshRepo.On("Delete", mock.Anything, pair.RefreshToken).Return(true, nil)
	f.accessTokens.On("Revoke", mock.Anything, pair.AccessToken, mock.AnythingOfType("time.Duration")).Return(true, nil)

	err := f.svc.Logout(context.Background(), pair.RefreshToken, pair.AccessToken)
	require.NoError(t, err)

	f.refreshRepo.AssertExpectations(t)
	f.accessTokens.AssertExpectations(t)
}

func TestLogout_AbsentRefreshStillSucceeds(t *testing.T) {
	f := newAuthFixture()

	f.refreshRepo.On("Delete", mock.Anything, "already-gone").Return(false, nil)

	err := f.svc.Logout(context.Background(), "already-gone", "")
	assert.NoError(t, err)
}

func TestLogout_DenylistFailureStillSucceeds(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	f.refreshRepo.On("Delete", mock.Anything, pair.RefreshToken).Return(true, nil)
	f.accessTokens.On("Revoke", mock.Anything, pair.AccessToken, mock.AnythingOfType("time.Duration")).
		Return(false, errors.New("redis down"))

	err := f.svc.Logout(context.Background(), pair.RefreshToken, pair.AccessToken)
	assert.NoError(t, err)
}

// --- ValidateAccess Tests ---

func TestValidateAccess_Valid(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	f.accessTokens.On("IsRevoked", mock.Anything, pair.AccessToken).Return(false, nil)

	claims, err := f.svc.ValidateAccess(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestValidateAccess_Revoked(t *testing.T) {
	f := newAuthFixture()
	user := sampleUser()
	pair, _ := issueTestPair(t, f, user)

	f.accessTokens.On("IsRevoked", mock.Anything, pair.AccessToken).Return(true, nil)

	claims, err := f.svc.ValidateAccess(context.Background(), pair.AccessToken)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestValidateAccess_Garbage(t *testing.T) {
	f := newAuthFixture()

	claims, err := f.svc.ValidateAccess(context.Background(), "not-a-jwt")
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	f.accessTokens.AssertNotCalled(t, "IsRevoked", mock.Anything, mock.Anything)
}
