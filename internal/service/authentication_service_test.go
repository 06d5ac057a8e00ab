package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/security"
	"upload-broker/internal/service"
)

// ===== MOCKS =====

// MockUserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, exec sqlx.ExtContext, user *model.User) (*model.User, error) {
	args := m.Called(ctx, exec, user)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByUUID(ctx context.Context, exec sqlx.ExtContext, uuid string) (*model.User, error) {
	args := m.Called(ctx, exec, uuid)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByLogin(ctx context.Context, exec sqlx.ExtContext, login string) (*model.User, error) {
	args := m.Called(ctx, exec, login)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockJWTService
type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) GenerateAccessRefreshTokens(userUUID string, role string) (*model.TokensPair, *model.RefreshToken, error) {
	args := m.Called(userUUID, role)

	var tokens *model.TokensPair
	if t := args.Get(0); t != nil {
		tokens = t.(*model.TokensPair)
	}

	var refresh *model.RefreshToken
	if r := args.Get(1); r != nil {
		refresh = r.(*model.RefreshToken)
	}

	return tokens, refresh, args.Error(2)
}

func (m *MockJWTService) ValidateJWT(tokenString string, secret []byte) (*security.Claims, error) {
	args := m.Called(tokenString, secret)
	if claims, ok := args.Get(0).(*security.Claims); ok {
		return claims, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockJWTRepo
type MockJWTRepo struct {
	mock.Mock
}

func (m *MockJWTRepo) SaveRefreshToken(ctx context.Context, refreshToken *model.RefreshToken) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockJWTRepo) FindByUUID(ctx context.Context, uuid string) (*model.RefreshToken, error) {
	args := m.Called(ctx, uuid)
	if token, ok := args.Get(0).(*model.RefreshToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJWTRepo) MarkRefreshTokenUsedByUUID(ctx context.Context, uuid string) error {
	args := m.Called(ctx, uuid)
	return args.Error(0)
}

// ===== HELPERS =====

func newTestAuthService() (*service.AuthenticationService, *MockUserRepository, *MockJWTService, *MockJWTRepo) {
	mockUserRepo := new(MockUserRepository)
	mockJWTService := new(MockJWTService)
	mockJWTRepo := new(MockJWTRepo)

	cfg := &config.AppConfig{
		JWT: config.JWTConfig{SecretKey: "test-secret"},
	}

	svc := service.NewAuthenticationService(
		mockJWTRepo,
		cfg,
		mockJWTService,
		mockUserRepo,
		nil,
	)

	return svc, mockUserRepo, mockJWTService, mockJWTRepo
}

// ===== TESTS =====

// 1. Пользователь не найден
func TestLogin_UserNotFound(t *testing.T) {
	svc, mockUserRepo, _, _ := newTestAuthService()

	mockUserRepo.On("FindByLogin", mock.Anything, mock.Anything, "operator1").
		Return(nil, errors.New("not found"))

	_, err := svc.Login(context.Background(), "operator1", "pass", "agent", "127.0.0.1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "пользователь не найден")
	mockUserRepo.AssertExpectations(t)
}

// 2. Неверный пароль
func TestLogin_WrongPassword(t *testing.T) {
	svc, mockUserRepo, _, _ := newTestAuthService()

	hash, _ := security.HashPassword("goodpass1")
	user := &model.User{UUID: "u1", PasswordHash: hash, Role: model.RoleEditor}

	mockUserRepo.On("FindByLogin", mock.Anything, mock.Anything, "operator1").
		Return(user, nil)

	_, err := svc.Login(context.Background(), "operator1", "badpass1", "agent", "127.0.0.1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "неверный пароль")
	mockUserRepo.AssertExpectations(t)
}

// 3. Ошибка генерации токенов
func TestLogin_GenerateTokensError(t *testing.T) {
	svc, mockUserRepo, mockJWTService, _ := newTestAuthService()

	hash, _ := security.HashPassword("goodpass1")
	user := &model.User{UUID: "u1", PasswordHash: hash, Role: model.RoleEditor}

	mockUserRepo.On("FindByLogin", mock.Anything, mock.Anything, "operator1").
		Return(user, nil)
	mockJWTService.On("GenerateAccessRefreshTokens", "u1", model.RoleEditor).
		Return(nil, nil, errors.New("token error"))

	_, err := svc.Login(context.Background(), "operator1", "goodpass1", "agent", "127.0.0.1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ошибка генерации токенов")
	mockJWTService.AssertExpectations(t)
}

// 4. Успешный логин, роль попадает в токены
func TestLogin_Success(t *testing.T) {
	svc, mockUserRepo, mockJWTService, mockJWTRepo := newTestAuthService()

	hash, _ := security.HashPassword("goodpass1")
	user := &model.User{UUID: "u1", PasswordHash: hash, Role: model.RoleAdmin}
	tokens := &model.TokensPair{AccessToken: "acc", RefreshToken: "ref"}
	refresh := &model.RefreshToken{
		UUID:     "r1",
		UserUUID: "u1",
		ExpireAt: time.Now().Add(24 * time.Hour),
	}

	mockUserRepo.On("FindByLogin", mock.Anything, mock.Anything, "operator1").
		Return(user, nil)
	mockJWTService.On("GenerateAccessRefreshTokens", "u1", model.RoleAdmin).
		Return(tokens, refresh, nil)
	mockJWTRepo.On("SaveRefreshToken", mock.Anything, refresh).
		Return(nil)

	got, err := svc.Login(context.Background(), "operator1", "goodpass1", "agent", "127.0.0.1")

	assert.NoError(t, err)
	assert.Equal(t, tokens, got)
	assert.Equal(t, "agent", refresh.UserAgent)
	assert.Equal(t, "127.0.0.1", refresh.IpAddress)
	mockJWTRepo.AssertExpectations(t)
}

// 5. Использованный refresh токен отклоняется
func TestRefreshToken_UsedToken(t *testing.T) {
	svc, _, mockJWTService, mockJWTRepo := newTestAuthService()

	claims := &security.Claims{UserUUID: "u1", Role: model.RoleEditor, RefreshTokenUUID: "r1"}
	mockJWTService.On("ValidateJWT", "acc", []byte("test-secret")).Return(claims, nil)
	mockJWTRepo.On("FindByUUID", mock.Anything, "r1").
		Return(&model.RefreshToken{UUID: "r1", Used: true, ExpireAt: time.Now().Add(time.Hour)}, nil)

	_, err := svc.RefreshToken(context.Background(), "agent", "127.0.0.1", "acc", "ref")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "невалидный токен")
}

// 6. Смена User-Agent деавторизует пользователя
func TestRefreshToken_UserAgentChanged(t *testing.T) {
	svc, _, mockJWTService, mockJWTRepo := newTestAuthService()

	claims := &security.Claims{UserUUID: "u1", Role: model.RoleEditor, RefreshTokenUUID: "r1"}
	stored := &model.RefreshToken{
		UUID:      "r1",
		UserUUID:  "u1",
		UserAgent: "old-agent",
		IpAddress: "127.0.0.1",
		ExpireAt:  time.Now().Add(time.Hour),
	}

	mockJWTService.On("ValidateJWT", "acc", []byte("test-secret")).Return(claims, nil)
	mockJWTRepo.On("FindByUUID", mock.Anything, "r1").Return(stored, nil)
	mockJWTRepo.On("MarkRefreshTokenUsedByUUID", mock.Anything, "r1").Return(nil)

	_, err := svc.RefreshToken(context.Background(), "new-agent", "127.0.0.1", "acc", "ref")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "невалидный токен")
	mockJWTRepo.AssertExpectations(t)
}

// 7. Успешное обновление пары токенов
func TestRefreshToken_Success(t *testing.T) {
	svc, _, mockJWTService, mockJWTRepo := newTestAuthService()

	refreshStr := "ref-token-value"
	hashBytes, _ := bcrypt.GenerateFromPassword([]byte(refreshStr), bcrypt.DefaultCost)

	claims := &security.Claims{UserUUID: "u1", Role: model.RoleEditor, RefreshTokenUUID: "r1"}
	stored := &model.RefreshToken{
		UUID:      "r1",
		UserUUID:  "u1",
		TokenHash: string(hashBytes),
		UserAgent: "agent",
		IpAddress: "127.0.0.1",
		ExpireAt:  time.Now().Add(time.Hour),
	}
	newTokens := &model.TokensPair{AccessToken: "acc2", RefreshToken: "ref2"}
	newRefresh := &model.RefreshToken{UUID: "r2", UserUUID: "u1", ExpireAt: time.Now().Add(24 * time.Hour)}

	mockJWTService.On("ValidateJWT", "acc", []byte("test-secret")).Return(claims, nil)
	mockJWTRepo.On("FindByUUID", mock.Anything, "r1").Return(stored, nil)
	mockJWTRepo.On("MarkRefreshTokenUsedByUUID", mock.Anything, "r1").Return(nil)
	mockJWTService.On("GenerateAccessRefreshTokens", "u1", model.RoleEditor).Return(newTokens, newRefresh, nil)
	mockJWTRepo.On("SaveRefreshToken", mock.Anything, newRefresh).Return(nil)

	got, err := svc.RefreshToken(context.Background(), "agent", "127.0.0.1", "acc", refreshStr)

	assert.NoError(t, err)
	assert.Equal(t, newTokens, got)
	mockJWTRepo.AssertExpectations(t)
}

// 8. Logout помечает refresh токен использованным
func TestLogout(t *testing.T) {
	svc, _, _, mockJWTRepo := newTestAuthService()

	mockJWTRepo.On("MarkRefreshTokenUsedByUUID", mock.Anything, "r1").Return(nil)

	err := svc.Logout(context.Background(), "r1")

	assert.NoError(t, err)
	mockJWTRepo.AssertExpectations(t)
}
