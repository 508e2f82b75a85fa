package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
	"collaborative-ideation/internal/repository/mocks"
	"collaborative-ideation/internal/service"
)

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, err := service.NewAuthService(mockUserRepo, "very-secret-key", 1)
	require.NoError(t, err, "创建 AuthService 不应失败")

	ctx := context.Background()
	username := "newbie"
	password := "StrongPass123"
	email := "newbie@example.com"

	// Register 在 Save 返回后会清空密码字段，所以在 Run 回调里
	// 先把哈希拷出来，断言放在 Act 之后做，不依赖被改写的指针
	var savedHash string
	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			userArg := args.Get(1).(*domain.User)
			savedHash = userArg.Password
			userArg.ID = 5
			userArg.CreatedAt = time.Now().Add(-time.Second)
			userArg.UpdatedAt = time.Now().Add(-time.Second)
		}).
		Return(nil).Once()

	// Act
	registeredUser, err := authService.Register(ctx, username, password, email)

	// Assert
	assert.NoError(t, err)
	require.NotNil(t, registeredUser)
	assert.Equal(t, uint(5), registeredUser.ID)
	assert.Equal(t, username, registeredUser.Username)
	assert.Equal(t, email, registeredUser.Email)
	assert.Empty(t, registeredUser.Password, "返回的用户密码应为空")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(savedHash), []byte(password)), "密码应被正确哈希")

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_DuplicateEntry(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).
		Return(repository.ErrDuplicateEntry).Once()

	_, err := authService.Register(ctx, "existingUser", "password", "email@test.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed), "错误类型应为 ErrRegistrationFailed")
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_EmptyInput(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	_, err := authService.Register(context.Background(), "", "", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Login_Success(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	secret := "login-secret"
	authService, _ := service.NewAuthService(mockUserRepo, secret, 1)
	ctx := context.Background()

	password := "correct-horse"
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	storedUser := &domain.User{ID: 42, Username: "alice", Password: string(hash)}
	mockUserRepo.On("FindByUsername", ctx, "alice").Return(storedUser, nil).Once()

	token, err := authService.Login(ctx, "alice", password)

	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Token 应携带正确的 user_id claim
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["user_id"])

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("real-password"), bcrypt.DefaultCost)
	storedUser := &domain.User{ID: 7, Username: "bob", Password: string(hash)}
	mockUserRepo.On("FindByUsername", ctx, "bob").Return(storedUser, nil).Once()

	_, err := authService.Login(ctx, "bob", "wrong-password")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "ghost").Return(nil, repository.ErrUserNotFound).Once()

	_, err := authService.Login(ctx, "ghost", "whatever")

	require.Error(t, err)
	// 不暴露账号是否存在，统一返回认证失败
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	mockUserRepo.AssertExpectations(t)
}
