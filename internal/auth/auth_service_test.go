package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-leave/internal/auth"
	autherrors "go-leave/internal/auth/errors"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/user"
	userMock "go-leave/internal/user/mock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func hashedUser(t *testing.T, password, role string) *user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &user.User{
		ID:           uuid.New(),
		Username:     "alice",
		Name:         "Alice",
		Role:         role,
		PasswordHash: string(hash),
	}
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues a token the middleware can read", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := userMock.NewMockRepository(ctrl)
		u := hashedUser(t, "correct-horse", "manager")
		repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(u, nil)

		svc := auth.NewService(repo, testSecret, time.Hour)
		resp, err := svc.SignIn(ctx, "alice", "correct-horse")

		require.NoError(t, err)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, u.ID.String(), resp.User.ID)
		assert.Equal(t, "MANAGER", resp.User.Role)

		token, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (interface{}, error) {
			return []byte(testSecret), nil
		})
		require.NoError(t, err)
		claims := token.Claims.(jwt.MapClaims)
		assert.Equal(t, u.ID.String(), claims["user_id"])
		assert.Equal(t, "MANAGER", claims["role"])

		exp, err := claims.GetExpirationTime()
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), exp.Time, time.Minute)
	})

	t.Run("unknown username", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := userMock.NewMockRepository(ctrl)
		repo.EXPECT().FindByUsername(gomock.Any(), "ghost").Return(nil, gorm.ErrRecordNotFound)

		svc := auth.NewService(repo, testSecret, time.Hour)
		_, err := svc.SignIn(ctx, "ghost", "whatever")

		assert.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := userMock.NewMockRepository(ctrl)
		repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(hashedUser(t, "correct-horse", "EMPLOYEE"), nil)

		svc := auth.NewService(repo, testSecret, time.Hour)
		_, err := svc.SignIn(ctx, "alice", "battery-staple")

		assert.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("unknown role is refused", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := userMock.NewMockRepository(ctrl)
		repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(hashedUser(t, "correct-horse", "INTERN"), nil)

		svc := auth.NewService(repo, testSecret, time.Hour)
		_, err := svc.SignIn(ctx, "alice", "correct-horse")

		assert.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("storage failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := userMock.NewMockRepository(ctrl)
		repo.EXPECT().FindByUsername(gomock.Any(), "alice").Return(nil, errors.New("connection refused"))

		svc := auth.NewService(repo, testSecret, time.Hour)
		_, err := svc.SignIn(ctx, "alice", "correct-horse")

		assert.Equal(t, apperror.CodeStorageUnavailable, apperror.CodeOf(err))
	})
}
