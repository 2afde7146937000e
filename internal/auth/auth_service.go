package auth

import (
	"context"
	"errors"
	"time"

	autherrors "go-leave/internal/auth/errors"
	"go-leave/internal/domain"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/contextutil"
	"go-leave/internal/user"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CredentialStore finds the account behind a username.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*user.User, error)
}

type Service interface {
	SignIn(ctx context.Context, username, password string) (SignInResponse, error)
}

type service struct {
	store  CredentialStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewService(store CredentialStore, secret string, ttl time.Duration, logger ...*zap.Logger) Service {
	l := zap.L().Named("auth.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("auth.service")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: l,
	}
}

// SignIn answers every unknown username and wrong password with the same
// error.
func (s *service) SignIn(ctx context.Context, username, password string) (SignInResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)

	u, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("sign in unknown username", zap.String("username", username))
			return SignInResponse{}, autherrors.ErrInvalidCredentials
		}
		log.Error("sign in lookup failed", zap.Error(err))
		return SignInResponse{}, apperror.StorageUnavailable(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn("sign in wrong password", zap.String("user_id", u.ID.String()))
		return SignInResponse{}, autherrors.ErrInvalidCredentials
	}

	role := domain.NormalizeRole(u.Role)
	if role == "" {
		log.Error("sign in user has unknown role", zap.String("user_id", u.ID.String()), zap.String("role", u.Role))
		return SignInResponse{}, autherrors.ErrInvalidCredentials
	}

	expiresAt := s.now().Add(s.ttl)
	token, err := s.generateToken(u.ID.String(), role, expiresAt)
	if err != nil {
		log.Error("sign in token generation failed", zap.Error(err))
		return SignInResponse{}, autherrors.ErrTokenGenerationFailed
	}

	log.Info("sign in success", zap.String("user_id", u.ID.String()), zap.String("role", role))
	return SignInResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		User: AuthUser{
			ID:       u.ID.String(),
			Username: u.Username,
			Name:     u.Name,
			Role:     role,
		},
	}, nil
}

func (s *service) generateToken(userID, role string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"iat":     s.now().Unix(),
		"exp":     expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
