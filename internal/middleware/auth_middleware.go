package middleware

import (
	"errors"
	"fmt"
	"strings"

	autherrors "go-leave/internal/auth/errors"
	"go-leave/internal/domain"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/contextutil"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func abortWith(c *gin.Context, err *apperror.AppError) {
	response.Error(c, err.HTTPStatus, err.Code, err.Message, nil)
	c.Abort()
}

// AuthMiddleware validates an HS256 bearer token (or the access_token cookie)
// and publishes user_id and role to both the gin and the request context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found {
			tokenString = ""
		}

		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			abortWith(c, autherrors.ErrTokenNotFound)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWith(c, autherrors.ErrTokenExpired)
				return
			}
			abortWith(c, autherrors.ErrInvalidToken)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortWith(c, autherrors.ErrInvalidToken)
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			abortWith(c, autherrors.ErrInvalidToken)
			return
		}

		rawRole, _ := claims["role"].(string)
		role := domain.NormalizeRole(rawRole)
		if role == "" {
			abortWith(c, autherrors.ErrInvalidToken)
			return
		}

		c.Set("user_id", userID)
		c.Set("role", role)

		ctx := c.Request.Context()
		ctx = contextutil.WithUserID(ctx, userID)
		ctx = contextutil.WithRole(ctx, role)
		ctx = contextutil.WithLogger(ctx, contextutil.GetLogger(ctx, zap.L()).With(
			zap.String("user_id", userID),
			zap.String("role", role),
		))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// ActorFrom returns the authenticated caller set by AuthMiddleware.
func ActorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		UserID: c.GetString("user_id"),
		Role:   c.GetString("role"),
	}
}
