package middleware

import (
	"net/http"

	"go-leave/internal/domain"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// RBACService is satisfied by anything that can answer an EnforceRequest.
type RBACService interface {
	Enforce(req domain.EnforceRequest) (bool, error)
}

func RBACAuthorize(service RBACService, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get("role")
		if !ok {
			abortWith(c, apperror.ErrUnauthorized)
			return
		}

		allowed, err := service.Enforce(domain.EnforceRequest{
			Role:     role.(string),
			Resource: resource,
			Action:   action,
		})
		if err != nil {
			response.Error(c, http.StatusInternalServerError, apperror.CodeInternalError, apperror.ErrInternal.Message, nil)
			c.Abort()
			return
		}

		if !allowed {
			response.Error(c, http.StatusForbidden, apperror.CodeForbidden, apperror.ErrForbidden.Message, gin.H{
				"required": resource + ":" + action,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
