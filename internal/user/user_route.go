package user

import (
	"go-leave/internal/middleware"
	"go-leave/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService rbac.Service,
) {
	users := r.Group("/users")
	{
		users.GET("",
			middleware.RBACAuthorize(rbacService, rbac.ResourceUser, rbac.ActionReadAll),
			handler.GetAll,
		)

		users.GET("/:id",
			middleware.RBACAuthorize(rbacService, rbac.ResourceUser, rbac.ActionReadAll),
			handler.GetByID,
		)

		users.POST("",
			middleware.RateLimitByUser(0.5, 5),
			middleware.RBACAuthorize(rbacService, rbac.ResourceUser, rbac.ActionCreate),
			handler.Create,
		)

		users.PUT("/:id",
			middleware.RateLimitByUser(0.5, 5),
			middleware.RBACAuthorize(rbacService, rbac.ResourceUser, rbac.ActionUpdate),
			handler.Update,
		)

		users.DELETE("/:id",
			middleware.RateLimitByUser(0.5, 5),
			middleware.RBACAuthorize(rbacService, rbac.ResourceUser, rbac.ActionDelete),
			handler.Delete,
		)
	}
}
