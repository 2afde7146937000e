package balance

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
	mine := r.Group("/balances/me")
	{
		mine.GET("", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionReadOwn), handler.GetMine)
		mine.GET("/:type", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionReadOwn), handler.GetMineByType)
	}

	users := r.Group("/users/:id/balances")
	{
		users.GET("", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionReadAll), handler.GetByUser)
		users.POST("/initialize", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionInitialize), handler.Initialize)
		users.PUT("/:type", middleware.RBACAuthorize(rbacService, rbac.ResourceBalance, rbac.ActionAdjust), handler.Set)
	}
}
