package leave

import (
	"go-leave/internal/middleware"
	"go-leave/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the leave endpoints. submitGuards run before Submit,
// typically the idempotency middleware.
func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService rbac.Service,
	submitGuards ...gin.HandlerFunc,
) {
	submit := append([]gin.HandlerFunc{
		middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionCreate),
	}, submitGuards...)
	submit = append(submit, handler.Submit)

	leaves := r.Group("/leaves")
	{
		leaves.GET("", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionReadAll), handler.GetAll)
		leaves.GET("/me", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionReadOwn), handler.GetMine)
		leaves.GET("/:id", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionReadOwn), handler.GetByID)
		leaves.POST("", submit...)
		leaves.POST("/:id/decision", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionDecide), handler.Decide)
		leaves.DELETE("/:id", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionCancel), handler.Cancel)
	}

	r.GET("/users/:id/leaves", middleware.RBACAuthorize(rbacService, rbac.ResourceLeave, rbac.ActionReadOwn), handler.GetByUser)
}
