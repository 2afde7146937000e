package auth

import (
	"go-leave/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	auth := r.Group("/auth")
	{
		auth.POST("/signin", middleware.RateLimitByIP(0.2, 5), handler.SignIn)
		auth.POST("/signout", handler.SignOut)
	}
}
