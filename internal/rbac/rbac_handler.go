package rbac

import (
	"net/http"
	"strings"

	"go-leave/internal/domain"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("rbac.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("rbac.handler")
	}
	return &Handler{service: service, logger: l}
}

type checkRequest struct {
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

// Enforce answers whether the caller's own role may perform resource:action.
func (h *Handler) Enforce(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpErr := apperror.ToHTTP(apperror.MapValidationError(err))
		response.Error(c, httpErr.Status, apperror.CodeValidation, httpErr.Message, nil)
		return
	}

	allowed, err := h.service.Enforce(domain.EnforceRequest{
		Role:     c.GetString("role"),
		Resource: strings.TrimSpace(req.Resource),
		Action:   strings.TrimSpace(req.Action),
	})
	if err != nil {
		h.logger.Error("http rbac enforce failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, apperror.CodeInternalError, apperror.ErrInternal.Message, nil)
		return
	}

	response.Success(c, http.StatusOK, domain.EnforceResponse{Allowed: allowed}, nil)
}

func (h *Handler) MyPermissions(c *gin.Context) {
	role := c.GetString("role")

	perms, err := h.service.PermissionsForRole(role)
	if err != nil {
		h.logger.Error("http list permissions failed", zap.String("role", role), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, apperror.CodeInternalError, apperror.ErrInternal.Message, nil)
		return
	}

	response.Success(c, http.StatusOK, domain.RolePermissionsResponse{
		Role:        domain.NormalizeRole(role),
		Permissions: perms,
	}, nil)
}
