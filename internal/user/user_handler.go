package user

import (
	"net/http"
	"strings"

	"go-leave/internal/middleware"
	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("user.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("user.handler")
	}
	return &Handler{svc: service, logger: l}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("user request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}
	h.logger.Debug("http create user", zap.String("username", req.Username))

	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) GetAll(c *gin.Context) {
	resp, err := h.svc.GetAll(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	q := strings.TrimSpace(strings.ToLower(c.Query("q")))
	if q != "" {
		filtered := make([]UserResponse, 0, len(resp))
		for _, u := range resp {
			if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Name), q) {
				filtered = append(filtered, u)
			}
		}
		resp = filtered
	}

	page, pageSize := response.PageParams(c)
	items, meta := response.Paginate(resp, page, pageSize)
	response.Success(c, http.StatusOK, items, &meta)
}

func (h *Handler) GetByID(c *gin.Context) {
	resp, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}
	id := c.Param("id")
	h.logger.Debug("http update user", zap.String("user_id", id))

	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Delete(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	id := c.Param("id")
	h.logger.Debug("http delete user", zap.String("user_id", id), zap.String("actor_id", actor.UserID))

	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true}, nil)
}
