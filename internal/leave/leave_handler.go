package leave

import (
	"net/http"

	"go-leave/internal/middleware"
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
	l := zap.L().Named("leave.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.handler")
	}
	return &Handler{service: service, logger: l}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("leave request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Submit(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	h.logger.Debug("http submit leave", zap.String("user_id", actor.UserID))

	var req SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http submit leave validation failed", zap.Error(err))
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) GetAll(c *gin.Context) {
	filter, err := ParseFilter(
		c.Query("search"),
		c.Query("start_date"),
		c.Query("end_date"),
		c.Query("sort_by"),
	)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp, err := h.service.GetAll(c.Request.Context(), filter)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	page, pageSize := response.PageParams(c)
	items, meta := response.Paginate(resp, page, pageSize)
	response.Success(c, http.StatusOK, items, &meta)
}

func (h *Handler) GetMine(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	resp, err := h.service.GetByUserID(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetByID(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	resp, err := h.service.GetByID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetByUser(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	resp, err := h.service.GetByUserID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Decide(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	id := c.Param("id")

	var req DecideLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http decide leave validation failed", zap.Error(err))
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}
	h.logger.Debug("http decide leave",
		zap.String("leave_id", id),
		zap.String("actor_id", actor.UserID),
		zap.Bool("approve", *req.Approve),
	)

	resp, err := h.service.Decide(c.Request.Context(), actor, id, *req.Approve)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Cancel(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	id := c.Param("id")
	h.logger.Debug("http cancel leave", zap.String("leave_id", id), zap.String("actor_id", actor.UserID))

	resp, err := h.service.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}
