package balance

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
	l := zap.L().Named("balance.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("balance.handler")
	}
	return &Handler{service: service, logger: l}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("balance request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.Error(err),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) GetMine(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	resp, err := h.service.GetBalances(c.Request.Context(), actor.UserID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetMineByType(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	resp, err := h.service.GetBalance(c.Request.Context(), actor.UserID, c.Param("type"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetByUser(c *gin.Context) {
	resp, err := h.service.GetBalances(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Initialize(c *gin.Context) {
	userID := c.Param("id")
	h.logger.Debug("http initialize balances", zap.String("user_id", userID))

	resp, err := h.service.Initialize(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) Set(c *gin.Context) {
	var req SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.service.SetBalance(c.Request.Context(), c.Param("id"), c.Param("type"), *req.Balance)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}
