package auth

import (
	"net/http"
	"strings"
	"time"

	"go-leave/internal/shared/apperror"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service      Service
	secureCookie bool
	logger       *zap.Logger
}

func NewHandler(s Service, secureCookie bool, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("auth.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("auth.handler")
	}
	return &Handler{service: s, secureCookie: secureCookie, logger: l}
}

// SignIn returns the token in the body; browser clients sending
// X-Client-Type: web also get it as an HttpOnly cookie.
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpErr := apperror.ToHTTP(apperror.MapValidationError(err))
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}

	resp, err := h.service.SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		h.logger.Warn("sign in failed", zap.Int("status", httpErr.Status), zap.String("code", httpErr.Code))
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, nil)
		return
	}

	if strings.EqualFold(c.GetHeader("X-Client-Type"), "web") {
		maxAge := 0
		if exp, err := time.Parse(time.RFC3339, resp.ExpiresAt); err == nil {
			maxAge = int(time.Until(exp).Seconds())
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     "access_token",
			Value:    resp.AccessToken,
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) SignOut(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.Success(c, http.StatusOK, gin.H{"signed_out": true}, nil)
}
