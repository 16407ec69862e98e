package api

import (
	"time"

	"SigRelay/internal/domain/models"
	apimetrics "SigRelay/internal/service/metrics"
	"SigRelay/internal/service/ratelimit"
	"SigRelay/internal/usecase"
	xhttp "SigRelay/pkg/http"
	xlogger "SigRelay/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AuthHandler exposes the login state machine over HTTP.
type AuthHandler struct {
	logger  *xlogger.Logger
	auth    *usecase.AuthSession
	limiter *ratelimit.Limiter
}

func NewAuthHandler(logger *xlogger.Logger, auth *usecase.AuthSession, limiter *ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{logger: logger, auth: auth, limiter: limiter}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/telegram")
	g.POST("/login", h.Login)
	g.POST("/verify_code", h.VerifyCode)
	g.POST("/verify_password", h.VerifyPassword)
	g.POST("/logout", h.Logout)
	g.GET("/status", h.Status)
}

// Login starts a fresh code request for a phone number. Valid only from
// the not_authenticated state.
func (h *AuthHandler) Login(c echo.Context) error {
	start := time.Now()
	req := &models.StartLoginRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// local throttle before the platform's own flood control kicks in
	if h.limiter != nil && !h.limiter.Allow("login:"+req.Phone, 3, 1.0/60) {
		return xhttp.AppErrorResponse(c, mapDomainError(models.ErrRateLimited))
	}

	if err := h.auth.Start(c.Request().Context(), req.Phone); err != nil {
		h.logger.Error("login start error", xlogger.Error(err))
		apimetrics.APIErrors.WithLabelValues("login").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	apimetrics.APILatency.WithLabelValues("login").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, h.auth.Status())
}

func (h *AuthHandler) VerifyCode(c echo.Context) error {
	req := &models.VerifyCodeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.auth.VerifyCode(c.Request().Context(), req.Code); err != nil {
		h.logger.Error("verify code error", xlogger.Error(err))
		apimetrics.APIErrors.WithLabelValues("verify_code").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, h.auth.Status())
}

func (h *AuthHandler) VerifyPassword(c echo.Context) error {
	req := &models.VerifyPasswordRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.auth.VerifyPassword(c.Request().Context(), req.Password); err != nil {
		h.logger.Error("verify password error", xlogger.Error(err))
		apimetrics.APIErrors.WithLabelValues("verify_password").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, h.auth.Status())
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context()); err != nil {
		h.logger.Error("logout error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, h.auth.Status())
}

func (h *AuthHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.auth.Status())
}
