package api

import (
	"encoding/json"
	"strconv"
	"time"

	"SigRelay/internal/domain/models"
	"SigRelay/internal/service/cache"
	"SigRelay/internal/usecase"
	xhttp "SigRelay/pkg/http"
	xlogger "SigRelay/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ListenerHandler exposes channel subscription, the recent-message window
// and the aggregate status view.
type ListenerHandler struct {
	logger   *xlogger.Logger
	listener *usecase.ChannelListener
	relay    *usecase.SignalRelay
	status   *usecase.StatusAggregator
	cache    cache.BytesCache
}

func NewListenerHandler(logger *xlogger.Logger, listener *usecase.ChannelListener, relay *usecase.SignalRelay, status *usecase.StatusAggregator, bc cache.BytesCache) *ListenerHandler {
	return &ListenerHandler{logger: logger, listener: listener, relay: relay, status: status, cache: bc}
}

func (h *ListenerHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/listen", h.Listen)
	g.POST("/stop", h.Stop)
	g.GET("/messages", h.Messages)
	g.GET("/status", h.Status)
	g.GET("/signals/history", h.History)
}

func (h *ListenerHandler) Listen(c echo.Context) error {
	req := &models.ListenRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.listener.Listen(c.Request().Context(), req.ChannelID); err != nil {
		h.logger.Error("listen error", xlogger.Int64("channel_id", req.ChannelID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"channel_id": req.ChannelID,
		"listening":  true,
	})
}

func (h *ListenerHandler) Stop(c echo.Context) error {
	h.listener.Stop()
	return xhttp.SuccessResponse(c, map[string]interface{}{"listening": false})
}

// Messages returns the recent window, most recent first. Responses are
// cached briefly since front ends poll this endpoint.
func (h *ListenerHandler) Messages(c echo.Context) error {
	req := &models.MessagesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := "messages:" + strconv.Itoa(req.Limit)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(key); err == nil && ok {
			return c.JSONBlob(200, b)
		}
	}

	signals := h.listener.Recent(req.Limit)
	resp := xhttp.APIResponse{Status: 200, Message: "OK", Data: signals}
	if h.cache != nil {
		if b, err := json.Marshal(resp); err == nil {
			_ = h.cache.SetBytes(key, b, 500*time.Millisecond)
		}
	}
	return c.JSON(200, resp)
}

func (h *ListenerHandler) Status(c echo.Context) error {
	// limit bounds the recent-signals slice in the snapshot
	limit := xhttp.ParseIntDefault(c.QueryParam("signals_limit"), 20)
	snap := h.status.Snapshot(c.Request().Context(), limit)
	return xhttp.SuccessResponse(c, snap)
}

// History reads from the durable archive rather than the in-memory window.
func (h *ListenerHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	signals, err := h.relay.History(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("history error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, signals)
}
