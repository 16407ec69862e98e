package api

import (
	"time"

	"SigRelay/internal/domain/models"
	apimetrics "SigRelay/internal/service/metrics"
	"SigRelay/internal/service/pocketoption"
	"SigRelay/internal/usecase"
	xhttp "SigRelay/pkg/http"
	xlogger "SigRelay/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AccountsHandler exposes the account registry and balance refresh.
type AccountsHandler struct {
	logger    *xlogger.Logger
	registry  *usecase.AccountRegistry
	fetcher   *usecase.BalanceFetcher
	refresher *usecase.BalanceRefresher
}

func NewAccountsHandler(logger *xlogger.Logger, registry *usecase.AccountRegistry, fetcher *usecase.BalanceFetcher, refresher *usecase.BalanceRefresher) *AccountsHandler {
	return &AccountsHandler{logger: logger, registry: registry, fetcher: fetcher, refresher: refresher}
}

func (h *AccountsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/accounts", h.List)
	g.POST("/accounts", h.Add)
	g.GET("/accounts/:name", h.Get)
	g.PUT("/accounts/:name", h.Update)
	g.DELETE("/accounts/:name", h.Delete)
	g.POST("/accounts/:name/rename", h.Rename)
	g.POST("/refresh/:name", h.Refresh)
	g.POST("/refresh", h.RefreshAll)
	g.POST("/refresh/auto/start", h.AutoRefreshStart)
	g.POST("/refresh/auto/stop", h.AutoRefreshStop)
}

func (h *AccountsHandler) List(c echo.Context) error {
	summaries := h.registry.Summaries()
	return xhttp.ListResponse(c, summaries, int64(len(summaries)))
}

func (h *AccountsHandler) Add(c echo.Context) error {
	req := &models.AddAccountRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sizing, err := req.Sizing.Sizing()
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code: "ERR_SIZING", Field: "sizing", Message: err.Error(),
		}})
	}

	ssid, err := pocketoption.PreprocessSSID(req.SSID)
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code: "ERR_SSID", Field: "ssid", Message: err.Error(),
		}})
	}

	a, err := h.registry.Add(c.Request().Context(), req.Name, ssid, sizing)
	if err != nil {
		h.logger.Error("add account error", xlogger.String("name", req.Name), xlogger.Error(err))
		apimetrics.APIErrors.WithLabelValues("accounts_add").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.CreatedResponse(c, a.Summary())
}

func (h *AccountsHandler) Get(c echo.Context) error {
	a, err := h.registry.Get(c.Param("name"))
	if err != nil {
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, a.Summary())
}

func (h *AccountsHandler) Update(c echo.Context) error {
	name := c.Param("name")
	req := &models.UpdateAccountRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var credential *string
	if req.SSID != nil {
		ssid, err := pocketoption.PreprocessSSID(*req.SSID)
		if err != nil {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code: "ERR_SSID", Field: "ssid", Message: err.Error(),
			}})
		}
		credential = &ssid
	}

	var sizing *models.Sizing
	if req.Sizing != nil {
		s, err := req.Sizing.Sizing()
		if err != nil {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code: "ERR_SIZING", Field: "sizing", Message: err.Error(),
			}})
		}
		sizing = &s
	}

	a, err := h.registry.Update(c.Request().Context(), name, credential, sizing)
	if err != nil {
		h.logger.Error("update account error", xlogger.String("name", name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, a.Summary())
}

func (h *AccountsHandler) Delete(c echo.Context) error {
	name := c.Param("name")
	if err := h.registry.Delete(c.Request().Context(), name); err != nil {
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *AccountsHandler) Rename(c echo.Context) error {
	name := c.Param("name")
	req := &models.RenameAccountRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	a, err := h.registry.Rename(c.Request().Context(), name, req.NewName)
	if err != nil {
		h.logger.Error("rename account error",
			xlogger.String("from", name),
			xlogger.String("to", req.NewName),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, a.Summary())
}

// Refresh triggers a synchronous balance fetch for one account.
func (h *AccountsHandler) Refresh(c echo.Context) error {
	start := time.Now()
	name := c.Param("name")

	balance, err := h.fetcher.Fetch(c.Request().Context(), name)
	if err != nil {
		h.logger.Error("refresh balance error", xlogger.String("name", name), xlogger.Error(err))
		apimetrics.APIErrors.WithLabelValues("refresh").Inc()
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	apimetrics.APILatency.WithLabelValues("refresh").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"name":    name,
		"balance": balance,
	})
}

// RefreshAll fetches every account in parallel and reports per-account
// results. In-flight duplicates are reported, not treated as failures.
func (h *AccountsHandler) RefreshAll(c echo.Context) error {
	names := h.registry.Names()
	type result struct {
		name    string
		balance float64
		err     error
	}

	results := make(chan result, len(names))
	for _, name := range names {
		go func(name string) {
			b, err := h.fetcher.Fetch(c.Request().Context(), name)
			results <- result{name: name, balance: b, err: err}
		}(name)
	}

	out := make(map[string]interface{}, len(names))
	for range names {
		r := <-results
		if r.err != nil {
			out[r.name] = map[string]interface{}{"error": r.err.Error()}
			continue
		}
		out[r.name] = map[string]interface{}{"balance": r.balance}
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *AccountsHandler) AutoRefreshStart(c echo.Context) error {
	h.refresher.Start()
	return xhttp.SuccessResponse(c, map[string]interface{}{"auto_refresh": true})
}

func (h *AccountsHandler) AutoRefreshStop(c echo.Context) error {
	h.refresher.Stop()
	return xhttp.SuccessResponse(c, map[string]interface{}{"auto_refresh": false})
}
