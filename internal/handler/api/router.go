package api

import (
	"context"
	"net/http"
	"time"

	apimetrics "SigRelay/internal/service/metrics"
	xhttp "SigRelay/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports one dependency's health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router aggregates all API handlers behind one route registrar.
type Router struct {
	auth     *AuthHandler
	listener *ListenerHandler
	accounts *AccountsHandler
	checks   map[string]HealthChecker
}

func NewRouter(auth *AuthHandler, listener *ListenerHandler, accounts *AccountsHandler) *Router {
	return &Router{
		auth:     auth,
		listener: listener,
		accounts: accounts,
		checks:   make(map[string]HealthChecker),
	}
}

// AddHealthCheck registers a named dependency for /healthz.
func (r *Router) AddHealthCheck(name string, hc HealthChecker) {
	if hc != nil {
		r.checks[name] = hc
	}
}

var _ xhttp.Handler = (*Router)(nil)

func (r *Router) RegisterRoutes(e *echo.Echo) {
	apimetrics.Register()
	r.auth.RegisterRoutes(e)
	r.listener.RegisterRoutes(e)
	r.accounts.RegisterRoutes(e)
	e.GET("/healthz", r.Healthz)
}

func (r *Router) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(r.checks))
	for name, hc := range r.checks {
		if err := hc.Health(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	return c.JSON(status, map[string]interface{}{
		"status": http.StatusText(status),
		"deps":   deps,
	})
}
