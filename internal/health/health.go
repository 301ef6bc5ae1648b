package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthResponse struct {
	Status        string            `json:"status"`
	ConfigVersion string            `json:"config_version,omitempty"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// HealthChecker reports process liveness plus the state of optional
// dependencies. A failing dependency marks the service degraded with 503.
type HealthChecker struct {
	timeout time.Duration
	version func() string
	checks  map[string]Pinger
}

func NewHealthChecker(timeout time.Duration, version func() string) *HealthChecker {
	return &HealthChecker{timeout: timeout, version: version, checks: make(map[string]Pinger)}
}

// Register adds a named dependency check. Nil pingers are ignored.
func (h *HealthChecker) Register(name string, p Pinger) {
	if p != nil {
		h.checks[name] = p
	}
}

func (h *HealthChecker) Handler(c *gin.Context) {
	response := HealthResponse{Status: "ok"}
	if h.version != nil {
		response.ConfigVersion = h.version()
	}

	status := http.StatusOK
	if len(h.checks) > 0 {
		response.Checks = make(map[string]string, len(h.checks))
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		for name, p := range h.checks {
			if err := p.Ping(ctx); err != nil {
				response.Checks[name] = err.Error()
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			response.Checks[name] = "ok"
		}
	}
	c.JSON(status, response)
}
