package diagnostics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kidpech/authbridge/pkg/response"
)

// Pinger is any dependency health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes health + debug endpoints.
type Handler struct {
	buffer  *LogBuffer
	checks  map[string]Pinger
	version string
}

// NewHandler returns handler.
func NewHandler(buffer *LogBuffer, version string, checks map[string]Pinger) *Handler {
	return &Handler{buffer: buffer, checks: checks, version: version}
}

// RegisterPublic attaches non-auth endpoints.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/health", h.health)
}

// RegisterProtected attaches debug endpoints requiring a session.
func (h *Handler) RegisterProtected(rg *gin.RouterGroup) {
	rg.GET("/debug/logs", h.logs)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "version": h.version, "dependencies": deps})
}

func (h *Handler) logs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": h.buffer.Snapshot(response.GetLimit(c, 0, 1000))})
}
