package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threadwell/loom/internal/config"
)

type ConfigHandler struct {
	resolver *config.Resolver
}

func NewConfigHandler(resolver *config.Resolver) *ConfigHandler {
	return &ConfigHandler{resolver: resolver}
}

// Show returns the effective resolved configuration with per-key
// provenance, credentials redacted.
func (h *ConfigHandler) Show(c *gin.Context) {
	cfg, err := h.resolver.Resolve()
	if err != nil {
		_ = c.Error(err)
		return
	}

	view := *cfg
	view.Profiles = redactAll(cfg.Profiles)
	c.JSON(http.StatusOK, view)
}
