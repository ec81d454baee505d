package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threadwell/loom/internal/config"
	"github.com/threadwell/loom/internal/router"
	"github.com/threadwell/loom/internal/server/middleware"
	"github.com/threadwell/loom/internal/server/validator"
	"github.com/threadwell/loom/pkg/api"
)

// RouteHandler serves the routed operations. Configuration is resolved
// per request so writes and environment changes take effect without a
// restart.
type RouteHandler struct {
	resolver *config.Resolver
	router   *router.Router
}

func NewRouteHandler(resolver *config.Resolver, r *router.Router) *RouteHandler {
	return &RouteHandler{resolver: resolver, router: r}
}

func (h *RouteHandler) Generate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&middleware.ValidationFailure{Fields: validator.ParseError(err)})
		return
	}

	cfg, err := h.resolver.Resolve()
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.router.Generate(c.Request.Context(), cfg,
		router.Request{Tags: req.Tags, Pin: req.Profile, Options: req.Options}, req.Prompt)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toRouteResponse(result))
}

func (h *RouteHandler) Chat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&middleware.ValidationFailure{Fields: validator.ParseError(err)})
		return
	}

	cfg, err := h.resolver.Resolve()
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.router.Chat(c.Request.Context(), cfg,
		router.Request{Tags: req.Tags, Pin: req.Profile, Options: req.Options}, req.Messages)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toRouteResponse(result))
}

func (h *RouteHandler) Complete(c *gin.Context) {
	var req api.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&middleware.ValidationFailure{Fields: validator.ParseError(err)})
		return
	}

	cfg, err := h.resolver.Resolve()
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.router.Complete(c.Request.Context(), cfg,
		router.Request{Tags: req.Tags, Pin: req.Profile, Options: req.Options}, req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toRouteResponse(result))
}

func toRouteResponse(r *router.Result) api.RouteResponse {
	attempts := make([]api.AttemptInfo, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		attempts = append(attempts, api.AttemptInfo{Profile: a.ProfileID, Reason: a.Err.Error()})
	}
	return api.RouteResponse{
		Output:   r.Output,
		Profile:  r.ProfileID,
		Backend:  string(r.Backend),
		Attempts: attempts,
	}
}
