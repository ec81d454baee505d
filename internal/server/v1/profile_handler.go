package v1

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/threadwell/loom/internal/config"
	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/probe"
	"github.com/threadwell/loom/internal/router"
	"github.com/threadwell/loom/internal/server/middleware"
	"github.com/threadwell/loom/internal/server/validator"
	"github.com/threadwell/loom/pkg/api"
)

type ProfileHandler struct {
	resolver *config.Resolver
	router   *router.Router
	prober   *probe.Prober
}

func NewProfileHandler(resolver *config.Resolver, r *router.Router, p *probe.Prober) *ProfileHandler {
	return &ProfileHandler{resolver: resolver, router: r, prober: p}
}

// List returns the active profile set.
func (h *ProfileHandler) List(c *gin.Context) {
	cfg, err := h.resolver.Resolve()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profiles": redactAll(cfg.Profiles),
		"default":  cfg.DefaultProfileID,
	})
}

type saveProfileRequest struct {
	Scope   config.Scope   `json:"scope" binding:"omitempty,oneof=project global"`
	Profile domain.Profile `json:"profile" binding:"required"`
}

// Save upserts a profile into the project or global file.
func (h *ProfileHandler) Save(c *gin.Context) {
	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&middleware.ValidationFailure{Fields: validator.ParseError(err)})
		return
	}
	if req.Scope == "" {
		req.Scope = config.ScopeProject
	}

	if err := h.resolver.SaveProfile(req.Scope, req.Profile); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": redact(req.Profile), "scope": req.Scope})
}

type setDefaultRequest struct {
	Scope config.Scope `json:"scope" binding:"omitempty,oneof=project global"`
}

// SetDefault records the scoped file's default profile.
func (h *ProfileHandler) SetDefault(c *gin.Context) {
	var req setDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&middleware.ValidationFailure{Fields: validator.ParseError(err)})
		return
	}
	if req.Scope == "" {
		req.Scope = config.ScopeProject
	}

	if err := h.resolver.SetDefaultProfile(req.Scope, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"default": c.Param("id"), "scope": req.Scope})
}

// Probe checks connectivity for one profile. The result is always 200;
// failure lives inside the normalized body, not the status code.
func (h *ProfileHandler) Probe(c *gin.Context) {
	profile, ok := h.findProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.prober.Check(c.Request.Context(), profile))
}

// ProbeAll fans out over every active profile concurrently and returns a
// map of id to result.
func (h *ProfileHandler) ProbeAll(c *gin.Context) {
	cfg, err := h.resolver.Resolve()
	if err != nil {
		_ = c.Error(err)
		return
	}

	results := make(map[string]domain.ProbeResult, len(cfg.Profiles))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range cfg.Profiles {
		wg.Add(1)
		go func(p domain.Profile) {
			defer wg.Done()
			result := h.prober.Check(c.Request.Context(), p)
			mu.Lock()
			results[p.ID] = result
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	c.JSON(http.StatusOK, results)
}

// Models discovers remote models for one profile.
func (h *ProfileHandler) Models(c *gin.Context) {
	profile, ok := h.findProfile(c)
	if !ok {
		return
	}

	models, err := h.router.Models(c.Request.Context(), profile)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.ModelsResponse{Profile: profile.ID, Models: models})
}

func (h *ProfileHandler) findProfile(c *gin.Context) (domain.Profile, bool) {
	cfg, err := h.resolver.Resolve()
	if err != nil {
		_ = c.Error(err)
		return domain.Profile{}, false
	}

	profile, ok := cfg.Profile(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, api.ErrorResponse{
			Error: "no profile " + c.Param("id"),
			Hint:  "list profiles to see what is configured",
		})
		return domain.Profile{}, false
	}
	return profile, true
}

// redact blanks credentials before a profile leaves the process.
func redact(p domain.Profile) domain.Profile {
	if p.APIKey != "" {
		p.APIKey = "********"
	}
	return p
}

func redactAll(profiles []domain.Profile) []domain.Profile {
	out := make([]domain.Profile, len(profiles))
	for i, p := range profiles {
		out[i] = redact(p)
	}
	return out
}
