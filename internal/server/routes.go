package server

import (
	"github.com/threadwell/loom/internal/server/middleware"
	v1 "github.com/threadwell/loom/internal/server/v1"
)

func (s *Server) setupRoutes() {
	healthHandler := v1.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)

	api := s.engine.Group("/v1")
	api.Use(middleware.NewRateLimiter(100, 200, s.logger).Middleware())
	{
		routeHandler := v1.NewRouteHandler(s.resolver, s.router)
		api.POST("/generate", routeHandler.Generate)
		api.POST("/chat", routeHandler.Chat)
		api.POST("/complete", routeHandler.Complete)

		profileHandler := v1.NewProfileHandler(s.resolver, s.router, s.prober)
		api.GET("/profiles", profileHandler.List)
		api.POST("/profiles", profileHandler.Save)
		api.POST("/profiles/:id/default", profileHandler.SetDefault)
		api.POST("/profiles/:id/probe", profileHandler.Probe)
		api.POST("/probe", profileHandler.ProbeAll)
		api.GET("/profiles/:id/models", profileHandler.Models)

		configHandler := v1.NewConfigHandler(s.resolver)
		api.GET("/config", configHandler.Show)
	}
}
