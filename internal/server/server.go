// Package server assembles the HTTP surface: the gin engine, its
// middleware chain, and the versioned route group.
package server

import (
	"net/http"
	"os"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/threadwell/loom/internal/config"
	"github.com/threadwell/loom/internal/probe"
	"github.com/threadwell/loom/internal/router"
	"github.com/threadwell/loom/internal/server/middleware"
	"github.com/threadwell/loom/internal/server/validator"
)

const serviceName = "loom"

type Server struct {
	engine   *gin.Engine
	logger   *zap.Logger
	resolver *config.Resolver
	router   *router.Router
	prober   *probe.Prober
}

func New(logger *zap.Logger, resolver *config.Resolver, rt *router.Router, prober *probe.Prober) *Server {
	if os.Getenv("LOOM_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Init()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(middleware.ErrorHandler(logger))

	s := &Server{
		engine:   engine,
		logger:   logger,
		resolver: resolver,
		router:   rt,
		prober:   prober,
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
