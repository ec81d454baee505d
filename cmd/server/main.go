package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/threadwell/loom/internal/config"
	"github.com/threadwell/loom/internal/llm/local"
	"github.com/threadwell/loom/internal/logger"
	"github.com/threadwell/loom/internal/platform/otel"
	"github.com/threadwell/loom/internal/probe"
	"github.com/threadwell/loom/internal/router"
	"github.com/threadwell/loom/internal/server"
	"github.com/threadwell/loom/internal/version"

	// Adapter packages register themselves via init.
	_ "github.com/threadwell/loom/internal/llm/anthropic"
	_ "github.com/threadwell/loom/internal/llm/lmstudio"
	_ "github.com/threadwell/loom/internal/llm/ollama"
	_ "github.com/threadwell/loom/internal/llm/openai"
	_ "github.com/threadwell/loom/internal/llm/vendorcli"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
)

func main() {
	_ = godotenv.Load()

	logger.Initialize(os.Getenv("LOOM_ENV"))
	defer logger.Sync()
	log := logger.Get()

	version.CheckForUpdates()

	shutdownTracer, err := otel.InitTracer("loom", log, os.Stderr)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// No embedded engine in the server build; local profiles stay
	// listable and fail with an actionable error when routed to.
	llm.Register(domain.KindLocal, local.Factory(nil))

	resolver := config.NewResolver()
	rt := router.New()
	prober := probe.New()

	srv := server.New(log, resolver, rt, prober)

	port := os.Getenv("LOOM_PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("starting server", zap.String("port", port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	if err := shutdownTracer(ctx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}
}
