// Package router selects a candidate list from the active profiles by
// tag and priority, and executes operations with fallback on transient
// failure. The chosen candidate is never cached across calls; every
// routed call re-runs selection against the snapshot it was given.
package router

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
	"github.com/threadwell/loom/internal/logger"
	"github.com/threadwell/loom/pkg/api"
)

// Result is the outcome of a routed call, including the failed attempts
// that preceded the success.
type Result struct {
	ProfileID string
	Backend   domain.Kind
	Output    string
	Attempts  []domain.Attempt
}

type Router struct {
	log    *zap.Logger
	tracer trace.Tracer
	build  llm.Factory
}

// Option configures a Router.
type Option func(*Router)

// WithBuilder swaps the adapter constructor, used by tests to inject
// fakes without touching the registry.
func WithBuilder(build llm.Factory) Option {
	return func(r *Router) { r.build = build }
}

func New(opts ...Option) *Router {
	r := &Router{
		log:    logger.Get(),
		tracer: otel.Tracer("loom/router"),
		build:  llm.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Request carries the selection inputs of one routed call.
type Request struct {
	Tags    []string
	Pin     string // profile id; bypasses selection when set
	Options *api.Options
}

func (r *Router) Generate(ctx context.Context, cfg *domain.ResolvedConfig, req Request, prompt string) (*Result, error) {
	return r.route(ctx, cfg, req, "generate", func(ctx context.Context, p llm.Provider) (string, error) {
		return p.Generate(ctx, prompt, req.Options)
	})
}

func (r *Router) Chat(ctx context.Context, cfg *domain.ResolvedConfig, req Request, history []api.Message) (*Result, error) {
	return r.route(ctx, cfg, req, "chat", func(ctx context.Context, p llm.Provider) (string, error) {
		return p.Chat(ctx, history, req.Options)
	})
}

func (r *Router) Complete(ctx context.Context, cfg *domain.ResolvedConfig, req Request, text string) (*Result, error) {
	return r.route(ctx, cfg, req, "complete", func(ctx context.Context, p llm.Provider) (string, error) {
		return p.Complete(ctx, text, req.Options)
	})
}

// Models discovers remote models for one profile; no fallback applies,
// discovery is a direct per-profile question.
func (r *Router) Models(ctx context.Context, profile domain.Profile) ([]api.ModelInfo, error) {
	provider, err := r.build(profile)
	if err != nil {
		return nil, err
	}
	return provider.Models(ctx)
}

type operation func(ctx context.Context, p llm.Provider) (string, error)

func (r *Router) route(ctx context.Context, cfg *domain.ResolvedConfig, req Request, op string, invoke operation) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "router."+op,
		trace.WithAttributes(attribute.StringSlice("route.tags", req.Tags)))
	defer span.End()

	candidates, err := r.candidates(cfg, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var attempts []domain.Attempt
	for _, profile := range candidates {
		output, err := r.tryCandidate(ctx, profile, op, invoke)
		if err == nil {
			span.SetAttributes(
				attribute.String("route.profile", profile.ID),
				attribute.Int("route.attempts", len(attempts)),
			)
			return &Result{
				ProfileID: profile.ID,
				Backend:   profile.Type,
				Output:    output,
				Attempts:  attempts,
			}, nil
		}

		if !domain.IsTransient(err) {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		r.log.Warn("candidate failed, trying next",
			zap.String("op", op),
			zap.String("profile", profile.ID),
			zap.Error(err))
		attempts = append(attempts, domain.Attempt{ProfileID: profile.ID, Err: err})
	}

	failed := &domain.AllProvidersFailedError{Op: op, Attempts: attempts}
	span.SetStatus(codes.Error, failed.Error())
	return nil, failed
}

func (r *Router) tryCandidate(ctx context.Context, profile domain.Profile, op string, invoke operation) (string, error) {
	ctx, span := r.tracer.Start(ctx, "provider."+op, trace.WithAttributes(
		attribute.String("provider.profile", profile.ID),
		attribute.String("provider.kind", string(profile.Type)),
	))
	defer span.End()

	provider, err := r.build(profile)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	output, err := invoke(ctx, provider)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return output, nil
}

// candidates produces the ordered list for one call: pinned profile when
// requested, otherwise tag intersection sorted by ascending priority with
// declaration order breaking ties, falling back to the default profile,
// then the first active one.
func (r *Router) candidates(cfg *domain.ResolvedConfig, req Request) ([]domain.Profile, error) {
	if req.Pin != "" {
		p, ok := cfg.Profile(req.Pin)
		if !ok {
			return nil, domain.ConfigurationError("",
				"pinned profile "+req.Pin+" is not active",
				"list profiles to see what is configured")
		}
		return []domain.Profile{p}, nil
	}

	matched := make([]domain.Profile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		if p.HasAnyTag(req.Tags) {
			matched = append(matched, p)
		}
	}
	if len(matched) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Priority < matched[j].Priority
		})
		return matched, nil
	}

	if def, ok := cfg.Default(); ok {
		r.log.Debug("no tag match, using default profile",
			zap.Strings("tags", req.Tags), zap.String("profile", def.ID))
		return []domain.Profile{def}, nil
	}
	if len(cfg.Profiles) > 0 {
		return []domain.Profile{cfg.Profiles[0]}, nil
	}
	return nil, &domain.NoProviderAvailableError{Tags: req.Tags}
}
