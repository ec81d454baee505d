// Package probe checks connectivity for configured profiles. A probe
// never returns an error: every outcome, including panics in the layers
// below it, folds into the normalized ProbeResult shape.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/httpclient"
	"github.com/threadwell/loom/internal/logger"
)

const (
	// DefaultTimeout bounds one probe against a network backend.
	DefaultTimeout = 5 * time.Second
	// EngineReadyTimeout bounds waiting for the embedded engine, which
	// may be loading weights.
	EngineReadyTimeout = 30 * time.Second

	anthropicVersion = "2023-06-01"
)

// EngineChecker reports readiness of the embedded inference engine.
// Implementations may block until the engine is loaded or ctx expires.
type EngineChecker interface {
	Ready(ctx context.Context) error
	ModelID() string
}

type Prober struct {
	client  httpclient.HTTPClient
	engine  EngineChecker
	timeout time.Duration
	log     *zap.Logger
}

// Option configures a Prober.
type Option func(*Prober)

func WithClient(c httpclient.HTTPClient) Option {
	return func(p *Prober) { p.client = c }
}

func WithEngine(e EngineChecker) Option {
	return func(p *Prober) { p.engine = e }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Prober) { p.timeout = d }
}

func New(opts ...Option) *Prober {
	p := &Prober{
		client:  &http.Client{Timeout: DefaultTimeout},
		timeout: DefaultTimeout,
		log:     logger.Get(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check probes one profile. The result is always well-formed; errors
// from the transport are folded into it rather than returned.
func (p *Prober) Check(ctx context.Context, profile domain.Profile) (result domain.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("probe panicked", zap.String("profile", profile.ID), zap.Any("panic", r))
			result = domain.ProbeFailure(nil, nil,
				fmt.Sprintf("internal error: %v", r), "this is a bug, please report it")
		}
	}()

	profile = profile.Normalize()

	switch profile.Type {
	case domain.KindLocal:
		return p.checkEngine(ctx)
	case domain.KindClaudeCLI, domain.KindOpenAICLI:
		// Binary presence was the construction-time check; a reachable
		// probe here would spend a billable call.
		return domain.ProbeSuccess(nil, nil,
			fmt.Sprintf("command %q configured (not invoked)", profile.Binary))
	case domain.KindLMStudio:
		return p.checkHTTP(ctx, profile, profile.Endpoint()+"/models", nil, countOpenAIModels)
	case domain.KindOllama:
		return p.checkHTTP(ctx, profile, profile.Endpoint()+"/api/tags", nil, countOllamaModels)
	case domain.KindOpenAI:
		if profile.APIKey == "" {
			return domain.ProbeFailure(nil, nil, "no API key configured",
				"set LOOM_PROVIDER_API_KEY or the profile's api_key")
		}
		headers := map[string]string{"Authorization": "Bearer " + profile.APIKey}
		if profile.OrgID != "" {
			headers["OpenAI-Organization"] = profile.OrgID
		}
		return p.checkHTTP(ctx, profile, profile.Endpoint()+"/models", headers, countOpenAIModels)
	case domain.KindAnthropic:
		if profile.APIKey == "" {
			return domain.ProbeFailure(nil, nil, "no API key configured",
				"set LOOM_PROVIDER_API_KEY or the profile's api_key")
		}
		headers := map[string]string{
			"x-api-key":         profile.APIKey,
			"anthropic-version": anthropicVersion,
		}
		return p.checkHTTP(ctx, profile, profile.Endpoint()+"/models", headers, countAnthropicModels)
	}

	return domain.ProbeFailure(nil, nil,
		fmt.Sprintf("unknown provider type %q", profile.Type),
		fmt.Sprintf("use one of %v", domain.Kinds()))
}

func (p *Prober) checkEngine(ctx context.Context) domain.ProbeResult {
	if p.engine == nil {
		return domain.ProbeFailure(nil, nil, "no embedded engine attached",
			"build with an engine or switch the profile to a network backend")
	}

	ctx, cancel := context.WithTimeout(ctx, EngineReadyTimeout)
	defer cancel()

	start := time.Now()
	if err := p.engine.Ready(ctx); err != nil {
		latency := time.Since(start).Milliseconds()
		if errors.Is(err, context.Canceled) {
			return domain.ProbeFailure(nil, &latency, "cancelled", "")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ProbeFailure(nil, &latency,
				fmt.Sprintf("engine not ready after %s", EngineReadyTimeout),
				"the model may still be loading, try again")
		}
		return domain.ProbeFailure(nil, &latency, "engine not ready: "+err.Error(), "")
	}
	latency := time.Since(start).Milliseconds()

	msg := "engine ready"
	if id := p.engine.ModelID(); id != "" {
		msg = fmt.Sprintf("engine ready (model %s)", id)
	}
	return domain.ProbeSuccess(nil, &latency, msg)
}

type modelCounter func(body map[string]any) int

func (p *Prober) checkHTTP(ctx context.Context, profile domain.Profile, url string, headers map[string]string, count modelCounter) domain.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var body map[string]any
	start := time.Now()
	status, err := httpclient.Get(ctx, p.client, url, headers, &body)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.ProbeFailure(nil, &latency, "cancelled", "")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ProbeFailure(nil, &latency,
				fmt.Sprintf("no response within %s", p.timeout),
				"check that the server is running and the host and port are right")
		}

		var upstream *httpclient.UpstreamError
		if errors.As(err, &upstream) {
			st := upstream.StatusCode
			switch {
			case st == 401 || st == 403:
				return domain.ProbeFailure(&st, &latency,
					fmt.Sprintf("authentication rejected (%d)", st),
					"check the API key")
			default:
				return domain.ProbeFailure(&st, &latency,
					fmt.Sprintf("unexpected status %d", st), "")
			}
		}
		if status != 0 {
			// Reached the server but the body was not the expected JSON.
			return domain.ProbeFailure(&status, &latency,
				"server responded but not with the expected payload",
				fmt.Sprintf("is something other than %s listening on this port?", profile.Type))
		}
		return domain.ProbeFailure(nil, &latency, "connection failed: "+err.Error(),
			"check that the server is running and the host and port are right")
	}

	msg := "reachable"
	if n := count(body); n >= 0 {
		msg = fmt.Sprintf("reachable, %d models", n)
	}
	return domain.ProbeSuccess(&status, &latency, msg)
}

func countOpenAIModels(body map[string]any) int {
	if data, ok := body["data"].([]any); ok {
		return len(data)
	}
	return -1
}

func countOllamaModels(body map[string]any) int {
	if models, ok := body["models"].([]any); ok {
		return len(models)
	}
	return -1
}

func countAnthropicModels(body map[string]any) int {
	return countOpenAIModels(body)
}
