// Package local adapts the embedded inference engine to the provider
// contract. The engine itself (weight loading, tokenization, sampling)
// is an external collaborator injected behind the Engine interface; this
// adapter only owns the serialization of calls against its single shared
// handle.
package local

import (
	"context"
	"sync"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/llm"
	"github.com/threadwell/loom/pkg/api"
)

// Engine is the single shared inference handle. Implementations are not
// required to be safe for concurrent use; the adapter serializes calls.
type Engine interface {
	Generate(ctx context.Context, prompt string, opts *api.Options) (string, error)
	ModelID() string
}

// Factory binds an engine instance and returns a registry factory for the
// local kind. A nil engine yields adapters whose operations fail with an
// actionable configuration error, so profiles stay listable in builds
// without an embedded engine.
func Factory(engine Engine) llm.Factory {
	return func(p domain.Profile) (llm.Provider, error) {
		return &Adapter{profile: p, engine: engine}, nil
	}
}

type Adapter struct {
	profile domain.Profile
	engine  Engine

	// One in-flight generation at a time; the engine handle is shared
	// and the router does not serialize on our behalf.
	mu sync.Mutex
}

func (a *Adapter) Name() string      { return a.profile.ID }
func (a *Adapter) Kind() domain.Kind { return domain.KindLocal }
func (a *Adapter) Probeable() bool   { return false }

func (a *Adapter) Generate(ctx context.Context, prompt string, opts *api.Options) (string, error) {
	if a.engine == nil {
		return "", domain.ConfigurationError(domain.KindLocal,
			"no embedded engine attached",
			"build with an engine or switch the profile to a network backend")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return a.engine.Generate(ctx, prompt, opts)
}

// Chat flattens the history into one role-prefixed prompt; the embedded
// engine has no native multi-turn support.
func (a *Adapter) Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error) {
	return a.Generate(ctx, llm.FlattenHistory(history), opts)
}

func (a *Adapter) Complete(ctx context.Context, text string, opts *api.Options) (string, error) {
	return a.Generate(ctx, text, opts)
}

// Models reports the single loaded model; there is no enumeration
// endpoint for the embedded engine.
func (a *Adapter) Models(ctx context.Context) ([]api.ModelInfo, error) {
	if a.engine == nil {
		return []api.ModelInfo{}, nil
	}
	id := a.engine.ModelID()
	if id == "" {
		return []api.ModelInfo{}, nil
	}
	return []api.ModelInfo{{ID: id, Name: id}}, nil
}
