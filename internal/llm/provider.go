// Package llm defines the uniform contract every backend adapter
// implements, and the factory registry the router builds adapters
// through. One adapter package exists per backend kind; each registers
// itself in an init func and is pulled in by a blank import in the
// binary.
package llm

import (
	"context"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/pkg/api"
)

// Provider is the operation contract shared by all backend kinds.
//
// Models is optional: kinds without an enumeration endpoint return an
// UnsupportedOperationError or an empty slice. Adapters without native
// multi-turn support implement Chat by flattening the history into a
// single role-prefixed prompt; see FlattenHistory.
type Provider interface {
	Name() string
	Kind() domain.Kind
	Generate(ctx context.Context, prompt string, opts *api.Options) (string, error)
	Chat(ctx context.Context, history []api.Message, opts *api.Options) (string, error)
	Complete(ctx context.Context, text string, opts *api.Options) (string, error)
	Models(ctx context.Context) ([]api.ModelInfo, error)

	// Probeable reports whether the backend is network-reachable and
	// therefore subject to connection probing. Local and subprocess
	// kinds return false and are always considered ready.
	Probeable() bool
}
