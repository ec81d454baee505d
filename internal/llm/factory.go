package llm

import (
	"fmt"
	"sync"

	"github.com/threadwell/loom/internal/core/domain"
)

// Factory builds an adapter for one profile.
type Factory func(p domain.Profile) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[domain.Kind]Factory)
)

// Register makes a provider factory available under a backend kind.
func Register(kind domain.Kind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", kind))
	}
	factories[kind] = f
}

// New builds the adapter for a profile by looking up its kind in the
// registry.
func New(p domain.Profile) (Provider, error) {
	mu.RLock()
	f, ok := factories[p.Type]
	mu.RUnlock()
	if !ok {
		return nil, domain.ConfigurationError(p.Type,
			fmt.Sprintf("no adapter registered for type %q (profile %q)", p.Type, p.ID),
			fmt.Sprintf("use one of %v", domain.Kinds()))
	}
	return f(p.Normalize())
}
