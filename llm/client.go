package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Client is the provider-neutral backend contract. Implementations translate
// the neutral request into their SDK's wire format, classify failures into
// *Error values carrying a numeric status code, and are reused for the
// lifetime of the owning Registry.
type Client interface {
	// Generate sends one request and returns the resulting message.
	Generate(ctx context.Context, req *Request, model ModelConfig) (*Message, error)

	// Close releases any resources held by the client.
	Close() error
}

// Factory constructs a client for a provider identifier. An unknown
// identifier must yield an *Error with CodeUnsupportedProvider, never a
// process abort. The tools map declares every tool a request may reference.
type Factory func(cfg ProviderConfig, tools map[string]ToolSpec, logger zerolog.Logger) (Client, error)

// Registry lazily constructs and caches one client per provider identifier.
// A Registry is owned by exactly one Service/Executor instance; independent
// instances never share one.
type Registry struct {
	factory Factory
	tools   map[string]ToolSpec
	logger  zerolog.Logger

	mu      sync.Mutex
	clients map[string]Client
}

// NewRegistry creates an empty registry backed by the given factory.
func NewRegistry(factory Factory, tools map[string]ToolSpec, logger zerolog.Logger) *Registry {
	return &Registry{
		factory: factory,
		tools:   tools,
		logger:  logger.With().Str("component", "registry").Logger(),
		clients: make(map[string]Client),
	}
}

// Get returns the cached client for the target's provider, constructing it
// on first use. Construction failures are not cached, so a later call may
// succeed once the underlying condition clears.
func (r *Registry) Get(target *Target) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[target.Provider]; ok {
		return client, nil
	}

	client, err := r.factory(target.ProviderConfig, r.tools, r.logger)
	if err != nil {
		return nil, fmt.Errorf("constructing %s client: %w", target.Provider, err)
	}

	r.logger.Debug().Str("provider", target.Provider).Msg("Provider client constructed")
	r.clients[target.Provider] = client
	return client, nil
}

// Close closes every constructed client and returns the first error seen.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for provider, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s client: %w", provider, err)
		}
		delete(r.clients, provider)
	}
	return firstErr
}
