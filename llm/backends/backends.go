// Package backends provides the production llm.Factory, mapping provider
// identifiers to the concrete SDK-backed clients. It lives outside the llm
// package so the engine itself never imports a provider SDK.
package backends

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/docforge-ai/docforge/llm"
	"github.com/docforge-ai/docforge/llm/anthropic"
	"github.com/docforge-ai/docforge/llm/ollama"
	"github.com/docforge-ai/docforge/llm/openai"
)

// Factory constructs the client for a provider identifier. An unknown
// identifier yields CodeUnsupportedProvider.
func Factory(cfg llm.ProviderConfig, tools map[string]llm.ToolSpec, logger zerolog.Logger) (llm.Client, error) {
	switch cfg.Name {
	case anthropic.Provider:
		return anthropic.New(cfg, tools, logger)
	case openai.Provider:
		return openai.New(cfg, tools, logger)
	case ollama.Provider:
		return ollama.New(cfg, tools, logger)
	default:
		return nil, llm.NewInternalError(llm.CodeUnsupportedProvider,
			fmt.Sprintf("provider %q is not supported", cfg.Name), nil)
	}
}
