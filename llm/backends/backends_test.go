package backends

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/docforge-ai/docforge/llm"
)

func TestFactoryUnknownProvider(t *testing.T) {
	_, err := Factory(llm.ProviderConfig{Name: "bedrock"}, nil, zerolog.Nop())
	if llm.StatusCode(err) != llm.CodeUnsupportedProvider {
		t.Errorf("Expected CodeUnsupportedProvider, got %v", err)
	}
}

func TestFactoryRequiresCredentials(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai"} {
		client, err := Factory(llm.ProviderConfig{Name: provider}, nil, zerolog.Nop())
		if err == nil {
			client.Close()
			t.Errorf("%s: expected error without an api key", provider)
			continue
		}
		if !llm.IsClientError(err) {
			t.Errorf("%s: expected a 4xx-equivalent error, got %v", provider, err)
		}
	}
}
