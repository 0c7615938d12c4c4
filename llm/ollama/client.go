// Package ollama implements the llm.Client contract on top of the Ollama
// API client, for locally hosted models.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"

	"github.com/docforge-ai/docforge/llm"
)

// Provider is the identifier this backend registers under.
const Provider = "ollama"

// Client calls a local or remote Ollama server.
type Client struct {
	client *api.Client
	tools  map[string]llm.ToolSpec
	logger zerolog.Logger
}

// New creates a client. No API key is required; defaults may carry a
// "host" override, otherwise OLLAMA_HOST or the local default applies.
func New(cfg llm.ProviderConfig, tools map[string]llm.ToolSpec, logger zerolog.Logger) (*Client, error) {
	var client *api.Client

	if host, ok := llm.StringSetting(cfg.Defaults, "host"); ok && host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, llm.NewClientError(400, fmt.Sprintf("invalid ollama host %q", host), err)
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, llm.NewInternalError(llm.CodeUnexpected, "creating ollama client from environment", err)
		}
	}

	return &Client{
		client: client,
		tools:  tools,
		logger: logger.With().Str("component", "ollamaClient").Logger(),
	}, nil
}

func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Generate implements llm.Client.Generate.
func (c *Client) Generate(ctx context.Context, req *llm.Request, model llm.ModelConfig) (*llm.Message, error) {
	msgs, err := toAPIMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if req.SystemPrompt != "" {
		msgs = append([]api.Message{{Role: "system", Content: req.SystemPrompt}}, msgs...)
	}

	chatReq := &api.ChatRequest{
		Model:    model.Name,
		Messages: msgs,
		Stream:   new(bool), // non-streaming
		Options:  make(map[string]interface{}),
	}
	if maxTokens, ok := llm.IntSetting(model.Generation, "max_tokens"); ok {
		chatReq.Options["num_predict"] = maxTokens
	}
	if temp, ok := llm.FloatSetting(model.Generation, "temperature"); ok {
		chatReq.Options["temperature"] = temp
	}
	if topP, ok := llm.FloatSetting(model.Generation, "top_p"); ok {
		chatReq.Options["top_p"] = topP
	}

	if req.StructuredOutput != nil {
		schema, err := json.Marshal(req.StructuredOutput)
		if err != nil {
			return nil, llm.NewInternalError(llm.CodeContentConversion, "marshaling structured output schema", err)
		}
		chatReq.Format = json.RawMessage(schema)
	}

	if len(req.AllowedTools) > 0 {
		tools, err := c.resolveTools(req.AllowedTools)
		if err != nil {
			return nil, err
		}
		chatReq.Tools = tools
	}

	var chatResp api.ChatResponse
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	return fromChatResponse(&chatResp)
}

// Close implements llm.Client.Close.
func (c *Client) Close() error {
	return nil
}

// resolveTools maps allowed tool names to API tool definitions. An
// unregistered name is CodeUnknownTool.
func (c *Client) resolveTools(allowed []string) ([]api.Tool, error) {
	tools := make([]api.Tool, 0, len(allowed))
	for _, name := range allowed {
		spec, ok := c.tools[name]
		if !ok {
			return nil, llm.NewInternalError(llm.CodeUnknownTool,
				fmt.Sprintf("tool %q is not registered", name), nil)
		}
		tools = append(tools, toAPITool(spec))
	}
	return tools, nil
}

// classify maps API failures onto the numeric status-code taxonomy.
func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return llm.NewClientError(statusErr.StatusCode, "ollama client error", err)
		case statusErr.StatusCode >= 500 && statusErr.StatusCode < 600:
			return llm.NewServerError(statusErr.StatusCode, "ollama server error", err)
		}
	}
	return llm.NewInternalError(llm.CodeUnexpected, "ollama call failed", err)
}
