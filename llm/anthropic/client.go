// Package anthropic implements the llm.Client contract on top of the
// official Anthropic SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/docforge-ai/docforge/llm"
)

// Provider is the identifier this backend registers under.
const Provider = "anthropic"

// The Messages API requires max_tokens; this is used when the resolved
// generation settings don't specify one.
const defaultMaxTokens = 4096

// Client calls the Anthropic Messages API.
type Client struct {
	client *anthropic.Client
	tools  map[string]llm.ToolSpec
	logger zerolog.Logger
}

// New creates a client. The API key is required; defaults may carry a
// "base_url" override.
func New(cfg llm.ProviderConfig, tools map[string]llm.ToolSpec, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, llm.NewClientError(401, "anthropic api key is required", nil)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if baseURL, ok := llm.StringSetting(cfg.Defaults, "base_url"); ok {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)
	return &Client{
		client: &client,
		tools:  tools,
		logger: logger.With().Str("component", "anthropicClient").Logger(),
	}, nil
}

// Generate implements llm.Client.Generate.
func (c *Client) Generate(ctx context.Context, req *llm.Request, model llm.ModelConfig) (*llm.Message, error) {
	if req.StructuredOutput != nil {
		return nil, llm.NewInternalError(llm.CodeContentConversion,
			"anthropic backend does not support structured output schemas", nil)
	}

	msgs, err := toMessageParams(req.Messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model.Name),
		MaxTokens: defaultMaxTokens,
		Messages:  msgs,
	}
	if maxTokens, ok := llm.IntSetting(model.Generation, "max_tokens"); ok {
		params.MaxTokens = int64(maxTokens)
	}
	if temp, ok := llm.FloatSetting(model.Generation, "temperature"); ok {
		params.Temperature = anthropic.Float(temp)
	}
	if topP, ok := llm.FloatSetting(model.Generation, "top_p"); ok {
		params.TopP = anthropic.Float(topP)
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	if len(req.AllowedTools) > 0 {
		tools, err := c.resolveTools(req.AllowedTools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	return fromMessage(message)
}

// Close implements llm.Client.Close. The SDK holds no long-lived
// connections beyond its HTTP client.
func (c *Client) Close() error {
	return nil
}

// resolveTools maps allowed tool names to SDK tool params. An unregistered
// name is CodeUnknownTool.
func (c *Client) resolveTools(allowed []string) ([]anthropic.ToolUnionParam, error) {
	tools := make([]anthropic.ToolUnionParam, 0, len(allowed))
	for _, name := range allowed {
		spec, ok := c.tools[name]
		if !ok {
			return nil, llm.NewInternalError(llm.CodeUnknownTool,
				fmt.Sprintf("tool %q is not registered", name), nil)
		}
		tools = append(tools, toToolParam(spec))
	}
	return tools, nil
}

// classify maps SDK failures onto the numeric status-code taxonomy.
func classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode >= 400 && apierr.StatusCode < 500:
			return llm.NewClientError(apierr.StatusCode, "anthropic client error", err)
		case apierr.StatusCode >= 500 && apierr.StatusCode < 600:
			return llm.NewServerError(apierr.StatusCode, "anthropic server error", err)
		}
	}
	return llm.NewInternalError(llm.CodeUnexpected, "anthropic call failed", err)
}
