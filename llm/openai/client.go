// Package openai implements the llm.Client contract on top of the
// sashabaranov/go-openai SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/docforge-ai/docforge/llm"
)

// Provider is the identifier this backend registers under.
const Provider = "openai"

// Client calls the OpenAI chat completions API.
type Client struct {
	client *openai.Client
	tools  map[string]llm.ToolSpec
	logger zerolog.Logger
}

// New creates a client. The API key is required; defaults may carry
// "base_url" and "organization" overrides.
func New(cfg llm.ProviderConfig, tools map[string]llm.ToolSpec, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, llm.NewClientError(401, "openai api key is required", nil)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if baseURL, ok := llm.StringSetting(cfg.Defaults, "base_url"); ok {
		clientCfg.BaseURL = baseURL
	}
	if org, ok := llm.StringSetting(cfg.Defaults, "organization"); ok {
		clientCfg.OrgID = org
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		tools:  tools,
		logger: logger.With().Str("component", "openaiClient").Logger(),
	}, nil
}

// Generate implements llm.Client.Generate.
func (c *Client) Generate(ctx context.Context, req *llm.Request, model llm.ModelConfig) (*llm.Message, error) {
	msgs, err := toChatMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if req.SystemPrompt != "" {
		system := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		}
		msgs = append([]openai.ChatCompletionMessage{system}, msgs...)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model.Name,
		Messages: msgs,
	}
	if maxTokens, ok := llm.IntSetting(model.Generation, "max_tokens"); ok {
		chatReq.MaxTokens = maxTokens
	}
	if temp, ok := llm.FloatSetting(model.Generation, "temperature"); ok {
		chatReq.Temperature = float32(temp)
	}
	if topP, ok := llm.FloatSetting(model.Generation, "top_p"); ok {
		chatReq.TopP = float32(topP)
	}

	if req.StructuredOutput != nil {
		schema, err := json.Marshal(req.StructuredOutput)
		if err != nil {
			return nil, llm.NewInternalError(llm.CodeContentConversion, "marshaling structured output schema", err)
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "structured_output",
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		}
	}

	if len(req.AllowedTools) > 0 {
		tools, err := c.resolveTools(req.AllowedTools)
		if err != nil {
			return nil, err
		}
		chatReq.Tools = tools
		chatReq.ToolChoice = "auto"
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classify(err)
	}

	return fromChatResponse(&chatResp)
}

// Close implements llm.Client.Close.
func (c *Client) Close() error {
	return nil
}

// resolveTools maps allowed tool names to SDK tool definitions. An
// unregistered name is CodeUnknownTool.
func (c *Client) resolveTools(allowed []string) ([]openai.Tool, error) {
	tools := make([]openai.Tool, 0, len(allowed))
	for _, name := range allowed {
		spec, ok := c.tools[name]
		if !ok {
			return nil, llm.NewInternalError(llm.CodeUnknownTool,
				fmt.Sprintf("tool %q is not registered", name), nil)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return tools, nil
}

// classify maps SDK failures onto the numeric status-code taxonomy.
func classify(err error) error {
	var apierr *openai.APIError
	if errors.As(err, &apierr) {
		switch {
		case apierr.HTTPStatusCode >= 400 && apierr.HTTPStatusCode < 500:
			return llm.NewClientError(apierr.HTTPStatusCode, "openai client error", err)
		case apierr.HTTPStatusCode >= 500 && apierr.HTTPStatusCode < 600:
			return llm.NewServerError(apierr.HTTPStatusCode, "openai server error", err)
		}
	}
	return llm.NewInternalError(llm.CodeUnexpected, "openai call failed", err)
}
