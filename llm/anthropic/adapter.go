package anthropic

import (
	"encoding/json"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/docforge-ai/docforge/llm"
)

// toMessageParams converts neutral messages into Anthropic message params.
// A message carrying an Anthropic-native passthrough payload is sent as-is.
func toMessageParams(msgs []llm.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		param, err := toMessageParam(msg)
		if err != nil {
			return nil, err
		}
		result = append(result, param)
	}
	return result, nil
}

func toMessageParam(msg llm.Message) (anthropic.MessageParam, error) {
	if msg.Original != nil && msg.Original.Provider == Provider {
		if raw, ok := msg.Original.Raw.(anthropic.MessageParam); ok {
			return raw, nil
		}
	}

	switch msg.Role {
	case llm.RoleUser:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)), nil

	case llm.RoleAssistant:
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)), nil

	case llm.RoleFunctionRequest:
		if msg.Call == nil {
			return anthropic.MessageParam{}, llm.NewInternalError(llm.CodeContentConversion,
				"function request message without call payload", nil)
		}
		return anthropic.NewAssistantMessage(
			anthropic.NewToolUseBlock(toolUseID(msg.Call.Name), msg.Call.Args, msg.Call.Name),
		), nil

	case llm.RoleFunctionResponse:
		if msg.Result == nil {
			return anthropic.MessageParam{}, llm.NewInternalError(llm.CodeContentConversion,
				"function response message without result payload", nil)
		}
		content, err := json.Marshal(msg.Result.Result)
		if err != nil {
			return anthropic.MessageParam{}, llm.NewInternalError(llm.CodeContentConversion,
				fmt.Sprintf("marshaling result for tool %q", msg.Result.Name), err)
		}
		return anthropic.NewUserMessage(
			anthropic.NewToolResultBlock(toolUseID(msg.Result.Name), string(content), false),
		), nil

	default:
		return anthropic.MessageParam{}, llm.NewInternalError(llm.CodeContentConversion,
			fmt.Sprintf("unsupported message role %q", msg.Role), nil)
	}
}

// toolUseID derives a stable tool_use id so a synthesized request/response
// pair still lines up. Conversations that round-trip real Anthropic turns
// keep the SDK's ids via passthrough instead.
func toolUseID(name string) string {
	return "toolu_" + name
}

// fromMessage converts an API response into the neutral message, carrying
// the raw assistant turn as passthrough so follow-up requests skip
// re-translation.
func fromMessage(message *anthropic.Message) (*llm.Message, error) {
	if message == nil || len(message.Content) == 0 {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse, "anthropic response has no content", nil)
	}

	original := &llm.Original{Provider: Provider, Raw: message.ToParam()}

	var text string
	var calls []llm.FunctionCall
	for _, blockUnion := range message.Content {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			text += block.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if block.Input != nil {
				raw, err := json.Marshal(block.Input)
				if err == nil {
					_ = json.Unmarshal(raw, &args)
				}
			}
			calls = append(calls, llm.FunctionCall{Name: block.Name, Args: args})
		}
	}

	if len(calls) > 1 {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse,
			"anthropic response contains multiple tool calls", nil)
	}
	if len(calls) == 1 {
		msg := llm.NewFunctionRequestMessage(calls[0], original)
		return &msg, nil
	}
	if text == "" {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse, "anthropic response contains no text", nil)
	}

	msg := llm.NewAssistantMessage(text, original)
	return &msg, nil
}

// toToolParam converts a neutral tool spec into the SDK's tool param. The
// spec's Parameters hold a full JSON schema object, which the SDK wants
// split into properties and required.
func toToolParam(spec llm.ToolSpec) anthropic.ToolUnionParam {
	var required []string
	if reqs, ok := spec.Parameters["required"].([]interface{}); ok {
		for _, r := range reqs {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: spec.Parameters["properties"],
				Required:   required,
			},
		},
	}
}
