package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/docforge-ai/docforge/llm"
)

// toAPIMessages converts neutral messages into Ollama API messages. A
// message carrying an Ollama-native passthrough payload is sent as-is.
func toAPIMessages(msgs []llm.Message) ([]api.Message, error) {
	result := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		converted, err := toAPIMessage(msg)
		if err != nil {
			return nil, err
		}
		result = append(result, converted)
	}
	return result, nil
}

func toAPIMessage(msg llm.Message) (api.Message, error) {
	if msg.Original != nil && msg.Original.Provider == Provider {
		if raw, ok := msg.Original.Raw.(api.Message); ok {
			return raw, nil
		}
	}

	switch msg.Role {
	case llm.RoleUser:
		return api.Message{Role: "user", Content: msg.Text}, nil

	case llm.RoleAssistant:
		return api.Message{Role: "assistant", Content: msg.Text}, nil

	case llm.RoleFunctionRequest:
		if msg.Call == nil {
			return api.Message{}, llm.NewInternalError(llm.CodeContentConversion,
				"function request message without call payload", nil)
		}
		return api.Message{
			Role: "assistant",
			ToolCalls: []api.ToolCall{{
				Function: api.ToolCallFunction{
					Name:      msg.Call.Name,
					Arguments: msg.Call.Args,
				},
			}},
		}, nil

	case llm.RoleFunctionResponse:
		if msg.Result == nil {
			return api.Message{}, llm.NewInternalError(llm.CodeContentConversion,
				"function response message without result payload", nil)
		}
		content, err := json.Marshal(msg.Result.Result)
		if err != nil {
			return api.Message{}, llm.NewInternalError(llm.CodeContentConversion,
				fmt.Sprintf("marshaling result for tool %q", msg.Result.Name), err)
		}
		return api.Message{Role: "tool", Content: string(content)}, nil

	default:
		return api.Message{}, llm.NewInternalError(llm.CodeContentConversion,
			fmt.Sprintf("unsupported message role %q", msg.Role), nil)
	}
}

// fromChatResponse converts an API response into the neutral message,
// carrying the raw assistant turn as passthrough.
func fromChatResponse(resp *api.ChatResponse) (*llm.Message, error) {
	if resp == nil {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse, "ollama returned no response", nil)
	}

	original := &llm.Original{Provider: Provider, Raw: resp.Message}

	if len(resp.Message.ToolCalls) > 1 {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse,
			"ollama response contains multiple tool calls", nil)
	}
	if len(resp.Message.ToolCalls) == 1 {
		toolCall := resp.Message.ToolCalls[0]
		args := make(map[string]interface{}, len(toolCall.Function.Arguments))
		for k, v := range toolCall.Function.Arguments {
			args[k] = v
		}
		msg := llm.NewFunctionRequestMessage(llm.FunctionCall{
			Name: toolCall.Function.Name,
			Args: args,
		}, original)
		return &msg, nil
	}

	if resp.Message.Content == "" {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse, "ollama response contains no text", nil)
	}

	msg := llm.NewAssistantMessage(resp.Message.Content, original)
	return &msg, nil
}

// toAPITool converts a neutral tool spec into the API's tool definition.
func toAPITool(spec llm.ToolSpec) api.Tool {
	properties := make(map[string]api.ToolProperty)
	var required []string

	if props, ok := spec.Parameters["properties"].(map[string]interface{}); ok {
		for name, raw := range props {
			prop := api.ToolProperty{Type: []string{"string"}}
			if propMap, ok := raw.(map[string]interface{}); ok {
				if propType, ok := propMap["type"].(string); ok {
					prop.Type = []string{propType}
				}
				if desc, ok := propMap["description"].(string); ok {
					prop.Description = desc
				}
			}
			properties[name] = prop
		}
	}
	if reqs, ok := spec.Parameters["required"].([]interface{}); ok {
		for _, r := range reqs {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}

	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: api.ToolFunctionParameters{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		},
	}
}
