package openai

import (
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docforge-ai/docforge/llm"
)

// toChatMessages converts neutral messages into OpenAI chat messages. A
// message carrying an OpenAI-native passthrough payload is sent as-is.
func toChatMessages(msgs []llm.Message) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		converted, err := toChatMessage(msg)
		if err != nil {
			return nil, err
		}
		result = append(result, converted)
	}
	return result, nil
}

func toChatMessage(msg llm.Message) (openai.ChatCompletionMessage, error) {
	if msg.Original != nil && msg.Original.Provider == Provider {
		if raw, ok := msg.Original.Raw.(openai.ChatCompletionMessage); ok {
			return raw, nil
		}
	}

	switch msg.Role {
	case llm.RoleUser:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Text,
		}, nil

	case llm.RoleAssistant:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: msg.Text,
		}, nil

	case llm.RoleFunctionRequest:
		if msg.Call == nil {
			return openai.ChatCompletionMessage{}, llm.NewInternalError(llm.CodeContentConversion,
				"function request message without call payload", nil)
		}
		args, err := json.Marshal(msg.Call.Args)
		if err != nil {
			return openai.ChatCompletionMessage{}, llm.NewInternalError(llm.CodeContentConversion,
				fmt.Sprintf("marshaling arguments for tool %q", msg.Call.Name), err)
		}
		return openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:   toolCallID(msg.Call.Name),
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      msg.Call.Name,
					Arguments: string(args),
				},
			}},
		}, nil

	case llm.RoleFunctionResponse:
		if msg.Result == nil {
			return openai.ChatCompletionMessage{}, llm.NewInternalError(llm.CodeContentConversion,
				"function response message without result payload", nil)
		}
		content, err := json.Marshal(msg.Result.Result)
		if err != nil {
			return openai.ChatCompletionMessage{}, llm.NewInternalError(llm.CodeContentConversion,
				fmt.Sprintf("marshaling result for tool %q", msg.Result.Name), err)
		}
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    string(content),
			ToolCallID: toolCallID(msg.Result.Name),
		}, nil

	default:
		return openai.ChatCompletionMessage{}, llm.NewInternalError(llm.CodeContentConversion,
			fmt.Sprintf("unsupported message role %q", msg.Role), nil)
	}
}

// toolCallID derives a stable id so synthesized call/response pairs line
// up; real OpenAI turns keep their SDK ids via passthrough.
func toolCallID(name string) string {
	return "call_" + name
}

// fromChatResponse converts an API response into the neutral message,
// carrying the raw assistant turn as passthrough.
func fromChatResponse(resp *openai.ChatCompletionResponse) (*llm.Message, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse, "openai response has no choices", nil)
	}

	choice := resp.Choices[0]
	original := &llm.Original{Provider: Provider, Raw: choice.Message}

	if len(choice.Message.ToolCalls) > 1 {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse,
			"openai response contains multiple tool calls", nil)
	}
	if len(choice.Message.ToolCalls) == 1 {
		toolCall := choice.Message.ToolCalls[0]
		var args map[string]interface{}
		if toolCall.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				return nil, llm.NewInternalError(llm.CodeMalformedResponse,
					fmt.Sprintf("unparseable arguments for tool %q", toolCall.Function.Name), err)
			}
		}
		msg := llm.NewFunctionRequestMessage(llm.FunctionCall{
			Name: toolCall.Function.Name,
			Args: args,
		}, original)
		return &msg, nil
	}

	if choice.Message.Content == "" {
		return nil, llm.NewInternalError(llm.CodeMalformedResponse, "openai response contains no text", nil)
	}

	msg := llm.NewAssistantMessage(choice.Message.Content, original)
	return &msg, nil
}
