package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docforge-ai/docforge/llm"
)

func TestToChatMessages(t *testing.T) {
	msgs := []llm.Message{
		llm.NewUserMessage("hello"),
		llm.NewAssistantMessage("hi there", nil),
		llm.NewFunctionRequestMessage(llm.FunctionCall{Name: "search", Args: map[string]interface{}{"q": "docs"}}, nil),
		llm.NewFunctionResponseMessage(llm.FunctionResult{Name: "search", Result: map[string]interface{}{"hits": 3}}),
	}

	converted, err := toChatMessages(msgs)
	if err != nil {
		t.Fatalf("toChatMessages failed: %v", err)
	}
	if len(converted) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(converted))
	}

	if converted[0].Role != openai.ChatMessageRoleUser || converted[0].Content != "hello" {
		t.Errorf("User message wrong: %+v", converted[0])
	}
	if converted[1].Role != openai.ChatMessageRoleAssistant || converted[1].Content != "hi there" {
		t.Errorf("Assistant message wrong: %+v", converted[1])
	}

	call := converted[2]
	if call.Role != openai.ChatMessageRoleAssistant || len(call.ToolCalls) != 1 {
		t.Fatalf("Tool call message wrong: %+v", call)
	}
	if call.ToolCalls[0].Function.Name != "search" {
		t.Errorf("Tool name = %q", call.ToolCalls[0].Function.Name)
	}
	if call.ToolCalls[0].ID != "call_search" {
		t.Errorf("Tool call id = %q", call.ToolCalls[0].ID)
	}

	result := converted[3]
	if result.Role != openai.ChatMessageRoleTool || result.ToolCallID != "call_search" {
		t.Errorf("Tool result message wrong: %+v", result)
	}
}

func TestToChatMessagePassthrough(t *testing.T) {
	raw := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "native"}
	msg := llm.Message{
		Role:     llm.RoleAssistant,
		Text:     "ignored",
		Original: &llm.Original{Provider: Provider, Raw: raw},
	}
	converted, err := toChatMessage(msg)
	if err != nil {
		t.Fatalf("toChatMessage failed: %v", err)
	}
	if converted.Content != "native" {
		t.Errorf("Passthrough payload not used: %+v", converted)
	}

	// Payloads from another backend convert normally.
	msg.Original = &llm.Original{Provider: "anthropic", Raw: raw}
	converted, err = toChatMessage(msg)
	if err != nil {
		t.Fatalf("toChatMessage failed: %v", err)
	}
	if converted.Content != "ignored" {
		t.Errorf("Foreign passthrough should be ignored: %+v", converted)
	}
}

func TestFromChatResponseText(t *testing.T) {
	resp := &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "answer"},
		}},
	}
	msg, err := fromChatResponse(resp)
	if err != nil {
		t.Fatalf("fromChatResponse failed: %v", err)
	}
	if msg.Role != llm.RoleAssistant || msg.Text != "answer" {
		t.Errorf("Got %+v", msg)
	}
	if msg.Original == nil || msg.Original.Provider != Provider {
		t.Error("Response should carry a passthrough payload")
	}
}

func TestFromChatResponseToolCall(t *testing.T) {
	resp := &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       "call_abc",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "search", Arguments: `{"q": "docs"}`},
				}},
			},
		}},
	}
	msg, err := fromChatResponse(resp)
	if err != nil {
		t.Fatalf("fromChatResponse failed: %v", err)
	}
	if msg.Role != llm.RoleFunctionRequest || msg.Call == nil {
		t.Fatalf("Got %+v", msg)
	}
	if msg.Call.Name != "search" || msg.Call.Args["q"] != "docs" {
		t.Errorf("Call = %+v", msg.Call)
	}
}

func TestFromChatResponseMalformed(t *testing.T) {
	cases := map[string]*openai.ChatCompletionResponse{
		"nil response": nil,
		"no choices":   {},
		"empty text": {Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant},
		}}},
		"multiple tool calls": {Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{
					{Function: openai.FunctionCall{Name: "a"}},
					{Function: openai.FunctionCall{Name: "b"}},
				},
			},
		}}},
		"unparseable arguments": {Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					Function: openai.FunctionCall{Name: "search", Arguments: "{broken"},
				}},
			},
		}}},
	}
	for name, resp := range cases {
		_, err := fromChatResponse(resp)
		if llm.StatusCode(err) != llm.CodeMalformedResponse {
			t.Errorf("%s: expected CodeMalformedResponse, got %v", name, err)
		}
	}
}
