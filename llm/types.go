package llm

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who (or what) produced a message.
type Role string

const (
	RoleUser             Role = "user"
	RoleAssistant        Role = "assistant"
	RoleFunctionRequest  Role = "function_request"
	RoleFunctionResponse Role = "function_response"
)

// FunctionCall is a backend-issued request to invoke a named tool.
type FunctionCall struct {
	Name string
	Args map[string]interface{}
}

// FunctionResult carries the application's answer to a FunctionCall.
type FunctionResult struct {
	Name   string
	Result map[string]interface{}
}

// Original holds the provider-native form of a message. When a message
// carries an Original tagged for the target provider, the backend may send
// the raw payload instead of re-translating the neutral content.
type Original struct {
	Provider string
	Raw      interface{}
}

// Message is a single conversation entry. Exactly one of Text, Call or
// Result is populated, according to Role.
type Message struct {
	Role     Role
	Text     string
	Call     *FunctionCall
	Result   *FunctionResult
	Original *Original
}

// NewUserMessage creates a plain text message from the user.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// NewAssistantMessage creates a plain text message from a backend.
func NewAssistantMessage(text string, original *Original) Message {
	return Message{Role: RoleAssistant, Text: text, Original: original}
}

// NewFunctionRequestMessage creates a tool-invocation message from a backend.
func NewFunctionRequestMessage(call FunctionCall, original *Original) Message {
	return Message{Role: RoleFunctionRequest, Call: &call, Original: original}
}

// NewFunctionResponseMessage creates the application's reply to a tool call.
func NewFunctionResponseMessage(result FunctionResult) Message {
	return Message{Role: RoleFunctionResponse, Result: &result}
}

// Request is one generation request. Messages hold the conversation history
// with the final prompt last. StructuredOutput, when set, is a JSON schema
// the backend response must conform to. AllowedTools names tool specs
// registered with the service; nil means no tool calls are permitted.
type Request struct {
	ID               string
	Messages         []Message
	SystemPrompt     string
	StructuredOutput map[string]interface{}
	AllowedTools     []string
}

// NewRequest builds a Request with a fresh id.
func NewRequest(messages []Message) *Request {
	return &Request{
		ID:       uuid.NewString(),
		Messages: messages,
	}
}

// ToolSpec declares a tool a backend may be allowed to call.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ModelConfig is the resolved generation configuration for one model.
type ModelConfig struct {
	Name       string
	Generation map[string]interface{}
}

// ProviderConfig is the resolved configuration for one backend.
type ProviderConfig struct {
	Name     string
	APIKey   string
	Defaults map[string]interface{}
}

// Target is one concrete attempt point within a plan: a provider, a model,
// and the fully merged configuration for both.
type Target struct {
	Provider       string
	Model          ModelConfig
	ProviderConfig ProviderConfig
}

// RetryPolicy controls same-target retries. RetryOn patterns match numeric
// status codes digit by digit, with 'x' as a single-digit wildcard ("5xx"
// matches any code in 500-599).
type RetryPolicy struct {
	MaxAttempts int
	RetryOn     []string
	Backoff     time.Duration
}

// DefaultRetryPolicy retries server errors, timeouts and rate limits once.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		RetryOn:     []string{"5xx", "408", "429"},
		Backoff:     2 * time.Second,
	}
}

// ExecutionPlan binds a request to a primary target, ordered fallback
// targets and a retry policy. A plan without a primary target is invalid
// and fails execution with CodeEmptyPlan.
type ExecutionPlan struct {
	Request   *Request
	Primary   *Target
	Fallbacks []*Target
	Retry     RetryPolicy
}

// Targets returns the plan's targets in attempt order.
func (p *ExecutionPlan) Targets() []*Target {
	if p.Primary == nil {
		return nil
	}
	targets := make([]*Target, 0, 1+len(p.Fallbacks))
	targets = append(targets, p.Primary)
	return append(targets, p.Fallbacks...)
}

// Response is the outcome of executing one plan: the resulting message on
// success, or the captured error. Exactly one of the two is set.
type Response struct {
	RequestID string
	Message   *Message
	Err       error
}
