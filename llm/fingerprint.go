package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// fingerprintVersion is bumped whenever the canonical serialization below
// changes shape, so stale cache entries from older layouts never match.
const fingerprintVersion = 1

type fingerprintMessage struct {
	Role     Role            `json:"role"`
	Text     string          `json:"text,omitempty"`
	Call     *FunctionCall   `json:"call,omitempty"`
	Result   *FunctionResult `json:"result,omitempty"`
	Original string          `json:"original,omitempty"`
}

type fingerprintTarget struct {
	Provider   string                 `json:"provider"`
	Model      string                 `json:"model"`
	Generation map[string]interface{} `json:"generation,omitempty"`
	Defaults   map[string]interface{} `json:"defaults,omitempty"`
}

type fingerprintEnvelope struct {
	Version          int                    `json:"version"`
	Messages         []fingerprintMessage   `json:"messages"`
	SystemPrompt     string                 `json:"system_prompt,omitempty"`
	StructuredOutput map[string]interface{} `json:"structured_output,omitempty"`
	AllowedTools     []string               `json:"allowed_tools,omitempty"`
	Primary          *fingerprintTarget     `json:"primary"`
	Fallbacks        []fingerprintTarget    `json:"fallbacks,omitempty"`
	MaxAttempts      int                    `json:"max_attempts"`
	RetryOn          []string               `json:"retry_on"`
	BackoffSec       float64                `json:"backoff_sec"`
}

// Fingerprint reduces a plan to a stable hex digest used as the cache key.
// Equal plans always produce equal fingerprints; changing any message,
// target or retry field changes it. The request id is excluded so identical
// plans dedupe, and provider-native passthrough payloads are represented by
// their provider marker so the key stays portable. Credentials never enter
// the fingerprint.
func Fingerprint(plan *ExecutionPlan) (string, error) {
	if plan == nil || plan.Request == nil {
		return "", fmt.Errorf("fingerprint: nil plan")
	}

	env := fingerprintEnvelope{
		Version:          fingerprintVersion,
		Messages:         make([]fingerprintMessage, 0, len(plan.Request.Messages)),
		SystemPrompt:     plan.Request.SystemPrompt,
		StructuredOutput: plan.Request.StructuredOutput,
		AllowedTools:     plan.Request.AllowedTools,
		MaxAttempts:      plan.Retry.MaxAttempts,
		RetryOn:          plan.Retry.RetryOn,
		BackoffSec:       plan.Retry.Backoff.Seconds(),
	}

	for _, msg := range plan.Request.Messages {
		fm := fingerprintMessage{
			Role:   msg.Role,
			Text:   msg.Text,
			Call:   msg.Call,
			Result: msg.Result,
		}
		if msg.Original != nil {
			fm.Original = msg.Original.Provider
		}
		env.Messages = append(env.Messages, fm)
	}

	if plan.Primary != nil {
		primary := canonicalTarget(plan.Primary)
		env.Primary = &primary
	}
	for _, fb := range plan.Fallbacks {
		env.Fallbacks = append(env.Fallbacks, canonicalTarget(fb))
	}

	// encoding/json emits map keys in sorted order, so the serialization
	// is canonical for equal plans.
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalTarget(t *Target) fingerprintTarget {
	return fingerprintTarget{
		Provider:   t.Provider,
		Model:      t.Model.Name,
		Generation: t.Model.Generation,
		Defaults:   t.ProviderConfig.Defaults,
	}
}
