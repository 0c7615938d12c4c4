package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClient counts calls and delegates to a configurable generate func.
type fakeClient struct {
	mu       sync.Mutex
	calls    int
	closed   bool
	generate func(ctx context.Context, req *Request, model ModelConfig) (*Message, error)
}

func (c *fakeClient) Generate(ctx context.Context, req *Request, model ModelConfig) (*Message, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.generate(ctx, req, model)
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeFactory hands out pre-built clients by provider name. Providers not
// in the map fail construction.
func fakeFactory(clients map[string]*fakeClient) Factory {
	return func(cfg ProviderConfig, tools map[string]ToolSpec, logger zerolog.Logger) (Client, error) {
		client, ok := clients[cfg.Name]
		if !ok {
			return nil, NewInternalError(CodeUnsupportedProvider, "no client for "+cfg.Name, nil)
		}
		return client, nil
	}
}

func succeedWith(text string) func(context.Context, *Request, ModelConfig) (*Message, error) {
	return func(ctx context.Context, req *Request, model ModelConfig) (*Message, error) {
		msg := NewAssistantMessage(text, nil)
		return &msg, nil
	}
}

func failWith(code int) func(context.Context, *Request, ModelConfig) (*Message, error) {
	return func(ctx context.Context, req *Request, model ModelConfig) (*Message, error) {
		return nil, &Error{StatusCode: code, Message: "backend failure"}
	}
}

func testTarget(provider string) *Target {
	return &Target{
		Provider:       provider,
		Model:          ModelConfig{Name: provider + "-model"},
		ProviderConfig: ProviderConfig{Name: provider},
	}
}

func testPlan(primary *Target, fallbacks []*Target, retry RetryPolicy) *ExecutionPlan {
	return &ExecutionPlan{
		Request:   NewRequest([]Message{NewUserMessage("hello")}),
		Primary:   primary,
		Fallbacks: fallbacks,
		Retry:     retry,
	}
}

func newTestExecutor(clients map[string]*fakeClient) *Executor {
	registry := NewRegistry(fakeFactory(clients), nil, zerolog.Nop())
	return NewExecutor(registry, nil, zerolog.Nop())
}

func TestExecutorReturnsOnFirstSuccess(t *testing.T) {
	primary := &fakeClient{generate: succeedWith("primary wins")}
	fallback := &fakeClient{generate: succeedWith("never called")}
	exec := newTestExecutor(map[string]*fakeClient{"a": primary, "b": fallback})

	plan := testPlan(testTarget("a"), []*Target{testTarget("b")}, RetryPolicy{MaxAttempts: 3, RetryOn: []string{"5xx"}})
	resp, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Message.Text != "primary wins" {
		t.Errorf("Expected primary response, got %q", resp.Message.Text)
	}
	if primary.callCount() != 1 {
		t.Errorf("Expected exactly 1 call to primary, got %d", primary.callCount())
	}
	if fallback.callCount() != 0 {
		t.Errorf("Fallback should not be called after success, got %d calls", fallback.callCount())
	}
}

func TestExecutorExhaustsAllTargetsInOrder(t *testing.T) {
	var mu sync.Mutex
	var visited []string
	failing := func(name string) *fakeClient {
		return &fakeClient{generate: func(ctx context.Context, req *Request, model ModelConfig) (*Message, error) {
			mu.Lock()
			visited = append(visited, name)
			mu.Unlock()
			return nil, &Error{StatusCode: 503, Message: "unavailable"}
		}}
	}

	a, b, c := failing("a"), failing("b"), failing("c")
	exec := newTestExecutor(map[string]*fakeClient{"a": a, "b": b, "c": c})

	plan := testPlan(testTarget("a"), []*Target{testTarget("b"), testTarget("c")},
		RetryPolicy{MaxAttempts: 2, RetryOn: []string{"5xx"}, Backoff: time.Millisecond})
	_, err := exec.Execute(context.Background(), plan)
	if err == nil {
		t.Fatal("Expected error when all targets fail")
	}
	if StatusCode(err) != 503 {
		t.Errorf("Expected last error code 503, got %d", StatusCode(err))
	}

	total := a.callCount() + b.callCount() + c.callCount()
	if total != 6 {
		t.Errorf("Expected 6 total attempts (2 per target), got %d", total)
	}
	want := []string{"a", "a", "b", "b", "c", "c"}
	for i, name := range want {
		if visited[i] != name {
			t.Fatalf("Visit order %v, want %v", visited, want)
		}
	}
}

func TestExecutorNonRetryableAdvancesImmediately(t *testing.T) {
	primary := &fakeClient{generate: failWith(400)}
	fallback := &fakeClient{generate: succeedWith("fallback")}
	exec := newTestExecutor(map[string]*fakeClient{"a": primary, "b": fallback})

	plan := testPlan(testTarget("a"), []*Target{testTarget("b")},
		RetryPolicy{MaxAttempts: 3, RetryOn: []string{"5xx"}})
	resp, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if primary.callCount() != 1 {
		t.Errorf("Non-retryable failure should not be retried, primary got %d calls", primary.callCount())
	}
	if resp.Message.Text != "fallback" {
		t.Errorf("Expected fallback response, got %q", resp.Message.Text)
	}
}

func TestExecutorSingleAttemptFallsBackOn503(t *testing.T) {
	primary := &fakeClient{generate: failWith(503)}
	fallback := &fakeClient{generate: succeedWith("fallback wins")}
	exec := newTestExecutor(map[string]*fakeClient{"a": primary, "b": fallback})

	plan := testPlan(testTarget("a"), []*Target{testTarget("b")},
		RetryPolicy{MaxAttempts: 1, RetryOn: []string{"5xx"}, Backoff: time.Second})
	start := time.Now()
	resp, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Message.Text != "fallback wins" {
		t.Errorf("Expected fallback response, got %q", resp.Message.Text)
	}
	if primary.callCount() != 1 {
		t.Errorf("Expected 1 primary attempt with max_attempts=1, got %d", primary.callCount())
	}
	// max_attempts=1 leaves no room for a retry, so the backoff never runs.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Execution waited the backoff despite max_attempts=1 (%v)", elapsed)
	}
}

func TestExecutorEmptyPlan(t *testing.T) {
	exec := newTestExecutor(nil)
	plan := &ExecutionPlan{Request: NewRequest(nil)}
	_, err := exec.Execute(context.Background(), plan)
	if StatusCode(err) != CodeEmptyPlan {
		t.Errorf("Expected CodeEmptyPlan, got %v", err)
	}
}

func TestExecutorClientConstructionFailureAdvances(t *testing.T) {
	fallback := &fakeClient{generate: succeedWith("fallback")}
	// "a" has no registered client, so construction fails.
	exec := newTestExecutor(map[string]*fakeClient{"b": fallback})

	plan := testPlan(testTarget("a"), []*Target{testTarget("b")}, DefaultRetryPolicy())
	resp, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Message.Text != "fallback" {
		t.Errorf("Expected fallback response, got %q", resp.Message.Text)
	}
}

func TestExecutorPropagatesConstructionErrorWhenAllFail(t *testing.T) {
	exec := newTestExecutor(nil)
	plan := testPlan(testTarget("a"), nil, DefaultRetryPolicy())
	_, err := exec.Execute(context.Background(), plan)
	if err == nil {
		t.Fatal("Expected error when no client can be constructed")
	}
	var llmErr *Error
	if !errors.As(err, &llmErr) || llmErr.StatusCode != CodeUnsupportedProvider {
		t.Errorf("Expected unsupported provider error, got %v", err)
	}
}

func TestRegistryReusesClients(t *testing.T) {
	client := &fakeClient{generate: succeedWith("ok")}
	constructed := 0
	factory := func(cfg ProviderConfig, tools map[string]ToolSpec, logger zerolog.Logger) (Client, error) {
		constructed++
		return client, nil
	}
	registry := NewRegistry(factory, nil, zerolog.Nop())

	target := testTarget("a")
	for i := 0; i < 3; i++ {
		if _, err := registry.Get(target); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if constructed != 1 {
		t.Errorf("Expected 1 construction, got %d", constructed)
	}

	if err := registry.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !client.closed {
		t.Error("Close should close constructed clients")
	}
}
