package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Executor drives a single execution plan to a result: targets are visited
// in [primary, fallbacks...] order, each attempted up to the policy's
// MaxAttempts, and the first success wins. The registry is owned by the
// executor's creator and mutated in place as clients are constructed.
type Executor struct {
	registry *Registry
	calls    *semaphore.Weighted // bounds simultaneous provider calls, nil = unbounded
	logger   zerolog.Logger
}

// NewExecutor creates an executor over the given registry. calls may be nil
// when provider calls need no gating (tests, single-shot use).
func NewExecutor(registry *Registry, calls *semaphore.Weighted, logger zerolog.Logger) *Executor {
	return &Executor{
		registry: registry,
		calls:    calls,
		logger:   logger.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the plan and returns the first successful response. When
// every target is exhausted the last observed error is returned; a plan
// without targets fails with CodeEmptyPlan. Total provider calls never
// exceed MaxAttempts summed over the visited targets.
func (e *Executor) Execute(ctx context.Context, plan *ExecutionPlan) (*Response, error) {
	targets := plan.Targets()
	if len(targets) == 0 {
		return nil, NewInternalError(CodeEmptyPlan, "execution plan has no targets", nil)
	}

	maxAttempts := plan.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for i, target := range targets {
		client, err := e.registry.Get(target)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("provider", target.Provider).
				Int("target", i).
				Msg("Client construction failed, advancing to next target")
			lastErr = err
			continue
		}

		wait := backoff.NewConstantBackOff(plan.Retry.Backoff)
		wait.Reset()

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			msg, err := e.generate(ctx, client, plan.Request, target.Model)
			if err == nil {
				return &Response{RequestID: plan.Request.ID, Message: msg}, nil
			}
			lastErr = err

			code := StatusCode(err)
			retryable := MatchAnyStatus(plan.Retry.RetryOn, code)
			e.logger.Warn().Err(err).
				Str("request_id", plan.Request.ID).
				Str("provider", target.Provider).
				Str("model", target.Model.Name).
				Int("status", code).
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Bool("retryable", retryable).
				Msg("Provider call failed")

			if !retryable || attempt == maxAttempts {
				break
			}
			if err := sleep(ctx, wait.NextBackOff()); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

// generate performs one provider call under the concurrency gate.
func (e *Executor) generate(ctx context.Context, client Client, req *Request, model ModelConfig) (*Message, error) {
	if e.calls != nil {
		if err := e.calls.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer e.calls.Release(1)
	}
	return client.Generate(ctx, req, model)
}

// sleep waits for the delay, respecting context cancellation.
func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
