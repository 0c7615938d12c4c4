package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Gates holds the two backpressure primitives shared by every invocation of
// one dispatcher: inflight bounds the total requests admitted anywhere into
// the dispatcher, calls bounds simultaneous provider calls. Construct once
// per Service and thread by reference so backpressure stays global.
type Gates struct {
	inflight *semaphore.Weighted
	calls    *semaphore.Weighted
}

// NewGates creates the gate pair. Both limits must be at least 1; anything
// else is a CodeGateMisconfigured error.
func NewGates(concurrency, inflight int64) (*Gates, error) {
	if concurrency < 1 || inflight < 1 {
		return nil, NewInternalError(CodeGateMisconfigured,
			fmt.Sprintf("gate limits must be >= 1, got concurrency=%d inflight=%d", concurrency, inflight), nil)
	}
	return &Gates{
		inflight: semaphore.NewWeighted(inflight),
		calls:    semaphore.NewWeighted(concurrency),
	}, nil
}

// Calls returns the provider-call gate, for threading into an Executor.
func (g *Gates) Calls() *semaphore.Weighted {
	if g == nil {
		return nil
	}
	return g.calls
}

// RunFunc executes one plan to completion, returning either a response or
// the error to capture for it.
type RunFunc func(ctx context.Context, plan *ExecutionPlan) (*Response, error)

// Dispatcher admits a stream of plans under the inflight gate and runs each
// as its own goroutine, yielding responses in completion order.
type Dispatcher struct {
	run    RunFunc
	gates  *Gates
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher that executes plans with run.
func NewDispatcher(run RunFunc, gates *Gates, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		run:    run,
		gates:  gates,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run consumes plans lazily and returns a channel of responses in
// completion order, not input order. Per-plan failures are captured as
// Response values with Err set, never raised out of the stream; only
// missing gates fail Run itself.
//
// Every admitted plan yields exactly one response. The output channel is
// closed only after every in-flight unit has finished and released its
// budget. A consumer that stops early must cancel ctx and drain the channel
// until it closes; cancellation stops admission and unblocks every pending
// unit.
func (d *Dispatcher) Run(ctx context.Context, plans <-chan *ExecutionPlan) (<-chan Response, error) {
	if d.gates == nil || d.gates.inflight == nil || d.gates.calls == nil {
		return nil, NewInternalError(CodeGateMisconfigured, "dispatcher gates not configured", nil)
	}

	out := make(chan Response)
	go func() {
		defer close(out)

		var pending sync.WaitGroup
		defer pending.Wait()

		for {
			var plan *ExecutionPlan
			var ok bool
			select {
			case <-ctx.Done():
				return
			case plan, ok = <-plans:
				if !ok {
					return
				}
			}

			// Admission suspends here until the inflight budget has capacity.
			if err := d.gates.inflight.Acquire(ctx, 1); err != nil {
				return
			}

			pending.Add(1)
			go func(plan *ExecutionPlan) {
				defer pending.Done()
				defer d.gates.inflight.Release(1)

				resp := d.execute(ctx, plan)
				select {
				case out <- resp:
				case <-ctx.Done():
					d.logger.Debug().Str("request_id", resp.RequestID).Msg("Response dropped during teardown")
				}
			}(plan)
		}
	}()

	return out, nil
}

// execute runs one plan and captures any failure into the response value.
func (d *Dispatcher) execute(ctx context.Context, plan *ExecutionPlan) Response {
	var requestID string
	if plan != nil && plan.Request != nil {
		requestID = plan.Request.ID
	}

	resp, err := d.run(ctx, plan)
	if err != nil {
		return Response{RequestID: requestID, Err: err}
	}
	return *resp
}
