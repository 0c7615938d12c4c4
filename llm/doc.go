// Package llm is the request-execution engine behind the documentation
// workflow: it resolves caller-facing profile names into concrete execution
// plans, drives each plan across a primary target and ordered fallbacks
// with per-target retries, bounds concurrent work with a pair of gates, and
// dedupes expensive calls through a fingerprint-keyed cache.
//
// # Core pieces
//
//  1. Data model: Message, Request, Target, RetryPolicy and ExecutionPlan
//     are value types constructed per call and treated as immutable.
//
//  2. Client contract: the Client interface hides each backend's SDK; the
//     Registry constructs clients lazily, one per provider identifier, via
//     an injected Factory. The backends package supplies the production
//     factory; tests inject fakes.
//
//  3. Executor: visits targets in [primary, fallbacks...] order, retrying a
//     target while its error's status code matches the policy's wildcard
//     patterns, and returns on the first success.
//
//  4. Dispatcher: consumes a lazily produced plan stream under an inflight
//     gate and a narrower provider-call gate, yielding responses in
//     completion order. Per-request failures are captured as values.
//
//  5. Cache: MemoryCache and DiskCache store resulting messages under plan
//     fingerprints; CachedRunner wraps the executor with get-or-run.
//
//  6. Service: the façade tying configuration, resolution, caching and
//     dispatch together, exposing Prompt (single shot) and Stream.
//
// Failures carry numeric status codes: 400-599 mirror the backend's HTTP
// semantics, 600+ are internal conditions (unsupported provider, empty
// plan, misconfigured gates, ...). See errors.go.
package llm
