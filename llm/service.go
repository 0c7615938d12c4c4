package llm

import (
	"context"
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/docforge-ai/docforge/config"
)

// PromptSpec names the profiles a request should run against, plus
// caller-supplied configuration overrides applied on top of the configured
// defaults.
type PromptSpec struct {
	Request             *Request
	Profile             string
	Fallbacks           []string
	GenerationOverrides map[string]interface{}
	ProviderOverrides   map[string]interface{}
}

// Service is the engine façade: it resolves profile names into execution
// plans and runs them through the cache, executor and dispatcher. One
// Service owns one registry and one gate pair; independent Services never
// share either.
type Service struct {
	cfg        *config.LLMConfig
	registry   *Registry
	gates      *Gates
	runner     *CachedRunner
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewService wires the engine together. factory constructs provider
// clients (see the backends package for the production factory); cache may
// be nil to disable caching. Gate misconfiguration fails here, before any
// request is accepted.
func NewService(cfg *config.LLMConfig, factory Factory, cache Cache, logger zerolog.Logger) (*Service, error) {
	gates, err := NewGates(cfg.Globals.MaxConcurrency, cfg.Globals.MaxConcurrency*cfg.Globals.InflightMultiplier)
	if err != nil {
		return nil, err
	}

	tools := make(map[string]ToolSpec, len(cfg.Tools))
	for name, tc := range cfg.Tools {
		tools[name] = ToolSpec{Name: name, Description: tc.Description, Parameters: tc.Parameters}
	}

	registry := NewRegistry(factory, tools, logger)
	exec := NewExecutor(registry, gates.Calls(), logger)
	runner := NewCachedRunner(exec, cache, logger)

	return &Service{
		cfg:        cfg,
		registry:   registry,
		gates:      gates,
		runner:     runner,
		dispatcher: NewDispatcher(runner.Run, gates, logger),
		logger:     logger.With().Str("component", "llmService").Logger(),
	}, nil
}

// Close releases every provider client the service constructed.
func (s *Service) Close() error {
	return s.registry.Close()
}

// ResolveTarget resolves one profile name through the profile, model and
// provider registries, merging the configured defaults with the supplied
// overrides (override wins) without mutating the shared configuration.
// Dangling references and missing credentials fail here, before any
// network attempt.
func (s *Service) ResolveTarget(profile string, genOverrides, provOverrides map[string]interface{}) (*Target, error) {
	profileCfg, ok := s.cfg.Profiles[profile]
	if !ok {
		return nil, &config.ReferenceError{Kind: "profile", Name: profile}
	}

	modelCfg, ok := s.cfg.Models[profileCfg.Model]
	if !ok {
		return nil, &config.ReferenceError{Kind: "model", Name: profileCfg.Model}
	}

	providerName := profileCfg.Provider
	if providerName == "" {
		providerName = modelCfg.Provider
	}
	providerCfg, ok := s.cfg.Providers[providerName]
	if !ok {
		return nil, &config.ReferenceError{Kind: "provider", Name: providerName}
	}

	apiKey, err := providerCfg.APIKey(providerName)
	if err != nil {
		return nil, err
	}

	generation, err := mergeSettings(modelCfg.Generation, genOverrides)
	if err != nil {
		return nil, fmt.Errorf("merging generation settings for profile %q: %w", profile, err)
	}
	defaults, err := mergeSettings(providerCfg.Defaults, provOverrides)
	if err != nil {
		return nil, fmt.Errorf("merging provider settings for profile %q: %w", profile, err)
	}

	return &Target{
		Provider: providerName,
		Model: ModelConfig{
			Name:       profileCfg.Model,
			Generation: generation,
		},
		ProviderConfig: ProviderConfig{
			Name:     providerName,
			APIKey:   apiKey,
			Defaults: defaults,
		},
	}, nil
}

// ResolvePlan builds an execution plan from a primary profile and ordered
// fallback profiles, each resolved independently. The request's allowed
// tools default to the primary profile's allow-list.
func (s *Service) ResolvePlan(spec PromptSpec) (*ExecutionPlan, error) {
	if spec.Request == nil {
		return nil, fmt.Errorf("resolve plan: nil request")
	}

	primary, err := s.ResolveTarget(spec.Profile, spec.GenerationOverrides, spec.ProviderOverrides)
	if err != nil {
		return nil, err
	}

	fallbacks := make([]*Target, 0, len(spec.Fallbacks))
	for _, name := range spec.Fallbacks {
		target, err := s.ResolveTarget(name, spec.GenerationOverrides, spec.ProviderOverrides)
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, target)
	}

	req := spec.Request
	if req.AllowedTools == nil {
		if profileCfg := s.cfg.Profiles[spec.Profile]; len(profileCfg.Tools) > 0 {
			clone := *req
			clone.AllowedTools = profileCfg.Tools
			req = &clone
		}
	}

	return &ExecutionPlan{
		Request:   req,
		Primary:   primary,
		Fallbacks: fallbacks,
		Retry:     s.retryPolicy(),
	}, nil
}

func (s *Service) retryPolicy() RetryPolicy {
	rc := s.cfg.Globals.Retry
	policy := RetryPolicy{
		MaxAttempts: rc.MaxAttempts,
		RetryOn:     rc.RetryOn,
		Backoff:     time.Duration(rc.BackoffSec * float64(time.Second)),
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return policy
}

// Prompt is the single-shot entry point: resolve, gate, run through the
// cache when useCache is set.
func (s *Service) Prompt(ctx context.Context, spec PromptSpec, useCache bool) (*Response, error) {
	plan, err := s.ResolvePlan(spec)
	if err != nil {
		return nil, err
	}

	if err := s.gates.inflight.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.gates.inflight.Release(1)

	return s.runner.GetOrRun(ctx, plan, useCache)
}

// Stream is the streaming entry point: specs in, responses out in
// completion order. Resolution failures for individual specs are captured
// as Response values; the stream itself only fails for misconfigured
// gates. The same teardown contract as Dispatcher.Run applies: cancel ctx
// and drain until the channel closes.
func (s *Service) Stream(ctx context.Context, specs <-chan PromptSpec) (<-chan Response, error) {
	plans := make(chan *ExecutionPlan)
	dispatched, err := s.dispatcher.Run(ctx, plans)
	if err != nil {
		return nil, err
	}

	unresolved := make(chan Response)
	go func() {
		defer close(plans)
		defer close(unresolved)
		for {
			var spec PromptSpec
			var ok bool
			select {
			case <-ctx.Done():
				return
			case spec, ok = <-specs:
				if !ok {
					return
				}
			}

			plan, err := s.ResolvePlan(spec)
			if err != nil {
				var requestID string
				if spec.Request != nil {
					requestID = spec.Request.ID
				}
				select {
				case unresolved <- Response{RequestID: requestID, Err: err}:
				case <-ctx.Done():
					return
				}
				continue
			}

			select {
			case plans <- plan:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make(chan Response)
	go func() {
		defer close(out)
		for unresolved != nil || dispatched != nil {
			select {
			case resp, ok := <-unresolved:
				if !ok {
					unresolved = nil
					continue
				}
				out <- resp
			case resp, ok := <-dispatched:
				if !ok {
					dispatched = nil
					continue
				}
				out <- resp
			}
		}
	}()

	return out, nil
}

// Profiles returns the configured profile names, for diagnostics.
func (s *Service) Profiles() []string {
	return lo.Keys(s.cfg.Profiles)
}

// mergeSettings deep-merges overrides over base without mutating either.
func mergeSettings(base, overrides map[string]interface{}) (map[string]interface{}, error) {
	if base == nil && overrides == nil {
		return nil, nil
	}
	merged := make(map[string]interface{}, len(base)+len(overrides))
	if err := mergo.Merge(&merged, base); err != nil {
		return nil, err
	}
	if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
		return nil, err
	}
	return merged, nil
}
