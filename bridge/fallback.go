package bridge

import (
	"context"
	"errors"
	"slices"

	"github.com/HydroGest/lmarena/core"
	"github.com/HydroGest/lmarena/logging"
	"go.uber.org/zap"
)

// Orchestrator runs the bridge leg and, when its failure warrants it, the
// fallback leg.
//
//	START → PRIMARY ─ok──────────────────────────→ SUCCESS
//	           │ fail, trigger matched → FALLBACK ─ok→ SUCCESS
//	           │                           └─fail→ FAILED
//	           └ fail, no trigger ──────────────────→ FAILED
//	any state ─ctx done─→ CANCELLED
type Orchestrator struct {
	client   *Client
	primary  Leg
	fallback FallbackPolicy
	log      *logging.Logger
}

// NewOrchestrator creates an Orchestrator. The primary leg always aborts on
// AbortPrimary; the fallback leg on AbortFallback.
func NewOrchestrator(client *Client, primary Endpoint, policy RetryPolicy, fallback FallbackPolicy, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Orchestrator{
		client: client,
		primary: Leg{
			Name:     LegPrimary,
			Endpoint: primary,
			Policy:   policy,
			Abort:    AbortPrimary,
		},
		fallback: fallback,
		log:      log,
	}
}

// NewOrchestratorFromConfig wires both legs from the loaded configuration.
func NewOrchestratorFromConfig(cfg *core.Config, client *Client, log *logging.Logger) *Orchestrator {
	return NewOrchestrator(client,
		Endpoint{URL: cfg.BaseURL, Model: cfg.Model},
		RetryPolicy{MaxRetries: cfg.MaxRetries, RetryInterval: cfg.RetryInterval},
		FallbackPolicy{
			Enabled: cfg.EnableFallback,
			Endpoint: Endpoint{
				URL:    cfg.FallbackBaseURL,
				Model:  cfg.FallbackModel,
				APIKey: cfg.FallbackAPIKey,
			},
			Policy:             RetryPolicy{MaxRetries: cfg.FallbackMaxRetries, RetryInterval: cfg.FallbackRetryInterval},
			TriggerStatusCodes: append([]int(nil), cfg.FallbackErrorCodes...),
		},
		log)
}

// Option customizes one GenerateWithFallback call.
type Option func(*CallOptions)

// CallOptions is the result of applying Options.
type CallOptions struct {
	OnFallback func()
}

// ApplyOptions folds opts into a CallOptions. Alternative Generator
// implementations use it to honor the same options.
func ApplyOptions(opts ...Option) CallOptions {
	var call CallOptions
	for _, opt := range opts {
		opt(&call)
	}
	return call
}

// OnFallback registers fn to run once, just before the fallback leg starts.
// Handlers use it to tell the user that a second API is being tried.
func OnFallback(fn func()) Option {
	return func(o *CallOptions) {
		o.OnFallback = fn
	}
}

// GenerateWithFallback returns the generated image URL.
//
// Errors: ErrCancelled when ctx ends, the primary leg's error when the
// fallback is disabled or not triggered, and a *FallbackError when both legs
// fail.
func (o *Orchestrator) GenerateWithFallback(ctx context.Context, req GenerationRequest, opts ...Option) (*Result, error) {
	call := ApplyOptions(opts...)

	url, state, err := o.client.Generate(ctx, req, o.primary)
	if err == nil {
		return &Result{
			ImageURL: url,
			Leg:      LegPrimary,
			Model:    o.modelFor(o.primary.Endpoint, req),
			Attempts: state.Attempts,
		}, nil
	}
	if errors.Is(err, ErrCancelled) {
		return nil, ErrCancelled
	}

	if !o.ShouldFallback(state, err) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	o.log.Warn("primary leg failed, switching to fallback API",
		zap.Int("last_status", state.LastStatusCode),
		zap.Int("attempts", state.Attempts),
		zap.String("fallback_model", o.fallback.Endpoint.Model),
		zap.Error(err))
	o.client.observer.ObserveFallback()
	if call.OnFallback != nil {
		call.OnFallback()
	}

	fallbackLeg := Leg{
		Name:     LegFallback,
		Endpoint: o.fallback.Endpoint,
		Policy:   o.fallback.Policy,
		Abort:    AbortFallback,
	}
	url, fstate, ferr := o.client.Generate(ctx, req, fallbackLeg)
	if ferr == nil {
		return &Result{
			ImageURL:     url,
			Leg:          LegFallback,
			Model:        o.modelFor(fallbackLeg.Endpoint, req),
			Attempts:     fstate.Attempts,
			UsedFallback: true,
		}, nil
	}
	if errors.Is(ferr, ErrCancelled) {
		return nil, ErrCancelled
	}
	return nil, &FallbackError{Primary: err, Fallback: ferr}
}

// ShouldFallback reports whether a failed primary leg hands over: the
// fallback must be enabled, and either the last status code is a trigger or
// the primary budget ran out.
func (o *Orchestrator) ShouldFallback(state RetryState, err error) bool {
	if !o.fallback.Enabled {
		return false
	}
	if state.LastStatusCode != 0 && slices.Contains(o.fallback.TriggerStatusCodes, state.LastStatusCode) {
		return true
	}
	return errors.Is(err, ErrExhausted)
}

// FallbackEnabled reports whether a fallback leg is configured.
func (o *Orchestrator) FallbackEnabled() bool {
	return o.fallback.Enabled
}

func (o *Orchestrator) modelFor(ep Endpoint, req GenerationRequest) string {
	if ep.Model != "" {
		return ep.Model
	}
	return req.Model()
}
