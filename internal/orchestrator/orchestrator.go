// Package orchestrator runs the completion pipeline: resolve a provider,
// validate, price the request, gate on the caller's balance, dispatch
// upstream, and reconcile usage afterwards.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/HeiSir2014/OpenAIRouter/internal/credits"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
	"github.com/HeiSir2014/OpenAIRouter/internal/pricing"
	"github.com/HeiSir2014/OpenAIRouter/internal/usage"
)

// Resolver picks the serving adapter for a model. The provider registry
// implements it.
type Resolver interface {
	Resolve(model string) (domain.Adapter, error)
	DefaultModel(provider string) string
}

// Config wires the orchestrator's collaborators. Registry, Ledger, and
// Usage are required; Pricing and Logger default when nil.
type Config struct {
	Registry Resolver
	Ledger   credits.Ledger
	Usage    usage.Sink
	Pricing  *pricing.Table
	Logger   *slog.Logger
}

// Orchestrator executes completion requests end to end.
type Orchestrator struct {
	registry Resolver
	ledger   credits.Ledger
	sink     usage.Sink
	prices   *pricing.Table
	logger   *slog.Logger
}

// New creates an orchestrator from its collaborators.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		sink:     cfg.Usage,
		prices:   cfg.Pricing,
		logger:   cfg.Logger,
	}
	if o.prices == nil {
		o.prices = pricing.Default()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Complete runs one request through the pipeline. Failures before
// dispatch (resolution, validation, balance) write no usage record; a
// dispatch failure writes exactly one failed record with zeroed token
// and cost fields.
func (o *Orchestrator) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	adapter, err := o.registry.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	providerName := adapter.Name()

	if req.Model == "" {
		req.Model = o.registry.DefaultModel(providerName)
		o.logger.Debug("substituted default model",
			"provider", providerName,
			"model", req.Model)
	}

	if err := adapter.Validate(req); err != nil {
		return nil, err
	}

	estimate := adapter.EstimateTokens(req)
	promptEstimate, completionEstimate := splitEstimate(estimate)
	estimatedCost := o.prices.Cost(providerName, req.Model, promptEstimate, completionEstimate)

	balance, err := o.ledger.Balance(ctx, req.Caller)
	if err != nil {
		return nil, domain.ErrInternal("balance check failed: " + err.Error())
	}
	if balance < estimatedCost {
		return nil, domain.ErrInsufficientCredits(estimatedCost, balance)
	}

	start := time.Now()
	resp, err := adapter.Complete(ctx, req)
	latency := time.Since(start)
	if err != nil {
		o.record(ctx, &usage.Record{
			RequestID: middleware.GetReqID(ctx),
			Caller:    req.Caller,
			Provider:  providerName,
			Model:     req.Model,
			Latency:   latency,
			Success:   false,
			Error:     err.Error(),
		})
		return nil, err
	}

	promptTokens, completionTokens := promptEstimate, completionEstimate
	if resp.Usage.TotalTokens > 0 {
		promptTokens = resp.Usage.PromptTokens
		completionTokens = resp.Usage.CompletionTokens
	}
	cost := o.prices.Cost(providerName, req.Model, promptTokens, completionTokens)

	// The response is already secured; a failed debit is a billing gap to
	// log, not a request failure.
	if err := o.ledger.Debit(ctx, req.Caller, cost); err != nil {
		o.logger.Error("credit debit failed",
			"caller", req.Caller,
			"provider", providerName,
			"cost", cost,
			"error", err)
	}

	o.record(ctx, &usage.Record{
		RequestID:        middleware.GetReqID(ctx),
		Caller:           req.Caller,
		Provider:         providerName,
		Model:            req.Model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Cost:             cost,
		Latency:          latency,
		Success:          true,
	})
	return resp, nil
}

// record writes a usage record, logging instead of failing when the sink
// rejects the write.
func (o *Orchestrator) record(ctx context.Context, rec *usage.Record) {
	if err := o.sink.Record(ctx, rec); err != nil {
		o.logger.Error("usage record write failed",
			"caller", rec.Caller,
			"provider", rec.Provider,
			"error", err)
	}
}

// splitEstimate apportions a pre-flight token estimate 70% prompt and
// 30% completion. The ratio is a fixed approximation; the two parts
// always sum back to the whole.
func splitEstimate(total int) (prompt, completion int) {
	prompt = total * 7 / 10
	return prompt, total - prompt
}
