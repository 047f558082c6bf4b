// Package orchestrator implements the per-message request pipeline: budget
// gating, response caching, memory augmentation, provider calls with
// streaming pass-through, local fallback, cost accounting and audit
// logging. Side effects are cumulative and never rolled back; a caller that
// disconnects mid-stream still leaves cost and message rows for the partial
// output.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/harun/orkestra/internal/metrics"
	"github.com/harun/orkestra/pkg/bus"
	"github.com/harun/orkestra/pkg/cache"
	"github.com/harun/orkestra/pkg/ledger"
	"github.com/harun/orkestra/pkg/llm"
	"github.com/harun/orkestra/pkg/memory"
	"github.com/harun/orkestra/pkg/router"
	"github.com/rs/zerolog"
)

const agentID = "orchestrator"

// memoryRecallLimit caps how many facts augment the prompt.
const memoryRecallLimit = 3

// FallbackConfig describes the optional locally hosted backend used when
// the primary provider fails.
type FallbackConfig struct {
	Enabled bool
	Client  llm.Client
	Model   string
}

// Config assembles the pipeline's collaborators. Bus, Cache and Ledger are
// required; Memory, Router and Metrics are optional.
type Config struct {
	Bus    *bus.Bus
	Cache  *cache.Cache
	Ledger *ledger.Ledger
	Memory *memory.Store
	Router *router.Router // non-nil delegates every request to sub-agents
	Logger zerolog.Logger

	Model          string
	BudgetEnabled  bool
	DailyBudgetUSD float64
	Credentials    llm.Credentials
	Fallback       FallbackConfig
	Estimator      ledger.Estimator
	Metrics        *metrics.Metrics
}

// Orchestrator is the request-processing pipeline. It owns no persistent
// state of its own and is safe for concurrent use; each Process call is
// independent.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger

	// clientFor resolves the primary adapter; overridable in tests.
	clientFor func(model string) (llm.Client, error)
}

// New creates a pipeline instance.
func New(cfg Config) *Orchestrator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Estimator == nil {
		cfg.Estimator = ledger.EstimateTokens
	}
	creds := cfg.Credentials
	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("module", "orchestrator").Logger(),
		clientFor: func(model string) (llm.Client, error) {
			return llm.ForModel(model, creds)
		},
	}
}

// Process handles one inbound message and streams the reply. The returned
// channel is closed when the exchange is complete; every failure surfaces
// as text on the channel, never as a panic or dropped stream.
func (o *Orchestrator) Process(ctx context.Context, message, source string, stream bool) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		o.process(ctx, message, source, stream, out)
	}()
	return out
}

func (o *Orchestrator) process(ctx context.Context, message, source string, stream bool, out chan<- string) {
	// Sub-agent mode delegates the whole request to the router.
	if o.cfg.Router != nil {
		for token := range o.cfg.Router.Route(ctx, message, source) {
			select {
			case out <- token:
			case <-ctx.Done():
				return
			}
		}
		return
	}

	// Record receipt before any processing, so a crash mid-call never
	// loses the inbound message.
	if err := o.cfg.Bus.Log(source, agentID, "user", message, nil); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to log inbound message")
	}

	r := newRelay(ctx, out)
	defer func() {
		if err := o.cfg.Bus.Log(agentID, source, "assistant", r.Text(), nil); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to log reply")
		}
	}()

	messages := o.buildMessages(ctx, message)

	if o.budgetExceeded(source, r) {
		return
	}

	if !stream && o.cfg.Cache != nil {
		if cached, ok := o.cfg.Cache.Get(o.cfg.Model, messages); ok {
			o.count(source, "cache_hit")
			if o.cfg.Metrics != nil {
				o.cfg.Metrics.CacheHitsTotal.Inc()
			}
			r.Emit(cached)
			return
		}
	}

	req := llm.Request{Model: o.cfg.Model, Messages: messages}
	if stream {
		o.completeStreaming(ctx, req, message, source, r)
	} else {
		o.completeOnce(ctx, req, message, source, r)
	}
}

// buildMessages assembles the prompt: system instruction, best-effort
// recalled memory, then the user message.
func (o *Orchestrator) buildMessages(ctx context.Context, message string) []llm.Message {
	var facts []string
	if o.cfg.Memory != nil {
		for _, f := range o.cfg.Memory.Search(ctx, message, memoryRecallLimit) {
			facts = append(facts, f.Content)
		}
	}

	return []llm.Message{
		{Role: "system", Content: buildSystemPrompt(facts)},
		{Role: "user", Content: message},
	}
}

// budgetExceeded short-circuits the request when the daily cap is reached.
// The check is a single live read of the ledger; two concurrent requests
// can both pass it and jointly overshoot the cap.
func (o *Orchestrator) budgetExceeded(source string, r *relay) bool {
	if !o.cfg.BudgetEnabled {
		return false
	}

	daily, err := o.cfg.Ledger.DailyTotal()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Budget check failed, allowing request")
		return false
	}
	if daily < o.cfg.DailyBudgetUSD {
		return false
	}

	o.count(source, "budget_blocked")
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.BudgetBlocksTotal.Inc()
	}
	o.logger.Info().Float64("daily_usd", daily).Msg("Budget cap reached")
	r.Emit(fmt.Sprintf(
		"Budget cap reached (daily $%.2f). Set budget.enabled: false or increase daily_usd.", daily,
	))
	return true
}

// completeStreaming relays provider tokens as they arrive, then records
// cost for whatever was accumulated.
func (o *Orchestrator) completeStreaming(ctx context.Context, req llm.Request, message, source string, r *relay) {
	client, err := o.clientFor(req.Model)
	if err != nil {
		o.fallback(ctx, message, source, err, r)
		return
	}

	chunks, err := client.Stream(ctx, req)
	if err != nil {
		o.fallback(ctx, message, source, err, r)
		return
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			// The fallback reply follows any tokens already delivered.
			// The primary's truncated output is not billed.
			o.fallback(ctx, message, source, chunk.Err, r)
			return
		}
		r.Emit(chunk.Text)
	}

	o.recordCost(req, r.Text(), source)
}

// completeOnce performs a non-streaming call, records cost, fills the
// cache and emits the response in one piece.
func (o *Orchestrator) completeOnce(ctx context.Context, req llm.Request, message, source string, r *relay) {
	client, err := o.clientFor(req.Model)
	if err != nil {
		o.fallback(ctx, message, source, err, r)
		return
	}

	text, err := client.Complete(ctx, req)
	if err != nil {
		o.fallback(ctx, message, source, err, r)
		return
	}

	o.recordCost(req, text, source)
	if o.cfg.Cache != nil {
		if err := o.cfg.Cache.Set(req.Model, req.Messages, text); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}
	r.Emit(text)
}

// fallback makes the single local-backend attempt after a primary failure.
// No cost is recorded for the local backend.
func (o *Orchestrator) fallback(ctx context.Context, message, source string, primaryErr error, r *relay) {
	fb := o.cfg.Fallback
	if !fb.Enabled || fb.Client == nil {
		o.count(source, "error")
		o.logger.Error().Err(primaryErr).Msg("Provider call failed, no fallback configured")
		r.Emit(fmt.Sprintf("Error: %v", primaryErr))
		return
	}

	o.count(source, "fallback")
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.FallbacksTotal.Inc()
	}
	o.logger.Warn().Err(primaryErr).Str("model", fb.Model).Msg("Provider call failed, trying local fallback")

	text, err := fb.Client.Complete(ctx, llm.Request{
		Model: fb.Model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		r.Emit(fmt.Sprintf("Cloud API error: %v. Local fallback failed: %v", primaryErr, err))
		return
	}
	r.Emit(text)
}

func (o *Orchestrator) recordCost(req llm.Request, output, source string) {
	inputTokens := 0
	for _, m := range req.Messages {
		inputTokens += o.cfg.Estimator(m.Content)
	}
	outputTokens := o.cfg.Estimator(output)

	cost, err := o.cfg.Ledger.Record(agentID, req.Model, inputTokens, outputTokens)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to record cost")
		return
	}

	o.count(source, "ok")
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.CostUSDTotal.Add(cost)
	}
}

func (o *Orchestrator) count(source, outcome string) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.RequestsTotal.WithLabelValues(source, outcome).Inc()
	}
}
