// Package router classifies tasks into coarse types and dispatches them to
// an LLM-backed sub-agent, streaming the reply. Classification is a fixed
// ordered keyword lookup, not a learned system.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/orkestra/pkg/bus"
	"github.com/harun/orkestra/pkg/llm"
	"github.com/rs/zerolog"
)

const workerSystemPrompt = "You are a helpful sub-agent. Complete the task concisely."

// classificationRules are evaluated in order; the first matching keyword
// wins.
var classificationRules = []struct {
	taskType string
	keywords []string
}{
	{"classify", []string{"classify", "category"}},
	{"summarize", []string{"summar"}},
	{"code_gen", []string{"code", "program", "implement"}},
	{"reasoning", []string{"reason", "analyze", "explain why"}},
}

// Classify maps a task string to a task type.
func Classify(task string) string {
	t := strings.ToLower(task)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.taskType
			}
		}
	}
	return "default"
}

// Router dispatches tasks to sub-agents and logs all hops.
type Router struct {
	bus     *bus.Bus
	routing map[string]string
	logger  zerolog.Logger

	// clientFor resolves the adapter for a model; overridable in tests.
	clientFor func(model string) (llm.Client, error)
}

// Config holds router configuration.
type Config struct {
	Bus         *bus.Bus
	Routing     map[string]string // task type -> model id
	Credentials llm.Credentials
	Logger      zerolog.Logger
}

// New creates a task router.
func New(cfg Config) *Router {
	creds := cfg.Credentials
	return &Router{
		bus:     cfg.Bus,
		routing: cfg.Routing,
		logger:  cfg.Logger.With().Str("module", "router").Logger(),
		clientFor: func(model string) (llm.Client, error) {
			return llm.ForModel(model, creds)
		},
	}
}

// ModelFor returns the model the routing table assigns to a task type.
func (r *Router) ModelFor(taskType string) string {
	if model, ok := r.routing[taskType]; ok && model != "" {
		return model
	}
	if model, ok := r.routing["default"]; ok && model != "" {
		return model
	}
	return "gpt-4o-mini"
}

// Route classifies the task, runs it on the selected sub-agent model, and
// streams the reply. All errors surface as text on the returned channel;
// the full exchange is logged the same way direct pipeline traffic is.
func (r *Router) Route(ctx context.Context, task, source string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		taskType := Classify(task)
		model := r.ModelFor(taskType)

		if err := r.bus.Log(source, "router", "user", task, map[string]interface{}{
			"task_type": taskType,
		}); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to log inbound task")
		}

		r.logger.Info().
			Str("task_type", taskType).
			Str("model", model).
			Str("source", source).
			Msg("Routing task")

		full := r.run(ctx, taskType, model, task, out)

		if err := r.bus.Log("router", source, "assistant", full, nil); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to log reply")
		}
	}()

	return out
}

// run executes the task and returns the assembled reply text, relaying
// tokens to out as they arrive.
func (r *Router) run(ctx context.Context, taskType, model, task string, out chan<- string) string {
	client, err := r.clientFor(model)
	if err != nil {
		msg := fmt.Sprintf("Error: %v", err)
		r.emit(ctx, out, msg)
		return msg
	}

	chunks, err := client.Stream(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: "system", Content: workerSystemPrompt},
			{Role: "user", Content: task},
		},
	})
	if err != nil {
		msg := fmt.Sprintf("Error: %v", err)
		r.emit(ctx, out, msg)
		return msg
	}

	var b strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			msg := fmt.Sprintf("Error: %v", chunk.Err)
			r.emit(ctx, out, msg)
			b.WriteString(msg)
			break
		}
		b.WriteString(chunk.Text)
		r.emit(ctx, out, chunk.Text)
	}

	return b.String()
}

func (r *Router) emit(ctx context.Context, out chan<- string, token string) {
	select {
	case out <- token:
	case <-ctx.Done():
	}
}
