// Package llm provides a uniform interface over the supported LLM
// backends (OpenAI, Anthropic, local Ollama). Provider selection is a pure
// function of the model identifier; retry and fallback policy belong to
// the caller.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCredentialMissing is returned before any network call when the API key
// required by the selected provider is absent.
var ErrCredentialMissing = errors.New("credential missing")

// Message is a single role/content turn sent to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the parameters for a completion call.
type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int
}

// Chunk is one element of a token stream. A non-nil Err terminates the
// stream; no further chunks follow it.
type Chunk struct {
	Text string
	Err  error
}

// Client is the capability every backend adapter implements. Adapters are
// stateless across calls and never retry internally.
type Client interface {
	// Complete returns the full response text.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream returns a channel of token chunks. The channel is closed when
	// the stream ends.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)

	// Kind returns the provider kind.
	Kind() ProviderKind
}

// ProviderKind identifies a backend implementation.
type ProviderKind string

const (
	KindOpenAI    ProviderKind = "openai"
	KindAnthropic ProviderKind = "anthropic"
	KindOllama    ProviderKind = "ollama"
)

// KindForModel classifies a model identifier into a provider kind.
// Claude-family models go to Anthropic; everything else defaults to OpenAI.
func KindForModel(model string) ProviderKind {
	if strings.HasPrefix(strings.ToLower(model), "claude") {
		return KindAnthropic
	}
	return KindOpenAI
}

// Credentials holds the API keys available to the adapter factory.
type Credentials struct {
	OpenAIKey    string
	AnthropicKey string
}

// ForModel selects and constructs the adapter for a model identifier.
// It fails with ErrCredentialMissing when the required key is absent, so
// callers can react without waiting on a doomed request.
func ForModel(model string, creds Credentials) (Client, error) {
	switch kind := KindForModel(model); kind {
	case KindAnthropic:
		if creds.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY or run: orkestra configure)", ErrCredentialMissing)
		}
		return NewAnthropicClient(creds.AnthropicKey), nil
	default:
		if creds.OpenAIKey == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY or run: orkestra configure)", ErrCredentialMissing)
		}
		return NewOpenAIClient(creds.OpenAIKey), nil
	}
}

// SplitSystem separates the system instruction from the conversational
// messages, for backends that take the system prompt out of band.
func SplitSystem(messages []Message) (system string, rest []Message) {
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
