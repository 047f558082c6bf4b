package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

// AnthropicClient implements Client for the Anthropic messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a new Anthropic adapter.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Kind returns the provider kind.
func (c *AnthropicClient) Kind() ProviderKind {
	return KindAnthropic
}

func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	system, rest := SplitSystem(req.Messages)

	messages := []anthropic.MessageParam{}
	for _, msg := range rest {
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		default:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// Complete makes a non-streaming API call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	response, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	content := ""
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	return content, nil
}

// Stream makes a streaming API call and relays text deltas.
func (c *AnthropicClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(req))

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			select {
			case out <- Chunk{Text: text.Text}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- Chunk{Err: fmt.Errorf("anthropic: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
