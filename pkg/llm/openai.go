package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client for the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a new OpenAI adapter.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Kind returns the provider kind.
func (c *OpenAIClient) Kind() ProviderKind {
	return KindOpenAI
}

func (c *OpenAIClient) params(req Request) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Complete makes a non-streaming API call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	response, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}
	return response.Choices[0].Message.Content, nil
}

// Stream makes a streaming API call and relays content deltas.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				select {
				case out <- Chunk{Text: delta}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- Chunk{Err: fmt.Errorf("openai: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
