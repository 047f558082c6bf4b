package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient implements Client for a locally hosted Ollama server. It is
// used as the fallback backend when a cloud provider call fails.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaClient creates a new Ollama adapter for the given base URL
// (e.g. "http://localhost:11434").
func NewOllamaClient(baseURL string) *OllamaClient {
	return &OllamaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Kind returns the provider kind.
func (c *OllamaClient) Kind() ProviderKind {
	return KindOllama
}

// Available reports whether the Ollama server responds to a tags probe.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Complete makes a non-streaming chat call against the local server.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	body := map[string]interface{}{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   false,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("ollama: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama: server error (status %d): %s", resp.StatusCode, string(data))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama: failed to decode response: %w", err)
	}

	return result.Message.Content, nil
}

// Stream satisfies Client. The local backend is only used on the fallback
// path, which delivers the reply in one piece.
func (c *OllamaClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	out := make(chan Chunk, 1)
	go func() {
		defer close(out)
		text, err := c.Complete(ctx, req)
		if err != nil {
			out <- Chunk{Err: err}
			return
		}
		out <- Chunk{Text: text}
	}()
	return out, nil
}
