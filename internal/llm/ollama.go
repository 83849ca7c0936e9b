// Package llm provides the chat client used by the ask flow. Generation
// sits outside retrieval: the engine returns chunks either way, and the
// LLM only turns retrieved context plus a question into prose.
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

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "llama3.2"

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client generates chat completions. The interface exists so the ask flow
// is testable without a model server.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// OllamaChat calls the Ollama /api/chat endpoint.
type OllamaChat struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaChat creates a chat client against the given Ollama instance.
// Empty arguments select the local default instance and model.
func NewOllamaChat(baseURL, model string) *OllamaChat {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultModel
	}
	return &OllamaChat{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat sends a conversation and returns the assistant's reply.
func (c *OllamaChat) Chat(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama chat returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return result.Message.Content, nil
}

// Model returns the configured model name.
func (c *OllamaChat) Model() string { return c.model }
