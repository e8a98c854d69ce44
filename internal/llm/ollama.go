package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"patentwatch/internal/config"
	"patentwatch/internal/logger"
)

// OllamaAdapter posts a single non-streaming JSON request to a local Ollama
// chat endpoint and remaps the native response shape into the unified
// Response contract. Failures are terminal; local inference is not retried.
type OllamaAdapter struct {
	endpoint string
	model    string
	client   *http.Client
}

func NewOllamaAdapter(cfg config.OllamaConfig) *OllamaAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaAdapter{
		endpoint: base + "/api/chat",
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (a *OllamaAdapter) GetResponse(ctx context.Context, messages []Message, opts ...Option) (*Response, error) {
	o := applyOptions(opts)
	model := a.model
	if o.model != "" {
		model = o.model
	}

	// Tool declarations are silently ignored; this backend does not support
	// function calling.
	payload := ollamaChatRequest{Model: model, Stream: false}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Ollama request encode failed: %v", err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		logger.Log.Errorf("Ollama API call failed: %v", err)
		return nil, err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if res.StatusCode >= 400 {
		err := fmt.Errorf("status code: %d body=%s", res.StatusCode, strings.TrimSpace(string(raw)))
		logger.Log.Errorf("Ollama API call failed: %v", err)
		return nil, err
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		logger.Log.Errorf("failed to decode Ollama API response: %s", strings.TrimSpace(string(raw)))
		return nil, err
	}

	return &Response{
		Model: parsed.Model,
		Choices: []Choice{{
			Message:      Message{Role: RoleAssistant, Content: parsed.Message.Content},
			FinishReason: "stop",
		}},
	}, nil
}
