package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"patentwatch/internal/config"
	"patentwatch/internal/logger"
)

// OpenAIAdapter talks to any OpenAI-compatible chat-completion endpoint
// (DeepSeek, OpenAI, compatible gateways). Server-side 5xx failures are
// retried with exponential backoff; authentication, rate-limit, connection
// and timeout failures are terminal for the call.
type OpenAIAdapter struct {
	client     *openai.Client
	model      string
	maxRetries int
	stream     bool
}

func NewOpenAIAdapter(cfg config.OpenAIConfig) (*OpenAIAdapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api_key not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	if cfg.Proxy != "" {
		// The proxy applies to this client's transport only. It is never
		// written to the process environment, so unrelated outbound calls
		// (search, URL fetch) are unaffected.
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	clientCfg.HTTPClient = httpClient

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: maxRetries,
		stream:     cfg.Stream,
	}, nil
}

func (a *OpenAIAdapter) GetResponse(ctx context.Context, messages []Message, opts ...Option) (*Response, error) {
	o := applyOptions(opts)
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: toOpenAIMessages(messages),
	}
	if o.model != "" {
		req.Model = o.model
	}
	if o.temperature != nil {
		req.Temperature = *o.temperature
	}
	if len(o.tools) > 0 {
		req.Tools = toOpenAITools(o.tools)
		if o.toolChoice != "" {
			req.ToolChoice = o.toolChoice
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		var resp *Response
		var err error
		if a.stream {
			resp, err = a.streamCompletion(ctx, req)
		} else {
			resp, err = a.createCompletion(ctx, req)
		}
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryableAPIError(err) {
			logger.Log.Errorf("OpenAI API call failed: %v", err)
			return nil, err
		}
		if attempt >= a.maxRetries {
			break
		}
		delay := retryDelay(attempt)
		logger.Log.Warnf("OpenAI API server error, retrying in %s (attempt %d/%d): %v",
			delay, attempt+1, a.maxRetries, err)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	logger.Log.Errorf("OpenAI API call failed after %d retries: %v", a.maxRetries, lastErr)
	return nil, lastErr
}

func (a *OpenAIAdapter) createCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*Response, error) {
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &Response{ID: resp.ID, Model: resp.Model, Created: resp.Created}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Message:      fromOpenAIMessage(c.Message),
			FinishReason: string(c.FinishReason),
		})
	}
	return out, nil
}

// streamCompletion consumes the incremental delta stream and reassembles it
// into the same Response shape as a non-streamed call. The caller never sees
// partial output.
func (a *OpenAIAdapter) streamCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*Response, error) {
	req.Stream = true
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	out := &Response{}
	var content strings.Builder
	var toolCalls []ToolCall
	finishReason := ""
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if out.ID == "" {
			out.ID = chunk.ID
			out.Model = chunk.Model
			out.Created = chunk.Created
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		content.WriteString(choice.Delta.Content)
		for _, tc := range choice.Delta.ToolCalls {
			toolCalls = mergeToolCallDelta(toolCalls, tc)
		}
		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
		}
	}

	out.Choices = []Choice{{
		Message: Message{
			Role:      RoleAssistant,
			Content:   content.String(),
			ToolCalls: toolCalls,
		},
		FinishReason: finishReason,
	}}
	return out, nil
}

// mergeToolCallDelta folds one streamed tool-call fragment into the
// accumulated calls. Fragments carry an index; id and function name arrive
// on the first fragment, argument text arrives in pieces.
func mergeToolCallDelta(calls []ToolCall, delta openai.ToolCall) []ToolCall {
	idx := len(calls)
	if delta.Index != nil {
		idx = *delta.Index
	}
	for idx >= len(calls) {
		calls = append(calls, ToolCall{Type: "function"})
	}
	tc := &calls[idx]
	if delta.ID != "" {
		tc.ID = delta.ID
	}
	if delta.Type != "" {
		tc.Type = string(delta.Type)
	}
	if delta.Function.Name != "" {
		tc.Function.Name += delta.Function.Name
	}
	tc.Function.Arguments += delta.Function.Arguments
	return calls
}

// isRetryableAPIError reports whether the failure is a server-side 5xx API
// error. Everything else (401/403 auth, 429 rate limit, connection refused,
// request timeout, malformed bodies) is terminal.
func isRetryableAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	return false
}

func retryDelay(attempt int) time.Duration {
	d := time.Second << attempt
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	msg := Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return msg
}

func toOpenAITools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolType(t.Type),
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}
