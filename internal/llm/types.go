// Package llm provides a uniform interface over heterogeneous chat-completion
// backends. Stages talk to the Adapter contract only; whether the model lives
// behind a hosted OpenAI-compatible API or a local Ollama server is decided
// once, from configuration, by the factory.
package llm

import "context"

// Message roles. The sequences exchanged with an adapter are strictly
// ordered and append-only within one stage run.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string
	Content string
	// ToolCalls is set on assistant turns that request tool execution.
	ToolCalls []ToolCall
	// ToolCallID correlates a tool-result turn with the originating call.
	ToolCallID string
	// Name is the tool name on tool-result turns.
	Name string
}

// ToolCall is a function-call request emitted by the model.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

// FunctionCall carries the requested function name and its arguments as the
// raw JSON object string produced by the model.
type FunctionCall struct {
	Name      string
	Arguments string
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string
	Function FunctionDefinition
}

type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is the single explicit response shape every backend variant must
// construct. Callers only ever see this type, fully assembled; streamed
// backends reassemble their delta stream into it before returning.
type Response struct {
	ID      string
	Model   string
	Created int64
	Choices []Choice
}

type Choice struct {
	Message      Message
	FinishReason string
}

// FirstMessage returns the first candidate message, or a zero Message when
// the backend produced no choices.
func (r *Response) FirstMessage() Message {
	if r == nil || len(r.Choices) == 0 {
		return Message{}
	}
	return r.Choices[0].Message
}

// Adapter is the capability interface shared by all backend variants.
// Every failure class (connection refused, authentication rejected,
// rate-limited, malformed body, decode failure) is logged inside the
// adapter and surfaced as (nil, err); adapters never panic past this
// boundary. Callers treat a nil response as "this round cannot proceed".
type Adapter interface {
	GetResponse(ctx context.Context, messages []Message, opts ...Option) (*Response, error)
}

// Option is a per-call keyword option.
type Option func(*callOptions)

type callOptions struct {
	model       string
	temperature *float32
	tools       []Tool
	toolChoice  string
}

// WithModel overrides the adapter's configured model identifier.
func WithModel(model string) Option {
	return func(o *callOptions) { o.model = model }
}

// WithTemperature sets the sampling temperature for this call.
func WithTemperature(t float32) Option {
	return func(o *callOptions) { o.temperature = &t }
}

// WithTools declares the functions the model may call.
func WithTools(tools []Tool) Option {
	return func(o *callOptions) { o.tools = tools }
}

// WithToolChoice sets the tool-choice policy ("auto", "none", …).
func WithToolChoice(choice string) Option {
	return func(o *callOptions) { o.toolChoice = choice }
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
