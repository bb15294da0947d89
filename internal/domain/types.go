// Package domain holds the gateway's canonical request and response model.
//
// The canonical shape is the OpenAI chat-completions format. Requests are
// decoded into it at the front door, provider adapters translate it to and
// from each upstream wire format, and responses are encoded from it.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles accepted in a completion request.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// CompletionRequest is the canonical chat-completion request.
type CompletionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages,omitempty"`

	// Prompt is the legacy completions field. Exactly one of Messages or
	// Prompt must be present; Prompt is normalized into a single user
	// message before dispatch.
	Prompt *PromptValue `json:"prompt,omitempty"`

	MaxTokens        int                `json:"max_tokens,omitempty"`
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	N                int                `json:"n,omitempty"`
	Stream           bool               `json:"stream,omitempty"`
	Stop             StopSequences      `json:"stop,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
	User             string             `json:"user,omitempty"`
	Tools            []Tool             `json:"tools,omitempty"`
	ToolChoice       any                `json:"tool_choice,omitempty"`

	// Caller is the authenticated caller id. Set by the server, never
	// decoded from the wire.
	Caller string `json:"-"`

	// PassthroughHeaders are caller headers forwarded upstream, merged
	// under the adapter's own headers. Credential and Host headers are
	// stripped before they reach an adapter.
	PassthroughHeaders map[string]string `json:"-"`
}

// Message is a single chat message.
type Message struct {
	Role       string         `json:"role"`
	Content    MessageContent `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ToolCall is an assistant request to invoke a tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function. Parameters is an
// opaque JSON schema and is never interpreted by the gateway.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Tool choice modes.
const (
	ToolChoiceNone     = "none"
	ToolChoiceAuto     = "auto"
	ToolChoiceFunction = "function"
)

// ToolChoice is the normalized form of the request tool_choice field.
type ToolChoice struct {
	Mode string // "", "none", "auto", or "function"
	Name string // set when Mode is "function"
}

// ParseToolChoice normalizes the wire tool_choice value, which may be the
// string "none"/"auto" or an object naming a specific function.
func ParseToolChoice(v any) (ToolChoice, error) {
	switch tc := v.(type) {
	case nil:
		return ToolChoice{}, nil
	case string:
		switch tc {
		case ToolChoiceNone, ToolChoiceAuto:
			return ToolChoice{Mode: tc}, nil
		}
		return ToolChoice{}, fmt.Errorf("tool_choice must be %q, %q, or a function object, got %q", ToolChoiceNone, ToolChoiceAuto, tc)
	case map[string]any:
		fn, ok := tc["function"].(map[string]any)
		if !ok {
			return ToolChoice{}, fmt.Errorf("tool_choice object must contain a function field")
		}
		name, ok := fn["name"].(string)
		if !ok || name == "" {
			return ToolChoice{}, fmt.Errorf("tool_choice function must have a name")
		}
		return ToolChoice{Mode: ToolChoiceFunction, Name: name}, nil
	default:
		return ToolChoice{}, fmt.Errorf("tool_choice has unsupported type %T", v)
	}
}

// StopSequences accepts the stop field as a single string or an array.
type StopSequences []string

// MarshalJSON implements json.Marshaler, emitting a bare string for a
// single sequence.
func (s StopSequences) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StopSequences{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// PromptValue holds the legacy completions prompt, a single string or an
// array of strings.
type PromptValue struct {
	Segments []string
}

// String joins the prompt segments with newlines.
func (p *PromptValue) String() string {
	return strings.Join(p.Segments, "\n")
}

// MarshalJSON implements json.Marshaler.
func (p PromptValue) MarshalJSON() ([]byte, error) {
	if len(p.Segments) == 1 {
		return json.Marshal(p.Segments[0])
	}
	return json.Marshal(p.Segments)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PromptValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		p.Segments = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	p.Segments = many
	return nil
}

// CompletionResponse is the canonical chat-completion response.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Finish reasons in canonical responses.
const (
	FinishReasonStop      = "stop"
	FinishReasonLength    = "length"
	FinishReasonToolCalls = "tool_calls"
)

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Model is a single entry in the model listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the /v1/models response shape.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ModelDetail extends a model entry with gateway-known capabilities,
// returned from /v1/models/{id}.
type ModelDetail struct {
	Model
	Provider          string `json:"provider"`
	ContextLength     int    `json:"context_length"`
	SupportsFunctions bool   `json:"supports_functions"`
	SupportsVision    bool   `json:"supports_vision"`
}
