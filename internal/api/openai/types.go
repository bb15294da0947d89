// Package openai provides the wire types and HTTP client for OpenAI-style
// chat-completions APIs. Any upstream exposing the OpenAI surface (OpenAI
// itself, Azure-hosted deployments, local inference servers) is reachable
// through this client with a custom base URL.
package openai

import (
	"encoding/json"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// ChatRequest is the chat-completions request body. The shape tracks the
// gateway's canonical model closely; the pass-through adapter fills it
// near-verbatim.
type ChatRequest struct {
	Model            string               `json:"model"`
	Messages         []ChatMessage        `json:"messages"`
	MaxTokens        int                  `json:"max_tokens,omitempty"`
	Temperature      *float64             `json:"temperature,omitempty"`
	TopP             *float64             `json:"top_p,omitempty"`
	N                int                  `json:"n,omitempty"`
	Stream           bool                 `json:"stream,omitempty"`
	Stop             domain.StopSequences `json:"stop,omitempty"`
	PresencePenalty  *float64             `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64             `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64   `json:"logit_bias,omitempty"`
	User             string               `json:"user,omitempty"`
	Tools            []Tool               `json:"tools,omitempty"`
	ToolChoice       any                  `json:"tool_choice,omitempty"`
}

// ChatMessage is a message in the request or response. Content reuses the
// canonical string-or-parts union.
type ChatMessage struct {
	Role       string                `json:"role"`
	Content    domain.MessageContent `json:"content"`
	Name       string                `json:"name,omitempty"`
	ToolCalls  []ToolCall            `json:"tool_calls,omitempty"`
	ToolCallID string                `json:"tool_call_id,omitempty"`
}

// Tool declares a callable function.
type Tool struct {
	Type     string       `json:"type"`
	Function FunctionTool `json:"function"`
}

// FunctionTool describes a function tool.
type FunctionTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolCall is a tool invocation emitted by the model.
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

// ChatResponse is the chat-completions response body.
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is a completion alternative.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage reports upstream token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse is the error envelope returned by OpenAI-style APIs.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains upstream error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ToCanonical converts an upstream error into the gateway's provider
// error, preserving the upstream status code and detail.
func (e *APIError) ToCanonical(statusCode int) *domain.APIError {
	apiErr := domain.ErrProvider("", statusCode, e.Message).WithParam(e.Param)
	if e.Code != "" {
		apiErr.Code = domain.ErrorCode(e.Code)
	}
	return apiErr
}

// ParseErrorResponse parses an error body. Returns nil when the body does
// not carry the error envelope.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}
