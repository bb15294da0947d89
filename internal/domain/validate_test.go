package domain

import (
	"errors"
	"strconv"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func validRequest() *CompletionRequest {
	return &CompletionRequest{
		Model: "gpt-3.5-turbo",
		Messages: []Message{
			{Role: RoleUser, Content: TextContent("hello")},
		},
	}
}

func TestCompletionRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CompletionRequest)
		wantParam string
	}{
		{
			name:   "valid request",
			mutate: func(r *CompletionRequest) {},
		},
		{
			name:      "no messages or prompt",
			mutate:    func(r *CompletionRequest) { r.Messages = nil },
			wantParam: "messages",
		},
		{
			name: "messages and prompt together",
			mutate: func(r *CompletionRequest) {
				r.Prompt = &PromptValue{Segments: []string{"hi"}}
			},
			wantParam: "prompt",
		},
		{
			name:      "streaming rejected",
			mutate:    func(r *CompletionRequest) { r.Stream = true },
			wantParam: "stream",
		},
		{
			name:      "max_tokens too large",
			mutate:    func(r *CompletionRequest) { r.MaxTokens = MaxTokensCeiling + 1 },
			wantParam: "max_tokens",
		},
		{
			name:      "negative max_tokens",
			mutate:    func(r *CompletionRequest) { r.MaxTokens = -1 },
			wantParam: "max_tokens",
		},
		{
			name:      "temperature out of range",
			mutate:    func(r *CompletionRequest) { r.Temperature = floatPtr(2.5) },
			wantParam: "temperature",
		},
		{
			name:      "top_p zero",
			mutate:    func(r *CompletionRequest) { r.TopP = floatPtr(0) },
			wantParam: "top_p",
		},
		{
			name:      "n too large",
			mutate:    func(r *CompletionRequest) { r.N = 11 },
			wantParam: "n",
		},
		{
			name:      "presence penalty out of range",
			mutate:    func(r *CompletionRequest) { r.PresencePenalty = floatPtr(-2.1) },
			wantParam: "presence_penalty",
		},
		{
			name:      "frequency penalty out of range",
			mutate:    func(r *CompletionRequest) { r.FrequencyPenalty = floatPtr(3) },
			wantParam: "frequency_penalty",
		},
		{
			name: "too many stop sequences",
			mutate: func(r *CompletionRequest) {
				r.Stop = StopSequences{"a", "b", "c", "d", "e"}
			},
			wantParam: "stop",
		},
		{
			name: "logit bias value out of range",
			mutate: func(r *CompletionRequest) {
				r.LogitBias = map[string]float64{"50256": 101}
			},
			wantParam: "logit_bias",
		},
		{
			name: "logit bias non-numeric key",
			mutate: func(r *CompletionRequest) {
				r.LogitBias = map[string]float64{"hello": 1}
			},
			wantParam: "logit_bias",
		},
		{
			name: "unknown role",
			mutate: func(r *CompletionRequest) {
				r.Messages = []Message{{Role: "moderator", Content: TextContent("hi")}}
			},
			wantParam: "messages",
		},
		{
			name: "tool message without tool_call_id",
			mutate: func(r *CompletionRequest) {
				r.Messages = append(r.Messages, Message{Role: RoleTool, Content: TextContent("result")})
			},
			wantParam: "messages",
		},
		{
			name: "message without content",
			mutate: func(r *CompletionRequest) {
				r.Messages = []Message{{Role: RoleUser}}
			},
			wantParam: "messages",
		},
		{
			name: "assistant tool calls without content",
			mutate: func(r *CompletionRequest) {
				r.Messages = append(r.Messages, Message{
					Role:      RoleAssistant,
					ToolCalls: []ToolCall{{ID: "call_1", Type: "function", Function: FunctionCall{Name: "lookup", Arguments: "{}"}}},
				})
			},
		},
		{
			name: "tool without name",
			mutate: func(r *CompletionRequest) {
				r.Tools = []Tool{{Type: "function"}}
			},
			wantParam: "tools",
		},
		{
			name: "tool_choice without tools",
			mutate: func(r *CompletionRequest) {
				r.ToolChoice = "auto"
			},
			wantParam: "tool_choice",
		},
		{
			name: "tool without parameters",
			mutate: func(r *CompletionRequest) {
				r.Tools = []Tool{{Type: "function", Function: FunctionDefinition{Name: "lookup"}}}
			},
			wantParam: "tools",
		},
		{
			name: "tool_choice names unknown function",
			mutate: func(r *CompletionRequest) {
				r.Tools = []Tool{{
					Type:     "function",
					Function: FunctionDefinition{Name: "lookup", Parameters: map[string]any{"type": "object"}},
				}}
				r.ToolChoice = map[string]any{
					"type":     "function",
					"function": map[string]any{"name": "other"},
				}
			},
			wantParam: "tool_choice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := req.Validate()
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Validate() error = %T, want *APIError", err)
			}
			if apiErr.Type != ErrorTypeValidation {
				t.Errorf("Type = %v, want %v", apiErr.Type, ErrorTypeValidation)
			}
			if apiErr.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", apiErr.Param, tt.wantParam)
			}
		})
	}
}

func TestValidate_StreamingCode(t *testing.T) {
	req := validRequest()
	req.Stream = true

	var apiErr *APIError
	if !errors.As(req.Validate(), &apiErr) {
		t.Fatal("Validate() did not return an APIError")
	}
	if apiErr.Code != ErrorCodeStreamingUnsupported {
		t.Errorf("Code = %v, want %v", apiErr.Code, ErrorCodeStreamingUnsupported)
	}
}

func TestValidate_LogitBiasEntryCap(t *testing.T) {
	req := validRequest()
	req.LogitBias = make(map[string]float64, MaxLogitBiasEntries+1)
	for i := 0; i <= MaxLogitBiasEntries; i++ {
		req.LogitBias[strconv.Itoa(i)] = 1
	}

	var apiErr *APIError
	if !errors.As(req.Validate(), &apiErr) {
		t.Fatal("Validate() did not return an APIError")
	}
	if apiErr.Param != "logit_bias" {
		t.Errorf("Param = %q, want %q", apiErr.Param, "logit_bias")
	}
}

func TestNormalize_PromptBecomesUserMessage(t *testing.T) {
	req := &CompletionRequest{
		Model:  "gpt-3.5-turbo",
		Prompt: &PromptValue{Segments: []string{"translate this", "to French"}},
	}

	req.Normalize()

	if req.Prompt != nil {
		t.Error("Prompt not cleared after normalization")
	}
	if len(req.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(req.Messages))
	}
	if req.Messages[0].Role != RoleUser {
		t.Errorf("Role = %q, want %q", req.Messages[0].Role, RoleUser)
	}
	if req.Messages[0].Content.String() != "translate this\nto French" {
		t.Errorf("Content = %q", req.Messages[0].Content.String())
	}
}
