package tokens

import (
	"testing"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

func TestWordEstimator_Estimate(t *testing.T) {
	e := NewWordEstimator()

	tests := []struct {
		name string
		req  *domain.CompletionRequest
		want int
	}{
		{
			name: "empty request charges base and default budget",
			req:  &domain.CompletionRequest{},
			// 3 base + 1000 default budget
			want: 1003,
		},
		{
			name: "single message without max_tokens",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("hello world")},
				},
			},
			// 3 base + 4 message + 1 role + 2 text + 1000 default budget
			want: 1010,
		},
		{
			name: "single message with max_tokens",
			req: &domain.CompletionRequest{
				MaxTokens: 50,
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("one two three four")},
				},
			},
			// 3 + 4 + 1 + 3 + 50
			want: 61,
		},
		{
			name: "named message costs one more",
			req: &domain.CompletionRequest{
				MaxTokens: 50,
				Messages: []domain.Message{
					{Role: domain.RoleUser, Name: "alice", Content: domain.TextContent("one two three four")},
				},
			},
			want: 62,
		},
		{
			name: "two messages",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("hello world")},
					{Role: domain.RoleAssistant, Content: domain.TextContent("hi there friend")},
				},
			},
			// 3 + (4+1+2) + (4+1+3) + 1000
			want: 1018,
		},
		{
			name: "low detail image",
			req: &domain.CompletionRequest{
				MaxTokens: 50,
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.PartsContent(
						domain.TextPart("describe"),
						domain.ImageURLPart("https://example.com/cat.png", domain.ImageDetailLow),
					)},
				},
			},
			// 3 + 4 + 1 + 1 + 85 + 50
			want: 144,
		},
		{
			name: "auto detail image costs the same as low",
			req: &domain.CompletionRequest{
				MaxTokens: 50,
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.PartsContent(
						domain.TextPart("describe"),
						domain.ImageURLPart("https://example.com/cat.png", ""),
					)},
				},
			},
			want: 144,
		},
		{
			name: "high detail image",
			req: &domain.CompletionRequest{
				MaxTokens: 50,
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.PartsContent(
						domain.TextPart("describe"),
						domain.ImageURLPart("https://example.com/cat.png", domain.ImageDetailHigh),
					)},
				},
			},
			// 3 + 4 + 1 + 1 + 765 + 50
			want: 824,
		},
		{
			name: "tool declaration",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("hi")},
				},
				Tools: []domain.Tool{
					{Type: "function", Function: domain.FunctionDefinition{
						Name:        "get_weather",
						Description: "Look up current weather",
						Parameters:  map[string]any{"type": "object"},
					}},
				},
			},
			// messages: 3 + 4 + 1 + 1
			// tool: 3 base + 1 name + 3 description + 5 schema ({"type":"object"} is 17 chars)
			// budget: 1000
			want: 1021,
		},
		{
			name: "assistant tool call",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
						{ID: "call_1", Type: "function", Function: domain.FunctionCall{
							Name:      "lookup",
							Arguments: `{"q":"x"}`,
						}},
					}},
				},
			},
			// 3 + 4 + 1 + 1 name + 3 arguments (9 chars) + 1000
			want: 1012,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Estimate(tt.req); got != tt.want {
				t.Errorf("Estimate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCharEstimator_Estimate(t *testing.T) {
	e := NewCharEstimator()

	tests := []struct {
		name string
		req  *domain.CompletionRequest
		want int
	}{
		{
			name: "empty request",
			req:  &domain.CompletionRequest{},
			want: 0,
		},
		{
			name: "single message",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("hello")},
				},
			},
			// ceil(5/4)
			want: 2,
		},
		{
			name: "max_tokens is not charged",
			req: &domain.CompletionRequest{
				MaxTokens: 500,
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("hello")},
				},
			},
			want: 2,
		},
		{
			name: "multiple messages",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("hello")},
					{Role: domain.RoleAssistant, Content: domain.TextContent("world!")},
				},
			},
			// ceil(11/4)
			want: 3,
		},
		{
			name: "image url counts as characters",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.PartsContent(
						domain.TextPart("hi"),
						domain.ImageURLPart("https://x.io/a.png", domain.ImageDetailLow),
					)},
				},
			},
			// ceil((2+18)/4)
			want: 5,
		},
		{
			name: "tool call arguments count",
			req: &domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
						{Function: domain.FunctionCall{Name: "lookup", Arguments: `{"q":"x"}`}},
					}},
				},
			},
			// ceil((6+9)/4)
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Estimate(tt.req); got != tt.want {
				t.Errorf("Estimate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTiktokenCounter_SupportsModel(t *testing.T) {
	c := NewTiktokenCounter()

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"gpt-4-turbo", true},
		{"gpt-3.5-turbo", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"text-embedding-ada-002", true},
		{"davinci", true},
		{"claude-3-sonnet", false},
		{"unknown-model", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := c.SupportsModel(tt.model); got != tt.want {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestTiktokenCounter_Count(t *testing.T) {
	c := NewTiktokenCounter()

	tests := []struct {
		name string
		req  *domain.CompletionRequest
		min  int
		max  int
	}{
		{
			name: "simple message",
			req: &domain.CompletionRequest{
				Model: "gpt-4o",
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("Hello, how are you today?")},
				},
			},
			min: 8,
			max: 20,
		},
		{
			name: "code snippet",
			req: &domain.CompletionRequest{
				Model: "gpt-4o",
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("def hello(): print('Hello, World!')")},
				},
			},
			min: 10,
			max: 30,
		},
		{
			name: "older encoding",
			req: &domain.CompletionRequest{
				Model: "gpt-3.5-turbo",
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: domain.TextContent("The quick brown fox jumps over the lazy dog.")},
				},
			},
			min: 12,
			max: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Count(tt.req)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if got.Estimated {
				t.Error("Count() Estimated = true, want false")
			}
			if got.InputTokens < tt.min || got.InputTokens > tt.max {
				t.Errorf("Count() = %d, want between %d and %d", got.InputTokens, tt.min, tt.max)
			}
		})
	}
}

func TestTiktokenCounter_Count_imageOnly(t *testing.T) {
	c := NewTiktokenCounter()

	// Images charge the flat per-detail rate, so an image-only message is
	// fully deterministic: 3 message + 1 role + 85 image + 3 priming.
	req := &domain.CompletionRequest{
		Model: "gpt-4o",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: domain.PartsContent(
				domain.ImageURLPart("https://example.com/cat.png", domain.ImageDetailLow),
			)},
		},
	}

	got, err := c.Count(req)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if got.InputTokens != 92 {
		t.Errorf("Count() = %d, want 92", got.InputTokens)
	}
}

func TestRegistry_Count(t *testing.T) {
	r := NewRegistry()
	r.Register(NewTiktokenCounter())

	t.Run("recognized model uses the exact counter", func(t *testing.T) {
		got, err := r.Count(&domain.CompletionRequest{
			Model: "gpt-4o",
			Messages: []domain.Message{
				{Role: domain.RoleUser, Content: domain.TextContent("Hello")},
			},
		})
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if got.Estimated {
			t.Error("Count() Estimated = true, want false")
		}
		if got.InputTokens <= 0 {
			t.Error("Count() = 0, want positive")
		}
	})

	t.Run("unrecognized model falls back to the estimator", func(t *testing.T) {
		got, err := r.Count(&domain.CompletionRequest{
			Model: "claude-3-opus",
			Messages: []domain.Message{
				{Role: domain.RoleUser, Content: domain.TextContent("Hello")},
			},
		})
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if !got.Estimated {
			t.Error("Count() Estimated = false, want true")
		}
		// CharEstimator: ceil(5/4)
		if got.InputTokens != 2 {
			t.Errorf("Count() = %d, want 2", got.InputTokens)
		}
	})
}

func TestModelMatcher(t *testing.T) {
	m := NewModelMatcher(
		[]string{"gpt-", "claude-"},
		[]string{"davinci", "curie"},
	)

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4", true},
		{"gpt-3.5-turbo", true},
		{"claude-3-opus", true},
		{"davinci", true},
		{"curie", true},
		{"text-davinci-003", false},
		{"llama-2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := m.Matches(tt.model); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func BenchmarkWordEstimator_Estimate(b *testing.B) {
	e := NewWordEstimator()
	req := &domain.CompletionRequest{
		MaxTokens: 256,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: domain.TextContent("You are a helpful assistant that provides detailed answers.")},
			{Role: domain.RoleUser, Content: domain.TextContent("Can you explain quantum computing in simple terms? I'd like to understand the basics of qubits, superposition, and entanglement.")},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Estimate(req)
	}
}

func BenchmarkTiktokenCounter_Count(b *testing.B) {
	c := NewTiktokenCounter()
	req := &domain.CompletionRequest{
		Model: "gpt-4o",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: domain.TextContent("You are a helpful assistant that provides detailed answers.")},
			{Role: domain.RoleUser, Content: domain.TextContent("Can you explain quantum computing in simple terms? I'd like to understand the basics of qubits, superposition, and entanglement.")},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Count(req)
	}
}
