package pricing

import (
	"math"
	"testing"
)

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestTable_Cost(t *testing.T) {
	table := Default()

	tests := []struct {
		name             string
		provider         string
		model            string
		promptTokens     int
		completionTokens int
		want             float64
	}{
		{
			name:             "gpt-3.5-turbo one thousand each way",
			provider:         "openai",
			model:            "gpt-3.5-turbo",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.0035,
		},
		{
			name:             "gpt-4 is priced per direction",
			provider:         "openai",
			model:            "gpt-4",
			promptTokens:     500,
			completionTokens: 100,
			want:             0.03*0.5 + 0.06*0.1,
		},
		{
			name:             "claude opus",
			provider:         "anthropic",
			model:            "claude-3-opus",
			promptTokens:     2000,
			completionTokens: 1000,
			want:             0.015*2 + 0.075,
		},
		{
			name:             "zero usage costs nothing",
			provider:         "openai",
			model:            "gpt-4",
			promptTokens:     0,
			completionTokens: 0,
			want:             0,
		},
		{
			name:             "unknown model falls back to the provider's first entry",
			provider:         "openai",
			model:            "gpt-99-experimental",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.0035,
		},
		{
			name:             "unknown provider falls back to the default pair",
			provider:         "inference-barn",
			model:            "llama-2",
			promptTokens:     1000,
			completionTokens: 1000,
			want:             0.004,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Cost(tt.provider, tt.model, tt.promptTokens, tt.completionTokens)
			if !closeTo(got, tt.want) {
				t.Errorf("Cost(%s, %s, %d, %d) = %v, want %v",
					tt.provider, tt.model, tt.promptTokens, tt.completionTokens, got, tt.want)
			}
		})
	}
}

func TestTable_Lookup(t *testing.T) {
	table := Default()

	got := table.Lookup("anthropic", "claude-3-haiku")
	if !closeTo(got.Prompt, 0.00025) || !closeTo(got.Completion, 0.00125) {
		t.Errorf("Lookup(anthropic, claude-3-haiku) = %+v, want {0.00025 0.00125}", got)
	}

	// The fallback entry for an unknown anthropic model is claude-3-opus,
	// the first listed.
	got = table.Lookup("anthropic", "claude-next")
	if !closeTo(got.Prompt, 0.015) || !closeTo(got.Completion, 0.075) {
		t.Errorf("Lookup(anthropic, claude-next) = %+v, want first entry {0.015 0.075}", got)
	}
}

func TestTable_AddKeepsFirstEntryStable(t *testing.T) {
	table := NewTable(ModelPrice{Prompt: 0.001, Completion: 0.001})
	table.Add("acme", "alpha", ModelPrice{Prompt: 0.01, Completion: 0.02})
	table.Add("acme", "beta", ModelPrice{Prompt: 0.10, Completion: 0.20})

	// Re-adding an existing model must not change which entry is first.
	table.Add("acme", "alpha", ModelPrice{Prompt: 0.05, Completion: 0.06})

	got := table.Lookup("acme", "unlisted")
	if !closeTo(got.Prompt, 0.05) || !closeTo(got.Completion, 0.06) {
		t.Errorf("Lookup(acme, unlisted) = %+v, want updated first entry {0.05 0.06}", got)
	}

	models := table.Models("acme")
	if len(models) != 2 || models[0] != "alpha" || models[1] != "beta" {
		t.Errorf("Models(acme) = %v, want [alpha beta]", models)
	}
}

func TestTable_EmptyProviderFallsBack(t *testing.T) {
	table := NewTable(ModelPrice{Prompt: 0.002, Completion: 0.002})

	got := table.Cost("ghost", "any", 500, 500)
	if !closeTo(got, 0.002) {
		t.Errorf("Cost(ghost, any, 500, 500) = %v, want 0.002", got)
	}
}
