package provider

import (
	"testing"

	"github.com/HeiSir2014/OpenAIRouter/internal/config"
)

func TestRegistry_Models(t *testing.T) {
	r := newTestRegistry(t, []config.ProviderConfig{
		{Name: "anthropic", Type: "anthropic", Models: []string{"claude-3-opus", "shared-model"}, Priority: 2, Active: true},
		{Name: "openai", Type: "openai", Models: []string{"gpt-4o", "shared-model"}, Priority: 1, Active: true},
		{Name: "disabled", Type: "openai", Models: []string{"hidden-model"}, Priority: 3, Active: false},
	})

	list := r.Models()
	if list.Object != "list" {
		t.Errorf("Object = %q, want list", list.Object)
	}

	wantIDs := []string{"claude-3-opus", "gpt-4o", "shared-model"}
	if len(list.Data) != len(wantIDs) {
		t.Fatalf("len(Data) = %d, want %d", len(list.Data), len(wantIDs))
	}
	for i, want := range wantIDs {
		if list.Data[i].ID != want {
			t.Errorf("Data[%d].ID = %q, want %q", i, list.Data[i].ID, want)
		}
	}

	// A model listed by two providers belongs to the one with the
	// higher routing priority.
	for _, m := range list.Data {
		if m.ID == "shared-model" && m.OwnedBy != "openai" {
			t.Errorf("shared-model OwnedBy = %q, want openai", m.OwnedBy)
		}
	}
}

func TestRegistry_ModelDetail(t *testing.T) {
	r := newTestRegistry(t, testProviders())

	detail, ok := r.ModelDetail("gpt-4o")
	if !ok {
		t.Fatal("ModelDetail(gpt-4o) not found")
	}
	if detail.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", detail.Provider)
	}
	if detail.ContextLength != 128000 {
		t.Errorf("ContextLength = %d, want 128000", detail.ContextLength)
	}
	if !detail.SupportsFunctions || !detail.SupportsVision {
		t.Errorf("capabilities = %+v, want functions and vision", detail)
	}

	if _, ok := r.ModelDetail("mistral-7b"); ok {
		t.Error("ModelDetail(mistral-7b) found, want missing")
	}

	r.SetActive("openai", false)
	if _, ok := r.ModelDetail("gpt-4o"); ok {
		t.Error("ModelDetail(gpt-4o) found for inactive provider, want missing")
	}
}

func TestCapabilityFor_Families(t *testing.T) {
	tests := []struct {
		model       string
		wantContext int
		wantVision  bool
	}{
		{model: "gpt-4o-2024-08-06", wantContext: 128000, wantVision: true},
		{model: "gpt-4-32k", wantContext: 8192},
		{model: "gpt-3.5-turbo-0125", wantContext: 16385},
		{model: "claude-3-7-sonnet", wantContext: 200000, wantVision: true},
		{model: "claude-instant-1.1", wantContext: 100000},
		{model: "mystery-model", wantContext: 4096},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c := capabilityFor(tt.model)
			if c.contextLength != tt.wantContext {
				t.Errorf("capabilityFor(%q).contextLength = %d, want %d", tt.model, c.contextLength, tt.wantContext)
			}
			if c.vision != tt.wantVision {
				t.Errorf("capabilityFor(%q).vision = %v, want %v", tt.model, c.vision, tt.wantVision)
			}
		})
	}
}
