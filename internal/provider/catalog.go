package provider

import (
	"sort"
	"strings"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// capability describes what the gateway knows about a model.
type capability struct {
	contextLength int
	functions     bool
	vision        bool
}

var modelCapabilities = map[string]capability{
	"gpt-3.5-turbo":      {contextLength: 16385, functions: true},
	"gpt-3.5-turbo-16k":  {contextLength: 16384, functions: true},
	"gpt-4":              {contextLength: 8192, functions: true},
	"gpt-4-turbo":        {contextLength: 128000, functions: true, vision: true},
	"gpt-4o":             {contextLength: 128000, functions: true, vision: true},
	"gpt-4o-mini":        {contextLength: 128000, functions: true, vision: true},
	"claude-3-opus":      {contextLength: 200000, functions: true, vision: true},
	"claude-3-sonnet":    {contextLength: 200000, functions: true, vision: true},
	"claude-3-haiku":     {contextLength: 200000, functions: true, vision: true},
	"claude-3-5-sonnet":  {contextLength: 200000, functions: true, vision: true},
	"claude-2.1":         {contextLength: 200000},
	"claude-instant-1.2": {contextLength: 100000},
}

// capabilityFor returns capability metadata for a model id, falling back
// to family heuristics for ids the table does not list.
func capabilityFor(model string) capability {
	if c, ok := modelCapabilities[model]; ok {
		return c
	}

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt-4o"), strings.HasPrefix(lower, "gpt-4-turbo"):
		return capability{contextLength: 128000, functions: true, vision: true}
	case strings.HasPrefix(lower, "gpt-4"):
		return capability{contextLength: 8192, functions: true}
	case strings.HasPrefix(lower, "gpt-3.5"):
		return capability{contextLength: 16385, functions: true}
	case strings.HasPrefix(lower, "claude-3"):
		return capability{contextLength: 200000, functions: true, vision: true}
	case strings.HasPrefix(lower, "claude"):
		return capability{contextLength: 100000}
	}
	return capability{contextLength: 4096}
}

// Models returns every active provider's model list merged,
// de-duplicated, and sorted by id.
func (r *Registry) Models() domain.ModelList {
	seen := make(map[string]bool)
	var models []domain.Model
	for _, p := range r.activeConfigs() {
		for _, id := range p.Models {
			if seen[id] {
				continue
			}
			seen[id] = true
			models = append(models, domain.Model{
				ID:      id,
				Object:  "model",
				Created: r.created,
				OwnedBy: p.Name,
			})
		}
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})
	return domain.ModelList{Object: "list", Data: models}
}

// ModelDetail returns capability metadata for one model id, matched
// exactly against the active providers' model lists.
func (r *Registry) ModelDetail(id string) (*domain.ModelDetail, bool) {
	for _, p := range r.activeConfigs() {
		if !p.HasModel(id) {
			continue
		}
		c := capabilityFor(id)
		return &domain.ModelDetail{
			Model: domain.Model{
				ID:      id,
				Object:  "model",
				Created: r.created,
				OwnedBy: p.Name,
			},
			Provider:          p.Name,
			ContextLength:     c.contextLength,
			SupportsFunctions: c.functions,
			SupportsVision:    c.vision,
		}, true
	}
	return nil, false
}
