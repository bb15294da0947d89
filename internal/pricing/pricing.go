// Package pricing maps provider models to per-token prices and computes
// completion costs.
package pricing

// ModelPrice is the cost per 1K tokens, in account currency.
type ModelPrice struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
}

// providerPrices keeps models in listed order so an unknown model can
// fall back to the provider's first entry.
type providerPrices struct {
	order  []string
	models map[string]ModelPrice
}

// Table is a static price list keyed by provider and model.
type Table struct {
	providers map[string]*providerPrices
	order     []string
	fallback  ModelPrice
}

// NewTable creates an empty table with the given fallback price, used
// when neither provider nor model is known.
func NewTable(fallback ModelPrice) *Table {
	return &Table{
		providers: make(map[string]*providerPrices),
		fallback:  fallback,
	}
}

// Add registers a price entry. Entries keep insertion order per provider;
// the first entry added for a provider is its fallback for unknown models.
func (t *Table) Add(provider, model string, price ModelPrice) {
	p, ok := t.providers[provider]
	if !ok {
		p = &providerPrices{models: make(map[string]ModelPrice)}
		t.providers[provider] = p
		t.order = append(t.order, provider)
	}
	if _, exists := p.models[model]; !exists {
		p.order = append(p.order, model)
	}
	p.models[model] = price
}

// Lookup resolves the price for a provider/model pair. An unknown model
// under a known provider resolves to that provider's first listed entry;
// an unknown provider resolves to the table fallback.
func (t *Table) Lookup(provider, model string) ModelPrice {
	p, ok := t.providers[provider]
	if !ok {
		return t.fallback
	}
	if price, ok := p.models[model]; ok {
		return price
	}
	if len(p.order) > 0 {
		return p.models[p.order[0]]
	}
	return t.fallback
}

// Cost computes the charge for a completed exchange.
func (t *Table) Cost(provider, model string, promptTokens, completionTokens int) float64 {
	price := t.Lookup(provider, model)
	return float64(promptTokens)/1000*price.Prompt +
		float64(completionTokens)/1000*price.Completion
}

// Default returns the built-in price list. Prices are per 1K tokens and
// track the public provider rate cards.
func Default() *Table {
	t := NewTable(ModelPrice{Prompt: 0.002, Completion: 0.002})

	t.Add("openai", "gpt-3.5-turbo", ModelPrice{Prompt: 0.0015, Completion: 0.002})
	t.Add("openai", "gpt-3.5-turbo-16k", ModelPrice{Prompt: 0.003, Completion: 0.004})
	t.Add("openai", "gpt-4", ModelPrice{Prompt: 0.03, Completion: 0.06})
	t.Add("openai", "gpt-4-turbo", ModelPrice{Prompt: 0.01, Completion: 0.03})
	t.Add("openai", "gpt-4o", ModelPrice{Prompt: 0.005, Completion: 0.015})
	t.Add("openai", "gpt-4o-mini", ModelPrice{Prompt: 0.00015, Completion: 0.0006})

	t.Add("anthropic", "claude-3-opus", ModelPrice{Prompt: 0.015, Completion: 0.075})
	t.Add("anthropic", "claude-3-sonnet", ModelPrice{Prompt: 0.003, Completion: 0.015})
	t.Add("anthropic", "claude-3-haiku", ModelPrice{Prompt: 0.00025, Completion: 0.00125})
	t.Add("anthropic", "claude-3-5-sonnet", ModelPrice{Prompt: 0.003, Completion: 0.015})
	t.Add("anthropic", "claude-2.1", ModelPrice{Prompt: 0.008, Completion: 0.024})
	t.Add("anthropic", "claude-instant-1.2", ModelPrice{Prompt: 0.0008, Completion: 0.0024})

	return t
}

// Providers returns the provider names in the table, in insertion order.
func (t *Table) Providers() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Models returns the model names listed for a provider, in insertion
// order.
func (t *Table) Models(provider string) []string {
	p, ok := t.providers[provider]
	if !ok {
		return nil
	}
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}
