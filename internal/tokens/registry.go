package tokens

import (
	"strings"

	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// Count is the result of counting the input tokens a request carries.
type Count struct {
	InputTokens int    `json:"input_tokens"`
	Model       string `json:"model"`

	// Estimated is true when the count came from a heuristic rather than
	// a real tokenizer.
	Estimated bool `json:"estimated"`
}

// Counter produces token counts for the models it recognizes.
type Counter interface {
	SupportsModel(model string) bool
	Count(req *domain.CompletionRequest) (*Count, error)
}

// Registry picks the most accurate counter registered for a model and
// falls back to a heuristic estimate for everything else.
type Registry struct {
	counters []Counter
	fallback Estimator
}

// NewRegistry creates a registry with a character-count fallback.
func NewRegistry() *Registry {
	return &Registry{
		fallback: NewCharEstimator(),
	}
}

// Register adds a counter. Counters are consulted in registration order.
func (r *Registry) Register(c Counter) {
	r.counters = append(r.counters, c)
}

// SetFallback replaces the estimator used for unrecognized models.
func (r *Registry) SetFallback(e Estimator) {
	r.fallback = e
}

// Count counts the input tokens of req, preferring a registered counter
// that recognizes the model.
func (r *Registry) Count(req *domain.CompletionRequest) (*Count, error) {
	for _, c := range r.counters {
		if c.SupportsModel(req.Model) {
			return c.Count(req)
		}
	}
	return &Count{
		InputTokens: r.fallback.Estimate(req),
		Model:       req.Model,
		Estimated:   true,
	}, nil
}

// ModelMatcher matches model names against prefix and exact patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a matcher for the given patterns.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{prefixes: prefixes, exact: exact}
}

// Matches reports whether the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
