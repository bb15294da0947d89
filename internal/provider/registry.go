package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HeiSir2014/OpenAIRouter/internal/config"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// DefaultHealthCheckTimeout bounds each health probe when the caller
// does not supply its own.
const DefaultHealthCheckTimeout = 10 * time.Second

// typeFragments maps adapter types to the model-name fragments that
// route to them when no provider lists the model exactly.
var typeFragments = map[string][]string{
	"openai":    {"gpt"},
	"anthropic": {"claude"},
}

// Health is one provider's probe outcome.
type Health struct {
	Healthy   bool    `json:"healthy"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// RegistryOption configures the registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for fallback-routing warnings.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithStrict disables fuzzy matching and the priority fallback, turning
// unmatched models into clean rejections.
func WithStrict(strict bool) RegistryOption {
	return func(r *Registry) {
		r.strict = strict
	}
}

// Registry resolves models to adapters. One adapter is cached per
// active provider for the process lifetime; deactivating a provider
// drops its cached adapter, reactivating recreates it on next use.
type Registry struct {
	providers []config.ProviderConfig // sorted by priority
	byName    map[string]config.ProviderConfig
	created   int64

	mu       sync.Mutex
	active   map[string]bool
	adapters map[string]domain.Adapter

	strict bool
	logger *slog.Logger
}

// NewRegistry builds a registry from the configured provider list.
// Every listed provider type must have a registered factory.
func NewRegistry(providers []config.ProviderConfig, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		providers: make([]config.ProviderConfig, len(providers)),
		byName:    make(map[string]config.ProviderConfig, len(providers)),
		created:   time.Now().Unix(),
		active:    make(map[string]bool, len(providers)),
		adapters:  make(map[string]domain.Adapter),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	copy(r.providers, providers)
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})

	for _, p := range r.providers {
		if !IsRegistered(p.Type) {
			return nil, fmt.Errorf("provider %s has unregistered type %q", p.Name, p.Type)
		}
		r.byName[p.Name] = p
		r.active[p.Name] = p.Active
	}
	return r, nil
}

// Resolve returns the adapter serving the given model. Resolution order:
// exact match against the active providers' model lists, then a fuzzy
// match on provider name or type fragment in the model id, then the
// highest-priority active provider with a logged warning. In strict
// mode only the exact step runs.
func (r *Registry) Resolve(model string) (domain.Adapter, error) {
	actives := r.activeConfigs()
	if len(actives) == 0 {
		return nil, domain.ErrNoProviders()
	}

	for _, p := range actives {
		if p.HasModel(model) {
			return r.adapter(p.Name)
		}
	}

	if r.strict {
		if model == "" {
			return nil, domain.ErrValidation("model is required").WithParam("model")
		}
		return nil, domain.ErrNotFound(fmt.Sprintf("model %q is not served by any active provider", model)).
			WithCode(domain.ErrorCodeModelNotFound).
			WithParam("model")
	}

	if model != "" {
		lower := strings.ToLower(model)
		for _, p := range actives {
			if strings.Contains(lower, strings.ToLower(p.Name)) {
				return r.adapter(p.Name)
			}
			for _, fragment := range typeFragments[p.Type] {
				if strings.Contains(lower, fragment) {
					return r.adapter(p.Name)
				}
			}
		}
	}

	fallback := actives[0]
	r.logger.Warn("no provider matches model, routing to highest-priority provider",
		"model", model,
		"provider", fallback.Name)
	return r.adapter(fallback.Name)
}

// Provider returns the cached adapter for a provider by name.
func (r *Registry) Provider(name string) (domain.Adapter, error) {
	if _, ok := r.byName[name]; !ok {
		return nil, domain.ErrNotFound(fmt.Sprintf("unknown provider %q", name))
	}
	return r.adapter(name)
}

// DefaultModel returns the configured default model for a provider, or
// an empty string for an unknown provider.
func (r *Registry) DefaultModel(name string) string {
	p, ok := r.byName[name]
	if !ok {
		return ""
	}
	return p.Default()
}

// ListActive returns the active provider names in priority order.
func (r *Registry) ListActive() []string {
	actives := r.activeConfigs()
	names := make([]string, len(actives))
	for i, p := range actives {
		names[i] = p.Name
	}
	return names
}

// SetActive toggles a provider at runtime. Deactivation invalidates the
// cached adapter; the next resolution after reactivation recreates it.
func (r *Registry) SetActive(name string, active bool) error {
	if _, ok := r.byName[name]; !ok {
		return domain.ErrNotFound(fmt.Sprintf("unknown provider %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[name] = active
	if !active {
		delete(r.adapters, name)
	}
	return nil
}

// HealthCheckAll probes every active provider concurrently with an
// independent timeout per call and reports per-provider health. Results
// never influence routing.
func (r *Registry) HealthCheckAll(ctx context.Context, timeout time.Duration) map[string]Health {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}

	names := r.ListActive()
	results := make(map[string]Health, len(names))

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
	)
	for _, name := range names {
		adapter, err := r.Provider(name)
		if err != nil {
			results[name] = Health{Error: err.Error()}
			continue
		}

		wg.Add(1)
		go func(name string, adapter domain.Adapter) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := adapter.HealthCheck(probeCtx)
			elapsed := time.Since(start)

			health := Health{
				Healthy:   err == nil,
				LatencyMS: float64(elapsed.Microseconds()) / 1000,
			}
			if err != nil {
				health.Error = err.Error()
			}

			resultMu.Lock()
			results[name] = health
			resultMu.Unlock()
		}(name, adapter)
	}
	wg.Wait()
	return results
}

// adapter returns the cached adapter for an active provider, creating
// it through the registered factory on first use.
func (r *Registry) adapter(name string) (domain.Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active[name] {
		return nil, domain.ErrUnavailable(fmt.Sprintf("provider %q is not active", name))
	}
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}

	a, err := New(r.byName[name])
	if err != nil {
		return nil, domain.ErrInternal(err.Error())
	}
	r.adapters[name] = a
	return a, nil
}

// activeConfigs returns the active providers in priority order.
func (r *Registry) activeConfigs() []config.ProviderConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	actives := make([]config.ProviderConfig, 0, len(r.providers))
	for _, p := range r.providers {
		if r.active[p.Name] {
			actives = append(actives, p)
		}
	}
	return actives
}
