// Package provider resolves models to upstream adapters and owns the
// adapter lifecycle: factory registration, per-provider caching, and
// health probing.
//
// # Adding a New Provider
//
// Implement domain.Adapter in a subpackage, expose a Factory() value,
// and register it explicitly from the command wiring:
//
//	provider.RegisterFactory(myprovider.Factory())
//
// Registration is explicit rather than init()-driven so the set of
// compiled-in providers is visible in one place.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/HeiSir2014/OpenAIRouter/internal/config"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// Factory creates adapters of one provider type from configuration.
type Factory struct {
	// Type is the identifier matched against ProviderConfig.Type.
	Type string

	// Description is a human-readable summary for diagnostics.
	Description string

	// Create builds an adapter for one configured provider.
	Create func(cfg config.ProviderConfig) (domain.Adapter, error)

	// ValidateConfig checks provider configuration before Create.
	// Optional.
	ValidateConfig func(cfg config.ProviderConfig) error
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers a factory for its type. It panics when the
// type is empty, Create is nil, or the type is already registered;
// registration happens during startup wiring where a panic is the
// clearest failure.
func RegisterFactory(f Factory) {
	if f.Type == "" {
		panic("provider: factory type must not be empty")
	}
	if f.Create == nil {
		panic("provider: factory Create must not be nil")
	}

	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("provider: factory %q already registered", f.Type))
	}
	factoryMap[f.Type] = f
}

// GetFactory returns the factory registered for the given type.
func GetFactory(providerType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factoryMap[providerType]
	return f, ok
}

// IsRegistered reports whether a factory exists for the given type.
func IsRegistered(providerType string) bool {
	_, ok := GetFactory(providerType)
	return ok
}

// ListFactories returns all registered factories sorted by type.
func ListFactories() []Factory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	factories := make([]Factory, 0, len(factoryMap))
	for _, f := range factoryMap {
		factories = append(factories, f)
	}
	sort.Slice(factories, func(i, j int) bool {
		return factories[i].Type < factories[j].Type
	})
	return factories
}

// ClearFactories removes all registered factories. Tests only.
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryMap = make(map[string]Factory)
}

// New creates an adapter for the configured provider using the
// registered factory for its type.
func New(cfg config.ProviderConfig) (domain.Adapter, error) {
	f, ok := GetFactory(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, cfg.Name)
	}
	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid config for provider %s: %w", cfg.Name, err)
		}
	}
	adapter, err := f.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", cfg.Name, err)
	}
	return adapter, nil
}
