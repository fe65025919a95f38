package providers

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrModelNotSupported is returned when a model is not supported by any provider
	ErrModelNotSupported = errors.New("model not supported")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry resolves model identifiers to the provider that executes them
type Registry struct {
	mu             sync.RWMutex
	providers      map[string]Provider
	modelProviders map[string]string // model -> provider name
	modelPrefixes  map[string]string // model prefix -> provider name
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:      make(map[string]Provider),
		modelProviders: make(map[string]string),
		modelPrefixes:  make(map[string]string),
	}
}

// RegisterProvider registers a provider instance and its known models
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}
	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return ErrProviderAlreadyRegistered
	}
	r.providers[name] = provider
	for _, model := range provider.ListModels() {
		r.modelProviders[model] = name
	}
	return nil
}

// RegisterModelPrefix maps a model prefix to a provider (e.g., "gpt-" -> "openai")
func (r *Registry) RegisterModelPrefix(prefix, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[providerName]; !exists {
		return ErrProviderNotFound
	}
	r.modelPrefixes[prefix] = providerName
	return nil
}

// GetProvider retrieves a provider by name
func (r *Registry) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// GetProviderForModel finds the provider that supports a given model.
// Lookup order: exact model, longest matching prefix, then any provider that
// validates the model. Successful fallback lookups are cached.
func (r *Registry) GetProviderForModel(model string) (Provider, error) {
	r.mu.RLock()
	if name, ok := r.modelProviders[model]; ok {
		if provider, ok := r.providers[name]; ok {
			r.mu.RUnlock()
			return provider, nil
		}
	}
	provider := r.lookupLocked(model)
	r.mu.RUnlock()

	if provider == nil {
		return nil, ErrModelNotSupported
	}

	r.mu.Lock()
	r.modelProviders[model] = provider.Name()
	r.mu.Unlock()
	return provider, nil
}

func (r *Registry) lookupLocked(model string) Provider {
	best := ""
	for prefix := range r.modelPrefixes {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		if provider, ok := r.providers[r.modelPrefixes[best]]; ok && provider.ValidateModel(model) == nil {
			return provider
		}
	}

	for _, name := range r.sortedNamesLocked() {
		if provider := r.providers[name]; provider.ValidateModel(model) == nil {
			return provider
		}
	}
	return nil
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListProviders returns all registered provider names in sorted order
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

// ListModels returns all known models across all providers in sorted order
func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.modelProviders))
	for model := range r.modelProviders {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// GetProviderCount returns the number of registered providers
func (r *Registry) GetProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// GetModelInfo retrieves model information through the owning provider
func (r *Registry) GetModelInfo(model string) (*ModelInfo, error) {
	provider, err := r.GetProviderForModel(model)
	if err != nil {
		return nil, err
	}
	return provider.GetModelInfo(model)
}
