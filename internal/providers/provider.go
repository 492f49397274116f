package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AI2HU/brandlens/internal/models"
)

// Adapter is implemented by every AI/search backend
type Adapter interface {
	// Name returns the provider name used in requests and stored results
	Name() string

	// ValidateRequest reports whether the request carries what the provider needs
	ValidateRequest(req *models.ProviderRequest) bool

	// Execute calls the provider. Provider failures are reported in the
	// returned response status; a non-nil error signals a fault in the
	// adapter itself.
	Execute(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error)

	// TransformResponse normalizes a raw provider payload
	TransformResponse(raw []byte) (*models.NormalizedData, error)

	// HealthCheck issues a minimal request and reports whether it succeeded
	HealthCheck(ctx context.Context) bool
}

// Registry maps provider names to adapters. It is filled once at startup and
// only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its name
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("provider already registered: %s", name)
	}
	r.adapters[name] = adapter
	return nil
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered adapters
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
