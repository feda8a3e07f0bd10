package provider

import (
	"fmt"
	"sync"

	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
)

// Registry providers by type
type Registry struct {
	mu        sync.RWMutex
	providers map[models.ProviderType]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[models.ProviderType]Provider),
	}
}

// Register replaces any provider already registered for the same type
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[p.Type()] = p
}

func (r *Registry) Get(t models.ProviderType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[t]
	if !exists {
		return nil, fmt.Errorf("%w: provider %q is not registered", apperrors.ErrInvalidInput, t)
	}
	return p, nil
}

func (r *Registry) Has(t models.ProviderType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[t]
	return exists
}

// Types registered provider types
func (r *Registry) Types() []models.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.ProviderType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	return types
}
