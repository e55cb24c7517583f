package cart

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Factory builds the store for a slot name.
type Factory func(ctx context.Context, name string) (*Store, error)

// Registry hands out exactly one Store per slot name.
type Registry struct {
	factory Factory

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, stores: make(map[string]*Store)}
}

// Get returns the store for name, building it on first use.
func (r *Registry) Get(ctx context.Context, name string) (*Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("slot name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s, nil
	}
	if r.factory == nil {
		return nil, errors.New("cart registry has no factory")
	}
	s, err := r.factory(ctx, name)
	if err != nil {
		return nil, err
	}
	r.stores[name] = s
	return s, nil
}

// Close closes every store handed out so far.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	var err error
	for _, s := range stores {
		err = multierr.Append(err, s.Close(ctx))
	}
	return err
}
