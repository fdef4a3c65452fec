package loop

import (
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/looplab/internal/domain"
)

// Registry provides read access to loaded loops
type Registry struct {
	loader *Loader
	mu     sync.RWMutex
	loops  map[string]*domain.Loop
}

// NewRegistry creates a new loop registry
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader: loader,
		loops:  make(map[string]*domain.Loop),
	}
}

// Load loads all loops into memory
func (r *Registry) Load() error {
	loops, err := r.loader.LoadAll()
	if err != nil {
		return fmt.Errorf("load loops: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loops = make(map[string]*domain.Loop, len(loops))
	for _, loop := range loops {
		r.loops[loop.ID] = loop
	}
	return nil
}

// Reload re-reads all loops from disk (useful for content development)
func (r *Registry) Reload() error {
	return r.Load()
}

// Get returns a loop by id
func (r *Registry) Get(id string) (*domain.Loop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loop, ok := r.loops[id]
	if !ok {
		return nil, fmt.Errorf("loop %q: %w", id, domain.ErrLoopNotFound)
	}
	return loop, nil
}

// List returns all loops ordered by id
func (r *Registry) List() []*domain.Loop {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loops := make([]*domain.Loop, 0, len(r.loops))
	for _, loop := range r.loops {
		loops = append(loops, loop)
	}
	sort.Slice(loops, func(i, j int) bool { return loops[i].ID < loops[j].ID })
	return loops
}

// Count returns the number of loaded loops
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loops)
}
