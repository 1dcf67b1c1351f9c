package capability

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry maps function names to capabilities.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register adds a capability. Registering the same name twice is an error.
func (r *Registry) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[c.Name()]; exists {
		return fmt.Errorf("capability %q already registered", c.Name())
	}
	r.caps[c.Name()] = c
	log.Info().Str("capability", c.Name()).Msg("Registered capability")
	return nil
}

// MustRegister is Register for startup wiring.
func (r *Registry) MustRegister(caps ...Capability) {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Names lists registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for n := range r.caps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
