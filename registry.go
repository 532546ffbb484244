package rtfx

import "sync"

// Registry resolves plugin identifiers to plugins. It replaces a process-wide
// lookup: a State queries it once at binding time and caches the resolved
// plugin for its lifetime.
type Registry struct {
	m       sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds the plugin under its own ID. A later registration with the
// same ID replaces the earlier one.
func (r *Registry) Register(p Plugin) {
	r.m.Lock()
	defer r.m.Unlock()
	r.plugins[p.ID()] = p
}

// Lookup returns the plugin registered under id.
func (r *Registry) Lookup(id string) (Plugin, bool) {
	r.m.RLock()
	defer r.m.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}
