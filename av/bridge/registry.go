package bridge

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry maps technology names to protocols. It is safe for concurrent
// use so technologies can come and go while bridges are being set up.
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Protocol
}

// DefaultRegistry is used by the package-level helpers and by a Bridger
// without a registry of its own.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{protocols: make(map[string]Protocol)}
}

// Register adds p under its technology name.
func (r *Registry) Register(p Protocol) error {
	if p == nil || p.Technology() == "" {
		return ErrInvalidProtocol
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tech := p.Technology()
	if _, exists := r.protocols[tech]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTechnology, tech)
	}
	r.protocols[tech] = p

	logrus.WithFields(logrus.Fields{
		"function":   "Registry.Register",
		"technology": tech,
	}).Debug("Registered RTP protocol")
	return nil
}

// Unregister removes the protocol registered under tech, if any.
func (r *Registry) Unregister(tech string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.protocols[tech]; !exists {
		return
	}
	delete(r.protocols, tech)

	logrus.WithFields(logrus.Fields{
		"function":   "Registry.Unregister",
		"technology": tech,
	}).Debug("Unregistered RTP protocol")
}

// Lookup returns the protocol registered under tech.
func (r *Registry) Lookup(tech string) (Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[tech]
	return p, ok
}

// Technologies returns the registered technology names in sorted order.
func (r *Registry) Technologies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.protocols))
	for name := range r.protocols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds p to DefaultRegistry.
func Register(p Protocol) error {
	return DefaultRegistry.Register(p)
}

// Unregister removes tech from DefaultRegistry.
func Unregister(tech string) {
	DefaultRegistry.Unregister(tech)
}

// Lookup finds tech in DefaultRegistry.
func Lookup(tech string) (Protocol, bool) {
	return DefaultRegistry.Lookup(tech)
}
