// Package registry provides a process-wide device name service.
//
// Configured streaming devices register themselves under a generated name
// (for example "uaudio1-0") so applications can look them up without
// holding a reference from enumeration time.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/ardnew/softuac/pkg"
)

// Registry maps device names to device handles.
// The zero value is not usable; call New.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]any
}

// Default is the process-wide registry.
var Default = New()

// New creates an empty registry.
func New() *Registry {
	return &Registry{devices: make(map[string]any)}
}

// AddDevice registers dev under name. When overwrite is false and the
// name is taken, returns pkg.ErrBusy and leaves the existing entry.
func (r *Registry) AddDevice(name string, dev any, overwrite bool) error {
	if name == "" || dev == nil {
		return pkg.ErrInvalidParameter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[name]; exists && !overwrite {
		pkg.LogWarn(pkg.ComponentRegistry, "device name already registered", "name", name)
		return pkg.ErrBusy
	}

	r.devices[name] = dev
	pkg.LogDebug(pkg.ComponentRegistry, "device registered", "name", name)
	return nil
}

// RemoveDevice unregisters devices by name. With exact set, only the
// exact name is removed; otherwise every device whose name starts with
// name is removed. Returns the number of entries removed.
func (r *Registry) RemoveDevice(name string, exact bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	if exact {
		if _, ok := r.devices[name]; ok {
			delete(r.devices, name)
			removed = 1
		}
	} else {
		for n := range r.devices {
			if strings.HasPrefix(n, name) {
				delete(r.devices, n)
				removed++
			}
		}
	}

	if removed > 0 {
		pkg.LogDebug(pkg.ComponentRegistry, "device removed", "name", name, "count", removed)
	}
	return removed
}

// GetDevice returns the device registered under name, or nil.
func (r *Registry) GetDevice(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[name]
}

// Names returns the registered device names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.devices))
	for n := range r.devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
