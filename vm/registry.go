package vm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// NativeDefinition describes a registered host command.
type NativeDefinition struct {
	Name           string
	ParameterCount int
	Factory        NativeFactory
}

// Registry holds the host commands available to programs. It is safe for
// concurrent use.
type Registry struct {
	mutex       sync.RWMutex
	definitions map[string]NativeDefinition
}

func NewRegistry() *Registry {
	return &Registry{definitions: map[string]NativeDefinition{}}
}

// Register adds a host command. Registering a name twice is an error.
func (r *Registry) Register(name string, parameterCount int, factory NativeFactory) error {
	if name == "" {
		return fmt.Errorf("native command name must not be empty")
	}
	if parameterCount < 0 || parameterCount > 255 {
		return fmt.Errorf("native command %q: invalid parameter count %d", name, parameterCount)
	}
	if factory == nil {
		return fmt.Errorf("native command %q: factory is nil", name)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.definitions[name]; exists {
		return fmt.Errorf("native command %q is already registered", name)
	}
	r.definitions[name] = NativeDefinition{
		Name:           name,
		ParameterCount: parameterCount,
		Factory:        factory,
	}
	return nil
}

// RegisterFunc adds a stateless host command. All call sites share fn.
func (r *Registry) RegisterFunc(name string, parameterCount int, fn NativeFunc) error {
	if fn == nil {
		return fmt.Errorf("native command %q: function is nil", name)
	}
	return r.Register(name, parameterCount, func() NativeCommand { return fn })
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (NativeDefinition, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	def, ok := r.definitions[name]
	return def, ok
}

// LookupNative reports the parameter count of a registered command. It lets
// a Registry validate `external command` declarations at compile time.
func (r *Registry) LookupNative(name string) (int, bool) {
	def, ok := r.Lookup(name)
	return def.ParameterCount, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prelude returns source declaring every registered command, suitable for
// compiling ahead of a program.
func (r *Registry) Prelude() string {
	var sb strings.Builder
	for _, name := range r.Names() {
		def, _ := r.Lookup(name)
		fmt.Fprintf(&sb, "external command %s %d;\n", def.Name, def.ParameterCount)
	}
	return sb.String()
}
