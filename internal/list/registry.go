package list

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds a list definition to the registry.
// Panics if a list with the same key is already registered or if the
// definition is structurally inconsistent.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("list already registered: %s", def.Key))
	}
	if _, ok := def.Field(def.KeyField); !ok {
		panic(fmt.Sprintf("list %s: key field %q is not in the schema", def.Key, def.KeyField))
	}
	if len(def.Operations) == 0 {
		panic(fmt.Sprintf("list %s: no operations declared", def.Key))
	}

	registry[def.Key] = def
}

// Get returns a list definition by key.
// Returns false if not found.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered list definitions, sorted by key.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Count returns the number of registered lists.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered lists.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}
