package engine

import (
	"fmt"
	"sort"
	"sync"
)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes an engine available by name. Engines call it from init.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if f == nil {
		panic("engine: nil factory for " + name)
	}
	if _, dup := factories[name]; dup {
		panic("engine: duplicate registration of " + name)
	}
	factories[name] = f
}

func Lookup(name string) (Factory, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownEngine, name, namesLocked())
	}
	return f, nil
}

func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
