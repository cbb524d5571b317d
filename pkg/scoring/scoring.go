// Package scoring holds the named pairwise scoring methods used by score
// tasks.
package scoring

import (
	"fmt"
	"slices"
	"sync"

	"github.com/nemanja-m/protalign/pkg/core"
)

// Scorer rates how similar a candidate is to the query. Implementations must
// be deterministic and safe for concurrent use once configured.
type Scorer interface {
	Score(query, candidate core.Record) (float64, error)
}

// Method is a configurable, named Scorer.
type Method interface {
	Scorer

	Configure(config map[string]string) error
	Validate() error

	Name() string
	Describe() string
}

type Factory func() Method

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

func Register(name string, factory Factory) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("scoring method already registered: %s", name)
	}
	registry[name] = factory
	return nil
}

// New creates, configures and validates the method registered as name.
func New(name string, config map[string]string) (Method, error) {
	mu.RLock()
	factory, exists := registry[name]
	mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("scoring method not found: %s (available: %v)", name, List())
	}

	method := factory()
	if err := method.Configure(config); err != nil {
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	if err := method.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	return method, nil
}

// List returns the registered method names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Func adapts a plain function to Scorer.
type Func func(query, candidate core.Record) (float64, error)

func (f Func) Score(query, candidate core.Record) (float64, error) {
	return f(query, candidate)
}
