package runner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"reel/internal/config"
	"reel/internal/deps"
	"reel/internal/services"
)

type entry struct {
	runner      Runner
	libraries   []int64
	requirement *deps.Requirement
}

// Registry holds the ordered runner chain.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// FromRunners builds a registry from the enabled runners in configuration
// order.
func FromRunners(runners []config.Runner) (*Registry, error) {
	reg := NewRegistry()
	for _, cfg := range runners {
		if !cfg.Enabled {
			continue
		}
		r, err := FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		reg.Register(r, cfg.Libraries...)
		if req, ok := deps.RunnerRequirement(cfg); ok {
			reg.mu.Lock()
			reg.entries[len(reg.entries)-1].requirement = &req
			reg.mu.Unlock()
		}
	}
	return reg, nil
}

// Register appends r to the chain. An empty libraries list makes the runner
// apply to every library.
func (reg *Registry) Register(r Runner, libraries ...int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.entries = append(reg.entries, entry{runner: r, libraries: append([]int64(nil), libraries...)})
}

// Ordered returns the runners that apply to libraryID in chain order.
func (reg *Registry) Ordered(libraryID int64) []Runner {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Runner, 0, len(reg.entries))
	for _, e := range reg.entries {
		if len(e.libraries) == 0 || slices.Contains(e.libraries, libraryID) {
			out = append(out, e.runner)
		}
	}
	return out
}

// Len reports how many runners are registered.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.entries)
}

// Validate checks that runner ids are unique and every runner's executable
// resolves. The scheduler pauses all workers while this fails.
func (reg *Registry) Validate() error {
	var problems []string
	seen := make(map[string]struct{})
	for _, h := range reg.Health(context.Background()) {
		if _, dup := seen[h.ID]; dup {
			problems = append(problems, fmt.Sprintf("runner id %q registered twice", h.ID))
			continue
		}
		seen[h.ID] = struct{}{}
		if !h.Ready {
			problems = append(problems, fmt.Sprintf("%s: %s", h.ID, h.Detail))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "runner", "validate", strings.Join(problems, "; "), nil)
}

// Health reports readiness for every registered runner.
func (reg *Registry) Health(_ context.Context) []Health {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	results := make([]Health, 0, len(reg.entries))
	for _, e := range reg.entries {
		id, name := e.runner.ID(), e.runner.Name()
		if e.requirement == nil {
			results = append(results, Healthy(id, name))
			continue
		}
		status := deps.CheckBinaries([]deps.Requirement{*e.requirement})[0]
		if status.Available {
			results = append(results, Healthy(id, name))
		} else {
			results = append(results, Unhealthy(id, name, status.Detail))
		}
	}
	return results
}
