// Package registry holds the capability-to-agent index the router consults
// on every dispatch.
package registry

import (
	"sort"
	"sync"

	"github.com/Balchandar/intentusnet/pkg/contracts"
	"github.com/Balchandar/intentusnet/pkg/ierrors"
)

// AgentRegistry is the thread-safe source of truth for which agents declare
// which capabilities. Registration order is preserved per-intent so the
// router's deterministic sort has a stable input to work from.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]contracts.Agent // name -> handler
	order  []string                   // registration order, by name
}

// New returns an empty registry.
func New() *AgentRegistry {
	return &AgentRegistry{
		agents: make(map[string]contracts.Agent),
	}
}

// Register adds an agent. A duplicate name is rejected: the registry never
// silently overwrites a capability declaration.
func (r *AgentRegistry) Register(agent contracts.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := agent.Definition().Name
	if name == "" {
		return ierrors.New(ierrors.CodeRoutingError, "registry: agent name must not be empty")
	}
	if _, exists := r.agents[name]; exists {
		return ierrors.New(ierrors.CodeDuplicateAgent, "registry: agent already registered: "+name).
			WithDetails(map[string]any{"agentName": name})
	}

	r.agents[name] = agent
	r.order = append(r.order, name)
	return nil
}

// Unregister removes an agent by name. It is a no-op if the agent is not
// registered.
func (r *AgentRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; !exists {
		return
	}
	delete(r.agents, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the agent registered under name.
func (r *AgentRegistry) Get(name string) (contracts.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// FindAgentsForIntent returns every registered agent declaring a capability
// for intent, in registration order. The router is responsible for
// re-sorting into the deterministic dispatch order; this method makes no
// ordering guarantee beyond registration order.
func (r *AgentRegistry) FindAgentsForIntent(intent contracts.IntentReference) []contracts.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []contracts.Agent
	for _, name := range r.order {
		a := r.agents[name]
		if _, ok := a.Definition().HasCapability(intent); ok {
			matches = append(matches, a)
		}
	}
	return matches
}

// List returns every registered agent definition, sorted by name for
// deterministic iteration (used by the CLI and diagnostics).
func (r *AgentRegistry) List() []contracts.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]contracts.AgentDefinition, 0, len(names))
	for _, n := range names {
		out = append(out, r.agents[n].Definition())
	}
	return out
}
