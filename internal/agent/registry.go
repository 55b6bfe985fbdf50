package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// ErrAgentNotFound reports that resolution matched neither an agent ID nor a
// display name. Mapped to HTTP 404 by the transport layer.
var ErrAgentNotFound = errors.New("agent: no agent with that id or name")

// maxSuggestionDistance bounds the Levenshtein distance for "did you mean"
// hints attached to not-found errors. Suggestions never affect resolution.
const maxSuggestionDistance = 3

// Registry is the concurrent in-process agent directory.
//
// The zero value is not usable; create one with [NewRegistry].
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register adds a to the registry. Registering an ID that already exists
// replaces the previous agent; in-flight turns holding the old value finish
// against it.
func (r *Registry) Register(a *Agent) error {
	if a == nil || a.ID == "" {
		return errors.New("agent: register requires a non-empty agent ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
	return nil
}

// Unregister removes the agent with the given ID. Unknown IDs are a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// Resolve maps an inbound identifier to an agent: exact ID match first, then
// case-insensitive display-name match. Returns [ErrAgentNotFound] (possibly
// annotated with a close-match hint) when neither matches.
func (r *Registry) Resolve(identifier string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.agents[identifier]; ok {
		return a, nil
	}
	for _, a := range r.agents {
		if strings.EqualFold(a.Name, identifier) {
			return a, nil
		}
	}

	if hint := r.closestLocked(identifier); hint != "" {
		return nil, fmt.Errorf("%w: %q (did you mean %q?)", ErrAgentNotFound, identifier, hint)
	}
	return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, identifier)
}

// IDs returns the sorted IDs of all registered agents.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// closestLocked finds the registered ID or name nearest to identifier within
// [maxSuggestionDistance]. Caller must hold at least the read lock.
func (r *Registry) closestLocked(identifier string) string {
	needle := strings.ToLower(identifier)
	best, bestDist := "", maxSuggestionDistance+1
	for _, a := range r.agents {
		for _, candidate := range []string{a.ID, a.Name} {
			if candidate == "" {
				continue
			}
			d := matchr.Levenshtein(needle, strings.ToLower(candidate))
			if d < bestDist {
				best, bestDist = candidate, d
			}
		}
	}
	return best
}
