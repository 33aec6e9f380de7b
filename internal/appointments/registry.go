package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns the workflow of every live browser session.
type Registry struct {
	deps   Deps
	base   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Workflow
}

// NewRegistry creates an empty registry. Close cancels every pending
// submission delay.
func NewRegistry(deps Deps) *Registry {
	deps = deps.withDefaults()
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:     deps,
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*Workflow),
	}
}

// Create starts a new session.
func (r *Registry) Create() *Workflow {
	id := uuid.NewString()
	wf := NewWorkflow(r.base, id, r.deps)
	r.mu.Lock()
	r.sessions[id] = wf
	r.mu.Unlock()
	r.deps.Logger.Info("appointment session created", "session_id", id)
	return wf
}

// Get returns the workflow of sessionID.
func (r *Registry) Get(sessionID string) (*Workflow, error) {
	r.mu.RLock()
	wf, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return wf, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle removes idle sessions unused for longer than ttl and returns
// their ids. Sessions awaiting confirmation or submitting are kept.
func (r *Registry) EvictIdle(ttl time.Duration) []string {
	cutoff := r.deps.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, wf := range r.sessions {
		lastSeen, idle := wf.idleSince()
		if idle && lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	if len(evicted) > 0 {
		r.deps.Logger.Info("evicted idle appointment sessions", "count", len(evicted))
	}
	return evicted
}

// Close abandons pending submission delays.
func (r *Registry) Close() {
	r.cancel()
}
