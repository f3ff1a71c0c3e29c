package main

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Simplici0/atelier/internal/costing"
	"github.com/Simplici0/atelier/internal/hydrate"
	"github.com/Simplici0/atelier/internal/wizard"
)

// sessionEntry is one wizard run held in memory. mu guards every field;
// handlers hold it for the whole mutation so a response never mixes states.
type sessionEntry struct {
	id       string
	hydrator *hydrate.Hydrator

	mu         sync.Mutex
	session    *wizard.Session
	templateID int64
}

// Hydrate applies a loaded template under the entry lock, so a template fetch
// can run without blocking other requests on the same session.
func (e *sessionEntry) Hydrate(form costing.FormData) {
	e.mu.Lock()
	e.session.Hydrate(form)
	e.mu.Unlock()
}

type sessionRegistry struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{entries: make(map[string]*sessionEntry)}
}

func (r *sessionRegistry) create(session *wizard.Session, hydrator *hydrate.Hydrator) *sessionEntry {
	e := &sessionEntry{
		id:       uuid.NewString(),
		hydrator: hydrator,
		session:  session,
	}
	r.mu.Lock()
	r.entries[e.id] = e
	r.mu.Unlock()
	return e
}

func (r *sessionRegistry) get(id string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *sessionRegistry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}
