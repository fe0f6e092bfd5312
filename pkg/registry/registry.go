// Package registry tracks which beatmap set ids have been obtained, or are
// being obtained, during the current run.
package registry

import (
	"sort"
	"sync"
)

// State of an id in the registry
type State int

const (
	// Absent ids are not tracked
	Absent State = iota
	// Reserved ids have a download in flight
	Reserved
	// Committed ids exist locally or were downloaded this run
	Committed
)

func (s State) String() string {
	switch s {
	case Reserved:
		return "reserved"
	case Committed:
		return "committed"
	default:
		return "absent"
	}
}

// Registry is a concurrency-safe set of beatmap set ids. Membership only
// shrinks when a reservation is released after a failed download.
type Registry struct {
	mu  sync.RWMutex
	ids map[int]State
}

// New creates a registry seeded with already-present ids
func New(seed ...int) *Registry {
	r := &Registry{ids: make(map[int]State, len(seed))}
	r.Seed(seed)
	return r
}

// Seed commits ids without reservation
func (r *Registry) Seed(ids []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.ids[id] = Committed
	}
}

// Reserve atomically checks for id and adds it as Reserved if absent.
// It returns true only for the caller that made the reservation.
func (r *Registry) Reserve(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = Reserved
	return true
}

// Commit marks id as obtained
func (r *Registry) Commit(id int) {
	r.mu.Lock()
	r.ids[id] = Committed
	r.mu.Unlock()
}

// Release drops a reservation so a later round can retry id. Committed
// ids are never released; the return value reports whether id was removed.
func (r *Registry) Release(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids[id] != Reserved {
		return false
	}
	delete(r.ids, id)
	return true
}

// Contains reports whether id is reserved or committed
func (r *Registry) Contains(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// State returns the state of id
func (r *Registry) State(id int) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids[id]
}

// Len returns the number of tracked ids
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// IDs returns the tracked ids in ascending order
func (r *Registry) IDs() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// Clone returns an independent copy
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{ids: make(map[int]State, len(r.ids))}
	for id, s := range r.ids {
		c.ids[id] = s
	}
	return c
}
