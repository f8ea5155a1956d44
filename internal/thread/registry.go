package thread

import (
	"errors"
	"fmt"
	"sync"
)

var ErrHandleExists = errors.New("thread: handle already registered")

// Registry is the process-wide mapping from kernel thread id to record.
// Every access is serialized through the lock; the original implementation
// left this table unguarded, which is not acceptable here.
type Registry struct {
	mu    sync.RWMutex
	items map[Handle]*Thread
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[Handle]*Thread)}
}

// Insert records a thread under its handle. The registry owns the record
// until Remove transfers it to the caller.
func (r *Registry) Insert(t *Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID()]; ok {
		return fmt.Errorf("%w: %d", ErrHandleExists, t.ID())
	}
	r.items[t.ID()] = t
	return nil
}

// Lookup resolves a handle. Absent handles, including lookups before any
// thread has been registered, return (nil, false).
func (r *Registry) Lookup(id Handle) (*Thread, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	return t, ok
}

// Remove drops the registry's reference and reports whether the handle was
// present. Ownership of the record transfers to the remover.
func (r *Registry) Remove(id Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

// ForEach visits a snapshot of the current records. The snapshot is taken
// under the lock and visited outside it, so visitors may block (the shutdown
// drain joins under ForEach) without stalling concurrent inserts.
func (r *Registry) ForEach(visit func(*Thread)) {
	r.mu.RLock()
	snapshot := make([]*Thread, 0, len(r.items))
	for _, t := range r.items {
		snapshot = append(snapshot, t)
	}
	r.mu.RUnlock()
	for _, t := range snapshot {
		visit(t)
	}
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.items)
}

// Len reports the number of registered threads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
