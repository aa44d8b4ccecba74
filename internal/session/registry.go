package session

import (
	"time"

	"github.com/skydrop/server/internal/domain/object"
)

// Registry is the authoritative set of currently live falling objects and
// their animator handles. It is mutated only from the session loop; no
// external writer exists, so it carries no lock. Insertion order is kept
// for deterministic rendering.
type Registry struct {
	entries map[string]*registryEntry
	order   []string
}

type registryEntry struct {
	obj  object.Falling
	anim *FallAnimator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// Insert adds a live object with its animator handle.
func (r *Registry) Insert(obj object.Falling, anim *FallAnimator) {
	if _, exists := r.entries[obj.ID]; exists {
		return
	}
	r.entries[obj.ID] = &registryEntry{obj: obj, anim: anim}
	r.order = append(r.order, obj.ID)
}

// Remove cancels the object's animator and drops the entry. It reports
// whether something was removed; removing an absent id is a no-op, because
// a tap and a fall completion can race for the same object.
func (r *Registry) Remove(id string) bool {
	entry, ok := r.entries[id]
	if !ok {
		return false
	}
	entry.anim.Cancel()
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear cancels every live animator and drops all entries, so no orphaned
// timer can fire into a later level. Returns the number of entries cleared.
func (r *Registry) Clear() int {
	n := len(r.entries)
	for _, entry := range r.entries {
		entry.anim.Cancel()
	}
	r.entries = make(map[string]*registryEntry)
	r.order = r.order[:0]
	return n
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Contains reports whether an object id is live.
func (r *Registry) Contains(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// Views returns renderable snapshots of every live object in insertion
// order, with positions evaluated at the given instant.
func (r *Registry) Views(at time.Time) []object.View {
	views := make([]object.View, 0, len(r.order))
	for _, id := range r.order {
		entry := r.entries[id]
		views = append(views, object.View{
			ID:             entry.obj.ID,
			X:              entry.obj.X,
			Y:              entry.anim.Position(at),
			Size:           entry.obj.Size,
			FallDurationMs: entry.obj.FallDuration.Milliseconds(),
		})
	}
	return views
}
