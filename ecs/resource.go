package ecs

import (
	"reflect"
	"sync"
)

// ResourceId is a dense id for a resource kind, assigned the first time the type
// is referenced, analogous to ComponentId but in its own namespace.
type ResourceId uint32

// Resources is a singleton table keyed by resource type (spec.md §3 "Resource").
// Spec.md §3 describes an implementation that stores resources "alongside the
// archetype graph" as a dedicated RESOURCE archetype; this keeps the same
// observable contract (singleton identity, direct addressing, not per-entity,
// exclusive mutation) with a plain map instead, since nothing in the rest of the
// system needs resources to share the archetype machinery's row/table layout.
// See DESIGN.md's "Resource storage model" Open Question decision for the
// tradeoff against original_source/archetype.rs's real ArchetypeId::resource().
type Resources struct {
	mu      sync.RWMutex
	byType  map[reflect.Type]ResourceId
	values  []any
	changed []Tick
	present []bool
}

func newResources() *Resources {
	return &Resources{byType: make(map[reflect.Type]ResourceId)}
}

func (r *Resources) idFor(t reflect.Type) ResourceId {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byType[t]; ok {
		return id
	}
	id := ResourceId(len(r.values))
	r.byType[t] = id
	r.values = append(r.values, nil)
	r.changed = append(r.changed, 0)
	r.present = append(r.present, false)
	return id
}

// ResourceID returns (and, if necessary, assigns) the ResourceId for T.
func ResourceID[T any](res *Resources) ResourceId {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return res.idFor(t)
}

// InsertResource installs or overwrites the singleton value of type T.
func InsertResource[T any](res *Resources, value T, tick Tick) {
	id := ResourceID[T](res)
	res.mu.Lock()
	defer res.mu.Unlock()
	v := value
	res.values[id] = &v
	res.changed[id] = tick
	res.present[id] = true
}

// GetResource returns the singleton value of type T, or (nil, false) if it was
// never inserted (spec.md §7 "Missing resource").
func GetResource[T any](res *Resources) (*T, bool) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	res.mu.RLock()
	defer res.mu.RUnlock()
	id, ok := res.byType[t]
	if !ok || !res.present[id] {
		return nil, false
	}
	return res.values[id].(*T), true
}

// TouchResource bumps the changed tick of T's singleton without altering its
// value, for command-buffer-driven resource mutation paths.
func TouchResource[T any](res *Resources, tick Tick) {
	id := ResourceID[T](res)
	res.mu.Lock()
	defer res.mu.Unlock()
	res.changed[id] = tick
}

func (r *Resources) changedTick(id ResourceId) Tick {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changed[id]
}

func (r *Resources) has(id ResourceId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(id) < len(r.present) && r.present[id]
}
