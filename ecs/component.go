package ecs

import (
	"fmt"
	"reflect"
	"sync"
)

// ComponentId is a dense integer assigned the first time a component kind is
// referenced. It is never reassigned within the lifetime of a ComponentRegistry
// (spec.md §4.1).
type ComponentId uint32

// componentInfo records everything the storage layer needs to create columns or
// sparse slots for a component kind without further reflection once registered.
type componentInfo struct {
	id        ComponentId
	typ       reflect.Type
	mode      StorageMode
	newColumn func() tableColumn
	newSparse func() sparseStorage
}

// ComponentRegistry assigns ComponentIds for one World. It is append-only: two
// registrations of the same Go type always return the same id, and ids are never
// reused or renumbered (spec.md §4.1). Registries never share ids across Worlds
// (spec.md §9 "Global component registry" is deliberately not reproduced).
type ComponentRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]ComponentId
	infos  []componentInfo
}

// NewComponentRegistry creates an empty registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		byType: make(map[reflect.Type]ComponentId),
	}
}

// RegisterComponent declares T as a component kind with an explicit storage mode
// (spec.md §4.10). Calling it more than once for the same T is a no-op that
// returns the original id. mode defaults to Table when omitted.
func RegisterComponent[T any](r *ComponentRegistry, mode ...StorageMode) ComponentId {
	t := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byType[t]; ok {
		return id
	}

	storageMode := Table
	if len(mode) > 0 {
		storageMode = mode[0]
	}

	id := ComponentId(len(r.infos))
	r.infos = append(r.infos, componentInfo{
		id:   id,
		typ:  t,
		mode: storageMode,
		newColumn: func() tableColumn {
			return newGenericColumn[T]()
		},
		newSparse: func() sparseStorage {
			return newGenericSparse[T]()
		},
	})
	r.byType[t] = id
	return id
}

// componentIdFor resolves the ComponentId for T, registering it as a Table
// component on first use (spec.md §6: "Implicit on first use via a bundle type").
func componentIdFor[T any](r *ComponentRegistry) ComponentId {
	t := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.RLock()
	id, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return id
	}
	return RegisterComponent[T](r)
}

// ensureType auto-registers an arbitrary runtime reflect.Type as a Table component,
// backed by a reflection-driven column rather than a generic one, since no compile
// time type parameter is available at this call site. This is the path bundle
// canonicalization uses for component kinds that were never explicitly registered.
func (r *ComponentRegistry) ensureType(t reflect.Type) ComponentId {
	r.mu.RLock()
	id, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byType[t]; ok {
		return id
	}

	localType := t
	id = ComponentId(len(r.infos))
	r.infos = append(r.infos, componentInfo{
		id:   id,
		typ:  localType,
		mode: Table,
		newColumn: func() tableColumn {
			return newReflectColumn(localType)
		},
		newSparse: func() sparseStorage {
			return newReflectSparse(localType)
		},
	})
	r.byType[localType] = id
	return id
}

func (r *ComponentRegistry) info(id ComponentId) componentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infos[id]
}

func (r *ComponentRegistry) infoForType(t reflect.Type) (componentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[t]
	if !ok {
		return componentInfo{}, false
	}
	return r.infos[id], true
}

func (r *ComponentRegistry) modeOf(id ComponentId) StorageMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infos[id].mode
}

func (r *ComponentRegistry) typeName(id ComponentId) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.infos) {
		return fmt.Sprintf("component#%d", id)
	}
	return r.infos[id].typ.String()
}

func (r *ComponentRegistry) newColumn(id ComponentId) tableColumn {
	return r.info(id).newColumn()
}

func (r *ComponentRegistry) newSparseStorage(id ComponentId) sparseStorage {
	return r.info(id).newSparse()
}
