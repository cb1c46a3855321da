package ecs

import (
	"fmt"
)

// World is the programmatic boundary of the engine (spec.md §6): it owns the
// component registry, the archetype graph, the entity directory, resources,
// observers, and the world's change-detection tick counter.
type World struct {
	Registry  *ComponentRegistry
	Resources *Resources

	graph       *ArchetypeGraph
	dir         *Directory
	tick        tickCounter
	observers   *observerRegistry
	bundleCache *bundleFieldCache
	cfg         Config
}

// NewWorld creates a World over an existing registry (mirrors the teacher's
// NewComponentRegistry + NewStorage two-step construction). Pass nothing for opts
// to use DefaultConfig.
func NewWorld(registry *ComponentRegistry, opts ...ConfigOption) *World {
	return &World{
		Registry:    registry,
		Resources:   newResources(),
		graph:       newArchetypeGraph(registry),
		dir:         newDirectory(),
		observers:   newObserverRegistry(),
		bundleCache: newBundleFieldCache(),
		cfg:         NewConfig(opts...),
	}
}

func (w *World) Config() Config { return w.cfg }

// CurrentTick returns the world's change-detection tick without advancing it.
func (w *World) CurrentTick() Tick { return w.tick.current() }

// AdvanceTick bumps and returns the world's tick (spec.md §4.9). The scheduler
// calls it once per stage run, not per system: every system in one run of a
// stage sees the same Tick.
func (w *World) AdvanceTick() Tick { return w.tick.advance() }

// IsAlive reports whether e is still valid (spec.md §7 "Invalid entity").
func (w *World) IsAlive(e Entity) bool { return w.dir.IsAlive(e) }

// observerFlags returns (and memoizes on arch) which lifecycle events have at
// least one observer registered for any component arch carries, recomputing
// whenever a new observer has been registered since the cache was built
// (SPEC_FULL.md §3.2's archetype observer-flags fast path).
func (w *World) observerFlags(arch *Archetype) ArchetypeFlags {
	if arch.obsFlagGen == w.observers.gen {
		return arch.obsFlags
	}
	all := make([]ComponentId, 0, len(arch.tableComponents)+len(arch.sparseComponents))
	all = append(all, arch.tableComponents...)
	all = append(all, arch.sparseComponents...)

	var flags ArchetypeFlags
	for _, event := range [...]LifecycleEvent{OnAdd, OnInsert, OnRemove} {
		if w.observers.hasAny(event, all) {
			flags |= flagForEvent(event)
		}
	}
	arch.obsFlags = flags
	arch.obsFlagGen = w.observers.gen
	return flags
}

func partitionByMode(registry *ComponentRegistry, ids []ComponentId) (table, sparse []ComponentId) {
	for _, id := range ids {
		if registry.modeOf(id) == Table {
			table = append(table, id)
		} else {
			sparse = append(sparse, id)
		}
	}
	return table, sparse
}

// placeNewEntity creates a brand-new row in the archetype matching ids, pushes
// every value, fires OnAdd then OnInsert observers, and records the directory
// location. It is the single-archetype-move path used for both World.Spawn and a
// flushed command-buffer spawn; the per-component-edge lifecycle spec.md §3
// describes for "insert" is instead used incrementally by insertOne/removeOne.
func (w *World) placeNewEntity(e Entity, ids []ComponentId, values []any) {
	tableIds, sparseIds := partitionByMode(w.Registry, ids)
	arch := w.graph.getOrCreate(tableIds, sparseIds)

	tick := w.tick.current()
	tableRow := arch.table.AllocateRow(e)
	archRow := len(arch.entities)
	arch.entities = append(arch.entities, e)
	arch.tableRows = append(arch.tableRows, tableRow)

	for i, id := range ids {
		if arch.componentSet[id] == Table {
			col, _ := arch.table.Column(id)
			col.Push(values[i], tick)
		} else {
			arch.sparse[id].Insert(e, values[i], tick)
		}
	}

	w.dir.Place(e, location{archetype: arch.id, row: archRow})

	flags := w.observerFlags(arch)
	if flags&archFlagOnAdd != 0 {
		for _, id := range ids {
			w.observers.fire(OnAdd, id, w, e)
		}
	}
	if flags&archFlagOnInsert != 0 {
		for _, id := range ids {
			w.observers.fire(OnInsert, id, w, e)
		}
	}
}

// Spawn creates a new entity with the given component values (spec.md §6). Any
// component type seen for the first time is auto-registered as Table storage.
func (w *World) Spawn(components ...any) Entity {
	e := w.dir.Reserve()
	if len(components) == 0 {
		w.dir.Place(e, location{archetype: w.graph.emptyId, row: placeEmpty(w, e)})
		return e
	}
	ids, values := expandComponents(w.Registry, components)
	w.placeNewEntity(e, ids, values)
	return e
}

func placeEmpty(w *World, e Entity) int {
	arch := w.graph.Empty()
	row := arch.table.AllocateRow(e)
	arch.entities = append(arch.entities, e)
	arch.tableRows = append(arch.tableRows, row)
	return len(arch.entities) - 1
}

// Spawn decomposes a struct-shaped bundle value into its component fields and
// spawns an entity with them (spec.md §6 "Bundles", SPEC_FULL.md §4.11).
func Spawn[T any](w *World, bundle T) Entity {
	e := w.dir.Reserve()
	ids, values := expandBundle(w.Registry, w.bundleCache, bundle)
	w.placeNewEntity(e, ids, values)
	return e
}

// removeTableRow removes tableRow from table, fixing up the owning archetype's
// tableRows slot for whichever entity got swapped into tableRow (spec.md §4.2).
func removeTableRow(dir *Directory, graph *ArchetypeGraph, table *Table, tableRow int) {
	swapped, moved := table.SwapRemoveRow(tableRow)
	if !moved {
		return
	}
	loc, ok := dir.Get(swapped)
	if !ok {
		return
	}
	graph.Archetype(loc.archetype).tableRows[loc.row] = tableRow
}

// removeArchetypeRow removes archRow from arch's own entity/tableRows lists,
// fixing up the directory entry of whichever entity gets swapped into archRow.
func removeArchetypeRow(dir *Directory, arch *Archetype, archRow int) {
	last := len(arch.entities) - 1
	if archRow != last {
		swapped := arch.entities[last]
		arch.entities[archRow] = swapped
		arch.tableRows[archRow] = arch.tableRows[last]
		loc, ok := dir.Get(swapped)
		if ok {
			loc.row = archRow
			dir.Set(swapped, loc)
		}
	}
	arch.entities = arch.entities[:last]
	arch.tableRows = arch.tableRows[:last]
}

// Despawn removes e and all of its components, bumping its generation so no
// existing copy of e remains valid (spec.md §3, §4.4). Idempotent: despawning an
// already-despawned entity is a no-op that returns false (spec.md §8).
func (w *World) Despawn(e Entity) bool {
	loc, ok := w.dir.Get(e)
	if !ok {
		return false
	}
	arch := w.graph.Archetype(loc.archetype)

	if w.observerFlags(arch)&archFlagOnRemove != 0 {
		for _, id := range arch.tableComponents {
			w.observers.fire(OnRemove, id, w, e)
		}
		for _, id := range arch.sparseComponents {
			w.observers.fire(OnRemove, id, w, e)
		}
	}

	if !loc.pending {
		tableRow := arch.tableRows[loc.row]
		removeTableRow(w.dir, w.graph, arch.table, tableRow)
		for _, id := range arch.sparseComponents {
			arch.sparse[id].Remove(e)
		}
		removeArchetypeRow(w.dir, arch, loc.row)
	}

	return w.dir.Despawn(e)
}

// insertOne walks (or populates) a single add-edge, moving e's row into the
// resulting archetype and pushing the new component's value (spec.md §3
// "Lifecycles": "An insert walks an add-edge to a target archetype, moving the
// row"). Used both by World.Insert (one component at a time) and by InsertT,
// which the command buffer's Insert and InsertDeferred reach at apply time.
func (w *World) insertOne(e Entity, id ComponentId, value any) error {
	loc, ok := w.dir.Get(e)
	if !ok {
		return fmt.Errorf("%w: entity %+v", ErrInvalidEntity, e)
	}
	arch := w.graph.Archetype(loc.archetype)
	tick := w.tick.current()

	if arch.Has(id) {
		if arch.componentSet[id] == Table {
			col, _ := arch.table.Column(id)
			col.Set(arch.tableRows[loc.row], value, tick)
		} else {
			arch.sparse[id].Insert(e, value, tick)
		}
		if w.observerFlags(arch)&archFlagOnInsert != 0 {
			w.observers.fire(OnInsert, id, w, e)
		}
		return nil
	}

	target := w.graph.AddEdge(arch, id)
	w.moveEntity(e, arch, loc.row, target)

	newLoc, _ := w.dir.Get(e)
	if target.componentSet[id] == Table {
		col, _ := target.table.Column(id)
		col.Push(value, tick)
	} else {
		target.sparse[id].Insert(e, value, tick)
	}

	flags := w.observerFlags(target)
	if flags&archFlagOnAdd != 0 {
		w.observers.fire(OnAdd, id, w, e)
	}
	if flags&archFlagOnInsert != 0 {
		w.observers.fire(OnInsert, id, w, e)
	}
	_ = newLoc
	return nil
}

// Insert adds one or more components to an already-live entity, one edge walk
// per component (spec.md §6 "insert(entity, bundle)").
func (w *World) Insert(e Entity, components ...any) error {
	ids, values := expandComponents(w.Registry, components)
	for i, id := range ids {
		if err := w.insertOne(e, id, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// InsertT adds a single typed component to e.
func InsertT[T any](w *World, e Entity, value T) error {
	id := componentIdFor[T](w.Registry)
	return w.insertOne(e, id, value)
}

// moveEntity relocates e's row from (from, fromRow) to target, copying every
// column/sparse-slot value the two archetypes share (preserving their change
// ticks), and fixes up the directory. The component(s) present only in target
// are left for the caller to populate.
func (w *World) moveEntity(e Entity, from *Archetype, fromRow int, target *Archetype) {
	var newTableRow int
	if target.table == from.table {
		newTableRow = from.tableRows[fromRow]
	} else {
		newTableRow = from.table.moveRowTo(target.table, from.tableRows[fromRow])
	}

	for _, id := range from.sparseComponents {
		if target.componentSet[id] != SparseSet {
			continue
		}
		target.sparse[id].CopyFrom(from.sparse[id], e)
	}

	newArchRow := len(target.entities)
	target.entities = append(target.entities, e)
	target.tableRows = append(target.tableRows, newTableRow)
	w.dir.Set(e, location{archetype: target.id, row: newArchRow})

	if target.table != from.table {
		removeTableRow(w.dir, w.graph, from.table, from.tableRows[fromRow])
	}
	for _, id := range from.sparseComponents {
		if target.componentSet[id] != SparseSet {
			arch := from
			arch.sparse[id].Remove(e)
		}
	}
	removeArchetypeRow(w.dir, from, fromRow)
}

// removeOne walks (or populates) a single remove-bundle edge. strict controls
// spec.md §7's "Bundle mismatch": when the component is absent, strict returns
// ErrBundleMismatch while the lenient (default, via RemoveByID and RemoveT)
// path is a no-op.
func (w *World) removeOne(e Entity, id ComponentId, strict bool) error {
	loc, ok := w.dir.Get(e)
	if !ok {
		return fmt.Errorf("%w: entity %+v", ErrInvalidEntity, e)
	}
	arch := w.graph.Archetype(loc.archetype)

	target, present := w.graph.RemoveEdge(arch, id)
	if !present {
		if strict {
			return fmt.Errorf("%w: component not present", ErrBundleMismatch)
		}
		return nil
	}

	if w.observerFlags(arch)&archFlagOnRemove != 0 {
		w.observers.fire(OnRemove, id, w, e)
	}

	if arch.componentSet[id] == SparseSet {
		arch.sparse[id].Remove(e)
	}

	w.moveEntity(e, arch, loc.row, target)
	return nil
}

// RemoveByID removes a single component by id, lenient (no-op) if absent.
func (w *World) RemoveByID(e Entity, id ComponentId) error {
	return w.removeOne(e, id, false)
}

// RemoveT removes a single typed component from e, lenient if absent.
func RemoveT[T any](w *World, e Entity) error {
	id := componentIdFor[T](w.Registry)
	return w.removeOne(e, id, false)
}

// RemoveTStrict removes a single typed component from e, failing with
// ErrBundleMismatch if the component was not present (spec.md §7).
func RemoveTStrict[T any](w *World, e Entity) error {
	id := componentIdFor[T](w.Registry)
	return w.removeOne(e, id, true)
}

func (w *World) componentValue(e Entity, id ComponentId) (any, bool) {
	loc, ok := w.dir.Get(e)
	if !ok {
		return nil, false
	}
	arch := w.graph.Archetype(loc.archetype)
	if !arch.Has(id) {
		return nil, false
	}
	if arch.componentSet[id] == Table {
		col, _ := arch.table.Column(id)
		return col.Get(arch.tableRows[loc.row]), true
	}
	return arch.sparse[id].Get(e)
}

// Get returns the live value for component id on e (spec.md §6 "get::<T>").
func (w *World) Get(e Entity, id ComponentId) (any, bool) {
	return w.componentValue(e, id)
}

// Get returns a typed pointer to e's T component, or (nil, false) if e is
// invalid or lacks T (spec.md §7 "Missing component").
func Get[T any](w *World, e Entity) (*T, bool) {
	id := componentIdFor[T](w.Registry)
	v, ok := w.componentValue(e, id)
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// GetMut is Get's mutable-access alias (spec.md §6 "get_mut::<T>"); Go has no
// separate const-reference type, so both resolve to the same pointer, but
// GetMut additionally bumps the column's changed tick for change detection.
func GetMut[T any](w *World, e Entity) (*T, bool) {
	id := componentIdFor[T](w.Registry)
	loc, ok := w.dir.Get(e)
	if !ok {
		return nil, false
	}
	arch := w.graph.Archetype(loc.archetype)
	if !arch.Has(id) {
		return nil, false
	}
	tick := w.tick.current()
	if arch.componentSet[id] == Table {
		col, _ := arch.table.Column(id)
		row := arch.tableRows[loc.row]
		v := col.Get(row)
		col.Set(row, v, tick)
		return v.(*T), true
	}
	arch.sparse[id].Touch(e, tick)
	v, _ := arch.sparse[id].Get(e)
	return v.(*T), true
}

// Has reports whether e carries component id.
func (w *World) Has(e Entity, id ComponentId) bool {
	loc, ok := w.dir.Get(e)
	if !ok {
		return false
	}
	return w.graph.Archetype(loc.archetype).Has(id)
}

// Has reports whether e carries a T component.
func Has[T any](w *World, e Entity) bool {
	id := componentIdFor[T](w.Registry)
	return w.Has(e, id)
}

// ReserveEntity allocates an Entity id without giving it a row yet (spec.md
// §4.4 "reserve allocates an id atomically without structural change"). The
// id is valid and stable immediately, but Get/Has on it report nothing until
// FlushReservations places it in the empty archetype, or some other
// structural op (e.g. a command buffer's SpawnReserved) gives it components.
func (w *World) ReserveEntity() Entity {
	return w.dir.Reserve()
}

// FlushReservations places every entity reserved via ReserveEntity (and not
// already realised by some other structural op) into the empty archetype
// (spec.md §4.4 "flush realises all pending reservations into the empty
// archetype").
func (w *World) FlushReservations() {
	w.dir.Flush(func(e Entity) location {
		return location{archetype: w.graph.emptyId, row: placeEmpty(w, e)}
	})
}

// FlushCommands applies every operation queued in buf to w, in the order they
// were recorded, then clears buf (spec.md §6 "flush_commands()").
func (w *World) FlushCommands(buf *CommandBuffer) {
	buf.Apply(w)
}
