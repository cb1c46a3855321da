package ecs

import (
	"iter"
	"reflect"
	"strings"
	"unsafe"
)

// Ref is a read-only fetch of component T inside a query's fetch struct. A
// query's D parameter is a plain struct whose fields are Ref[T] or Mut[T]
// (optionally tagged `ecs:"optional"`), generalizing the teacher's
// pointer-field View[T] struct (view.go) to distinguish reads from writes, as
// spec.md §4.5/§4.7 require for the scheduler's access-conflict analysis.
type Ref[T any] struct{ ptr *T }

// Get returns the fetched component pointer, or nil if the field was optional
// and absent on the matched row.
func (r Ref[T]) Get() *T { return r.ptr }

// ComponentType reports T via a method call rather than reflect type-argument
// parsing, so the query planner's reflection over the fetch struct never has
// to string-parse a generic instantiation name for this part.
func (Ref[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Mutable reports whether this fetch field declares write access.
func (Ref[T]) Mutable() bool { return false }

// Mut is Ref's mutable counterpart: fetching it bumps the row's changed tick.
type Mut[T any] struct{ ptr *T }

func (r Mut[T]) Get() *T                   { return r.ptr }
func (Mut[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }
func (Mut[T]) Mutable() bool               { return true }

// EntityOf, used as a fetch struct field, populates with the row's own Entity
// instead of a component value.
type EntityOf struct{ e Entity }

// Get returns the entity this row belongs to.
func (f EntityOf) Get() Entity { return f.e }

var entityOfType = reflect.TypeOf(EntityOf{})

// With constrains a query to archetypes carrying T, without fetching it.
type With[T any] struct{}

func (With[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Without constrains a query to archetypes that do not carry T.
type Without[T any] struct{}

func (Without[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Added matches rows whose T component was inserted since the querying
// system's last run (spec.md §4.5, §4.9).
type Added[T any] struct{}

func (Added[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Changed matches rows whose T component was written (inserted or mutated)
// since the querying system's last run.
type Changed[T any] struct{}

func (Changed[T]) ComponentType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// FilteredAccess is the declared reads/writes a query (or, assembled across all
// of a system's queries and resource parameters, a system) carries into the
// scheduler's dependency analysis (spec.md §3 "ArchetypeComponentId... the unit
// of access-conflict reasoning", §4.7 "declared reads and writes").
type FilteredAccess struct {
	reads   []ComponentId
	writes  []ComponentId
	with    []ComponentId
	without []ComponentId
	added   []ComponentId
	changed []ComponentId

	resourceReads  []ResourceId
	resourceWrites []ResourceId
}

func (a *FilteredAccess) merge(b FilteredAccess) {
	a.reads = append(a.reads, b.reads...)
	a.writes = append(a.writes, b.writes...)
	a.with = append(a.with, b.with...)
	a.without = append(a.without, b.without...)
	a.added = append(a.added, b.added...)
	a.changed = append(a.changed, b.changed...)
	a.resourceReads = append(a.resourceReads, b.resourceReads...)
	a.resourceWrites = append(a.resourceWrites, b.resourceWrites...)
}

// ComponentReads and ComponentWrites expose the declared component access for
// scheduler construction (spec.md §4.8).
func (a FilteredAccess) ComponentReads() []ComponentId {
	return dedup(append(a.reads, a.with...), a.added, a.changed)
}
func (a FilteredAccess) ComponentWrites() []ComponentId { return dedupOne(a.writes) }

// ResourceReads and ResourceWrites expose the declared resource access for
// scheduler construction (spec.md §4.8).
func (a FilteredAccess) ResourceReads() []ResourceId  { return dedupResource(a.resourceReads) }
func (a FilteredAccess) ResourceWrites() []ResourceId { return dedupResource(a.resourceWrites) }

func dedupResource(ids []ResourceId) []ResourceId {
	seen := make(map[ResourceId]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func dedupOne(ids []ComponentId) []ComponentId {
	seen := make(map[ComponentId]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func dedup(base []ComponentId, extra ...[]ComponentId) []ComponentId {
	seen := make(map[ComponentId]bool, len(base))
	out := make([]ComponentId, 0, len(base))
	for _, id := range base {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, group := range extra {
		for _, id := range group {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

type fetchField struct {
	componentId ComponentId
	offset      uintptr
	optional    bool
	write       bool
	isEntity    bool
}

func buildFetch(registry *ComponentRegistry, dt reflect.Type) ([]fetchField, FilteredAccess) {
	var fields []fetchField
	var access FilteredAccess
	if dt == nil || dt.Kind() != reflect.Struct {
		panic("ecs: query fetch parameter must be a struct of ecs.Ref[T]/ecs.Mut[T] fields")
	}

	for i := 0; i < dt.NumField(); i++ {
		sf := dt.Field(i)
		if sf.Type == entityOfType {
			fields = append(fields, fetchField{isEntity: true, offset: sf.Offset})
			continue
		}

		zero := reflect.Zero(sf.Type)
		ctM := zero.MethodByName("ComponentType")
		if !ctM.IsValid() {
			panic("ecs: query fetch field " + sf.Name + " must be ecs.Ref[T], ecs.Mut[T] or ecs.EntityOf")
		}
		ct := ctM.Call(nil)[0].Interface().(reflect.Type)
		write := zero.MethodByName("Mutable").Call(nil)[0].Interface().(bool)
		id := registry.ensureType(ct)
		optional := sf.Tag.Get("ecs") == "optional"

		fields = append(fields, fetchField{componentId: id, offset: sf.Offset, optional: optional, write: write})
		if write {
			access.writes = append(access.writes, id)
		} else {
			access.reads = append(access.reads, id)
		}
	}
	return fields, access
}

func buildFilterAccess(registry *ComponentRegistry, ft reflect.Type) FilteredAccess {
	var access FilteredAccess
	if ft == nil || ft.Kind() != reflect.Struct {
		return access
	}
	for i := 0; i < ft.NumField(); i++ {
		sf := ft.Field(i)
		zero := reflect.Zero(sf.Type)
		m := zero.MethodByName("ComponentType")
		if !m.IsValid() {
			continue
		}
		ct := m.Call(nil)[0].Interface().(reflect.Type)
		id := registry.ensureType(ct)

		switch {
		case strings.HasPrefix(sf.Type.Name(), "With["):
			access.with = append(access.with, id)
		case strings.HasPrefix(sf.Type.Name(), "Without["):
			access.without = append(access.without, id)
		case strings.HasPrefix(sf.Type.Name(), "Added["):
			access.added = append(access.added, id)
		case strings.HasPrefix(sf.Type.Name(), "Changed["):
			access.changed = append(access.changed, id)
		}
	}
	return access
}

// QueryState is a compiled query descriptor (spec.md §4.5 "a query is a
// compile-time descriptor (D, F)"): D is the fetch, F is the filter. It caches
// the matched archetype list and the last-seen ArchetypeGeneration so repeated
// use only re-tests archetypes created since the previous match, the same
// incremental scheme the teacher's Query[T] applies over its raw archetype
// count (query.go). ArchetypeGraph.Generation is likewise the number of
// archetypes created so far, which works because archetypes are never removed
// (spec.md §3).
type QueryState[D any, F any] struct {
	world          *World
	fetch          []fetchField
	access         FilteredAccess
	lastGeneration ArchetypeId
	matched        []*Archetype
	lastRunTick    Tick
}

// NewQueryState compiles a (D, F) query against world, registering any
// component types referenced by D or F that have not been seen before
// (spec.md §6 "Implicit on first use").
func NewQueryState[D any, F any](world *World) *QueryState[D, F] {
	q := &QueryState[D, F]{world: world}
	q.InitState(world)
	return q
}

// InitState (re)binds the query to world and recomputes its declared access
// (spec.md §4.5 "init_state(world)").
func (q *QueryState[D, F]) InitState(world *World) {
	q.world = world
	var d D
	var f F
	fetch, faccess := buildFetch(world.Registry, reflect.TypeOf(d))
	faccess.merge(buildFilterAccess(world.Registry, reflect.TypeOf(f)))
	q.fetch = fetch
	q.access = faccess
	q.lastGeneration = 0
	q.matched = nil
}

// Access returns the query's declared FilteredAccess, for the scheduler.
func (q *QueryState[D, F]) Access() FilteredAccess { return q.access }

// SetLastRunTick tells the query which tick to compare Added[T]/Changed[T]
// filters against (spec.md §4.9). The scheduler does not call it: a system's
// prepare step only runs UpdateArchetypes, and the system's last-run tick
// reaches its body as SystemContext.LastRunTick. Until SetLastRunTick is
// called, the comparison tick is 0.
func (q *QueryState[D, F]) SetLastRunTick(t Tick) { q.lastRunTick = t }

func (q *QueryState[D, F]) matches(a *Archetype) bool {
	for _, field := range q.fetch {
		if field.isEntity || field.optional {
			continue
		}
		if !a.Has(field.componentId) {
			return false
		}
	}
	for _, id := range q.access.with {
		if !a.Has(id) {
			return false
		}
	}
	for _, id := range q.access.without {
		if a.Has(id) {
			return false
		}
	}
	for _, id := range q.access.added {
		if !a.Has(id) {
			return false
		}
	}
	for _, id := range q.access.changed {
		if !a.Has(id) {
			return false
		}
	}
	return true
}

// UpdateArchetypes re-tests only archetypes created since the last call
// (spec.md §4.5 "update_archetypes(world)"). The scheduler calls this during
// each system's prepare step.
func (q *QueryState[D, F]) UpdateArchetypes() {
	gen := q.world.graph.Generation()
	for id := q.lastGeneration; id < gen; id++ {
		a := q.world.graph.Archetype(id)
		if q.matches(a) {
			q.matched = append(q.matched, a)
		}
	}
	q.lastGeneration = gen
}

// MatchedArchetypes exposes the current match set, used by the scheduler to
// test dynamic-dependency promotion/demotion (spec.md §4.8 step 3).
func (q *QueryState[D, F]) MatchedArchetypes() []*Archetype { return q.matched }

func (q *QueryState[D, F]) ticksFor(a *Archetype, id ComponentId, row int) (Tick, Tick, bool) {
	mode, has := a.componentSet[id]
	if !has {
		return 0, 0, false
	}
	if mode == Table {
		col, _ := a.table.Column(id)
		added, changed := col.Ticks(a.tableRows[row])
		return added, changed, true
	}
	return a.sparse[id].Ticks(a.entities[row])
}

func (q *QueryState[D, F]) rowPassesTickFilters(a *Archetype, row int) bool {
	for _, id := range q.access.added {
		added, _, ok := q.ticksFor(a, id, row)
		if !ok || !added.isNewerThan(q.lastRunTick) {
			return false
		}
	}
	for _, id := range q.access.changed {
		_, changed, ok := q.ticksFor(a, id, row)
		if !ok || !changed.isNewerThan(q.lastRunTick) {
			return false
		}
	}
	return true
}

// populate fills out's fetch fields for (a, row), writing raw pointers
// directly into the struct's memory via their precomputed offsets (spec.md
// §4.5 "composes fetch outputs from column pointers and/or sparse lookups"),
// the same unsafe-pointer-writing trick the teacher's View.Fill uses, applied
// here to Ref[T]/Mut[T] wrapper fields instead of raw pointer fields. Returns
// false if a required (non-optional) fetch field is absent on this row.
func (q *QueryState[D, F]) populate(a *Archetype, row int, out *D) bool {
	structPtr := unsafe.Pointer(out)
	tick := q.world.tick.current()

	for _, field := range q.fetch {
		fieldPtr := unsafe.Pointer(uintptr(structPtr) + field.offset)
		if field.isEntity {
			*(*Entity)(fieldPtr) = a.entities[row]
			continue
		}

		mode, has := a.componentSet[field.componentId]
		if !has {
			if field.optional {
				*(*unsafe.Pointer)(fieldPtr) = nil
				continue
			}
			return false
		}

		var value any
		if mode == Table {
			col, _ := a.table.Column(field.componentId)
			tableRow := a.tableRows[row]
			if field.write {
				v := col.Get(tableRow)
				col.Set(tableRow, v, tick)
				value = v
			} else {
				value = col.Get(tableRow)
			}
		} else {
			e := a.entities[row]
			if field.write {
				a.sparse[field.componentId].Touch(e, tick)
			}
			value, has = a.sparse[field.componentId].Get(e)
			if !has {
				if field.optional {
					*(*unsafe.Pointer)(fieldPtr) = nil
					continue
				}
				return false
			}
		}

		*(*unsafe.Pointer)(fieldPtr) = reflect.ValueOf(value).UnsafePointer()
	}
	return true
}

// Iter yields every matched row as (Entity, *D) (spec.md §4.5 "iter(world) /
// iter_mut(world)"). UpdateArchetypes must have been called at least once
// since the last structural change the caller wants reflected.
func (q *QueryState[D, F]) Iter() iter.Seq2[Entity, *D] {
	return func(yield func(Entity, *D) bool) {
		for _, a := range q.matched {
			n := a.Len()
			for row := 0; row < n; row++ {
				if !q.rowPassesTickFilters(a, row) {
					continue
				}
				var d D
				if !q.populate(a, row, &d) {
					continue
				}
				if !yield(a.entities[row], &d) {
					return
				}
			}
		}
	}
}

// Count returns the number of rows in the matched archetypes without
// allocating fetch structs, useful for run conditions and tests. It does not
// apply Added[T]/Changed[T] tick filters; only Iter does.
func (q *QueryState[D, F]) Count() int {
	n := 0
	for _, a := range q.matched {
		n += a.Len()
	}
	return n
}
