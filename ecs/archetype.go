package ecs

import (
	"sort"
	"strconv"
	"strings"
)

// ArchetypeId is a dense identifier for an Archetype. Archetypes are created
// lazily and never destroyed during a run (spec.md §3).
type ArchetypeId uint32

// ArchetypeComponentId is the unit of access-conflict reasoning for the scheduler
// (spec.md §3): a dense id assigned per (archetype, component) pair. Two systems'
// declared accesses conflict only when their archetype-component id sets
// intersect with at least one side writing.
type ArchetypeComponentId uint32

type archEdge struct {
	target ArchetypeId
}

// ArchetypeFlags records, per lifecycle event, whether any component this
// archetype carries currently has a registered observer, so structural ops can
// skip observer dispatch entirely when none apply (SPEC_FULL.md §3.2,
// grounded on original_source/archetype.rs's ArchetypeFlags bitset and
// observer.rs's Observers::register/unregister fast path).
type ArchetypeFlags uint8

const (
	archFlagOnAdd ArchetypeFlags = 1 << iota
	archFlagOnInsert
	archFlagOnRemove
)

func flagForEvent(event LifecycleEvent) ArchetypeFlags {
	switch event {
	case OnAdd:
		return archFlagOnAdd
	case OnInsert:
		return archFlagOnInsert
	case OnRemove:
		return archFlagOnRemove
	default:
		return 0
	}
}

type removeEdge struct {
	target  ArchetypeId
	present bool
}

// Archetype is the set of entities that share exactly one component set,
// partitioned into a table-stored subset and a sparse-stored subset (spec.md §3,
// §4.3). Its identity is that component set, not the entities in it.
type Archetype struct {
	id ArchetypeId

	tableComponents  []ComponentId // sorted
	sparseComponents []ComponentId // sorted
	componentSet     map[ComponentId]StorageMode

	table  *Table
	sparse map[ComponentId]sparseStorage

	entities  []Entity // this archetype's own row order
	tableRows []int    // tableRows[i] is the Table row entities[i] occupies

	archetypeComponentIds map[ComponentId]ArchetypeComponentId

	addEdges    map[ComponentId]archEdge
	removeEdges map[ComponentId]removeEdge

	obsFlags   ArchetypeFlags
	obsFlagGen uint64
}

func (a *Archetype) ID() ArchetypeId { return a.id }

// Has reports whether the archetype carries the given component, regardless of
// storage mode.
func (a *Archetype) Has(id ComponentId) bool {
	_, ok := a.componentSet[id]
	return ok
}

// Len returns the number of entities currently in this archetype.
func (a *Archetype) Len() int { return len(a.entities) }

// Entities returns the archetype's entity list. Callers must not retain the slice
// across a structural mutation.
func (a *Archetype) Entities() []Entity { return a.entities }

// ArchetypeComponentID returns the dense (archetype, component) id used by the
// scheduler's conflict analysis, or false if the archetype does not carry id.
func (a *Archetype) ArchetypeComponentID(id ComponentId) (ArchetypeComponentId, bool) {
	acid, ok := a.archetypeComponentIds[id]
	return acid, ok
}

// TableComponents and SparseComponents expose the archetype's partitioned
// component-id sets (both already sorted) for query matching.
func (a *Archetype) TableComponents() []ComponentId  { return a.tableComponents }
func (a *Archetype) SparseComponents() []ComponentId { return a.sparseComponents }

// IsDense reports whether every component in ids is table-stored on this
// archetype (spec.md §4.5). QueryState does not call it: Iter always walks
// matched archetypes row by row.
func (a *Archetype) IsDense(ids []ComponentId) bool {
	for _, id := range ids {
		if a.componentSet[id] == SparseSet {
			return false
		}
	}
	return true
}

func idsKey(ids []ComponentId) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}

func sortedCopy(ids []ComponentId) []ComponentId {
	out := append([]ComponentId(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func insertSorted(ids []ComponentId, id ComponentId) []ComponentId {
	out := make([]ComponentId, 0, len(ids)+1)
	inserted := false
	for _, existing := range ids {
		if !inserted && id < existing {
			out = append(out, id)
			inserted = true
		}
		out = append(out, existing)
	}
	if !inserted {
		out = append(out, id)
	}
	return out
}

func removeFromSorted(ids []ComponentId, id ComponentId) []ComponentId {
	out := make([]ComponentId, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// ArchetypeGraph is the set of archetypes plus the add/remove edges between them
// (spec.md §4.3). Archetypes are interned on their canonicalised component-set
// identity: looking up the same (table, sparse) component sets always returns the
// same ArchetypeId.
type ArchetypeGraph struct {
	registry *ComponentRegistry

	archetypes []*Archetype
	byKey      map[string]ArchetypeId

	tables     []*Table
	tableByKey map[string]*Table

	nextArchComponentId uint32

	emptyId ArchetypeId
}

func newArchetypeGraph(registry *ComponentRegistry) *ArchetypeGraph {
	g := &ArchetypeGraph{
		registry:   registry,
		byKey:      make(map[string]ArchetypeId),
		tableByKey: make(map[string]*Table),
	}
	g.emptyId = g.getOrCreate(nil, nil).id
	return g
}

// Generation returns the current archetype-generation counter: the number of
// archetypes that exist right now. A query planner that last matched when
// Generation() == n only needs to re-test archetypes with id >= n (spec.md §4.5).
func (g *ArchetypeGraph) Generation() ArchetypeId {
	return ArchetypeId(len(g.archetypes))
}

func (g *ArchetypeGraph) Empty() *Archetype { return g.archetypes[g.emptyId] }

func (g *ArchetypeGraph) Archetype(id ArchetypeId) *Archetype { return g.archetypes[id] }

// Archetypes returns every archetype created so far, in id order.
func (g *ArchetypeGraph) Archetypes() []*Archetype { return g.archetypes }

func (g *ArchetypeGraph) getOrCreateTable(components []ComponentId) *Table {
	key := idsKey(components)
	if t, ok := g.tableByKey[key]; ok {
		return t
	}
	t := newTable(TableId(len(g.tables)), components, g.registry)
	g.tables = append(g.tables, t)
	g.tableByKey[key] = t
	return t
}

// getOrCreate interns an archetype by its canonical (table, sparse) component-id
// sets, creating one (and its edges-cache entries) on first lookup.
func (g *ArchetypeGraph) getOrCreate(tableComponents, sparseComponents []ComponentId) *Archetype {
	tableComponents = sortedCopy(tableComponents)
	sparseComponents = sortedCopy(sparseComponents)
	key := idsKey(tableComponents) + "|" + idsKey(sparseComponents)
	if id, ok := g.byKey[key]; ok {
		return g.archetypes[id]
	}

	arch := &Archetype{
		id:               ArchetypeId(len(g.archetypes)),
		tableComponents:  tableComponents,
		sparseComponents: sparseComponents,
		componentSet:     make(map[ComponentId]StorageMode, len(tableComponents)+len(sparseComponents)),
		table:            g.getOrCreateTable(tableComponents),
		sparse:           make(map[ComponentId]sparseStorage, len(sparseComponents)),
		archetypeComponentIds: make(map[ComponentId]ArchetypeComponentId,
			len(tableComponents)+len(sparseComponents)),
		addEdges:    make(map[ComponentId]archEdge),
		removeEdges: make(map[ComponentId]removeEdge),
	}

	for _, c := range tableComponents {
		arch.componentSet[c] = Table
		arch.archetypeComponentIds[c] = ArchetypeComponentId(g.nextArchComponentId)
		g.nextArchComponentId++
	}
	for _, c := range sparseComponents {
		arch.componentSet[c] = SparseSet
		arch.sparse[c] = g.registry.newSparseStorage(c)
		arch.archetypeComponentIds[c] = ArchetypeComponentId(g.nextArchComponentId)
		g.nextArchComponentId++
	}

	g.archetypes = append(g.archetypes, arch)
	g.byKey[key] = arch.id
	return arch
}

// AddEdge walks (and, on first traversal, populates) the add-bundle edge for a
// single component, returning the archetype that results from adding it
// (spec.md §4.3). Edges are never invalidated once populated.
func (g *ArchetypeGraph) AddEdge(from *Archetype, comp ComponentId) *Archetype {
	if edge, ok := from.addEdges[comp]; ok {
		return g.archetypes[edge.target]
	}

	tableComponents := from.tableComponents
	sparseComponents := from.sparseComponents
	if from.Has(comp) {
		// Already present: adding is a same-archetype no-op edge.
		from.addEdges[comp] = archEdge{target: from.id}
		return from
	}

	if g.registry.modeOf(comp) == Table {
		tableComponents = insertSorted(tableComponents, comp)
	} else {
		sparseComponents = insertSorted(sparseComponents, comp)
	}

	target := g.getOrCreate(tableComponents, sparseComponents)
	from.addEdges[comp] = archEdge{target: target.id}
	return target
}

// RemoveEdge walks (and, on first traversal, populates) the remove-bundle edge
// for a single component. ok is false when comp is not present on from, matching
// spec.md §4.3's Option-typed remove_bundle (the lenient "remove only what is
// present" variant is realised by having callers check ok themselves).
func (g *ArchetypeGraph) RemoveEdge(from *Archetype, comp ComponentId) (*Archetype, bool) {
	if edge, ok := from.removeEdges[comp]; ok {
		if !edge.present {
			return nil, false
		}
		return g.archetypes[edge.target], true
	}

	mode, has := from.componentSet[comp]
	if !has {
		from.removeEdges[comp] = removeEdge{present: false}
		return nil, false
	}

	tableComponents := from.tableComponents
	sparseComponents := from.sparseComponents
	if mode == Table {
		tableComponents = removeFromSorted(tableComponents, comp)
	} else {
		sparseComponents = removeFromSorted(sparseComponents, comp)
	}

	target := g.getOrCreate(tableComponents, sparseComponents)
	from.removeEdges[comp] = removeEdge{target: target.id, present: true}
	return target, true
}
