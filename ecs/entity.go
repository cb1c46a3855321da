package ecs

// Entity is an opaque, stable entity identifier: an index into the directory plus
// the generation the directory held for that index when the entity was created
// (spec.md §3). An Entity is valid only while the directory entry at Index carries
// the same Generation.
type Entity struct {
	Index      uint32
	Generation uint32
}

// Nil is the zero Entity; never returned by Spawn/Reserve.
var Nil = Entity{}

func (e Entity) IsNil() bool { return e == Nil }

// location is where the directory currently thinks an entity's row data lives.
// pending is true for an id returned by Directory.Reserve that has not yet been
// realised into the empty archetype by Directory.Flush.
type location struct {
	archetype ArchetypeId
	row       int
	pending   bool
}

// directoryEntry is one slot of the entity directory: the generation currently
// owning the slot, and that owner's location once live.
type directoryEntry struct {
	generation uint32
	alive      bool
	loc        location
}

// Directory is the generational index table mapping Entity -> (ArchetypeId, row)
// (spec.md §3 "Entity directory", §4.4). reserve allocates an id without any
// structural change; flush realises every pending reservation into the empty
// archetype. despawn bumps the generation and recycles the index onto a free list.
type Directory struct {
	entries  []directoryEntry
	freeList []uint32
	pending  []uint32 // indices reserved but not yet flushed
}

func newDirectory() *Directory {
	return &Directory{}
}

// Reserve allocates an Entity atomically with respect to structural change: the
// returned id has no row yet ("location is pending" per spec.md §4.4) until Flush
// runs. Reserve takes no lock and may grow the entry slice, so it is not safe
// to call concurrently with any other Directory method, reads included.
func (d *Directory) Reserve() Entity {
	var index uint32
	if n := len(d.freeList); n > 0 {
		index = d.freeList[n-1]
		d.freeList = d.freeList[:n-1]
	} else {
		index = uint32(len(d.entries))
		// Fresh slots start at generation 1 so no live id ever equals Nil.
		d.entries = append(d.entries, directoryEntry{generation: 1})
	}

	d.entries[index].alive = true
	d.entries[index].loc = location{pending: true}
	d.pending = append(d.pending, index)

	return Entity{Index: index, Generation: d.entries[index].generation}
}

// Flush places every pending reservation's row in the empty archetype and clears
// the pending list. Called by World.FlushReservations; World.Spawn does not use
// it and realises its reservation directly through Place.
func (d *Directory) Flush(place func(e Entity) location) {
	for _, index := range d.pending {
		e := Entity{Index: index, Generation: d.entries[index].generation}
		d.entries[index].loc = place(e)
		d.entries[index].loc.pending = false
	}
	d.pending = d.pending[:0]
}

// Set records where an entity currently lives (used after spawn/insert/remove move
// its row to a new archetype).
func (d *Directory) Set(e Entity, loc location) {
	d.entries[e.Index].loc = loc
}

// Place realises a reservation (or any other entity's) location in one step,
// clearing its pending flag and dropping it from the pending list if it was on
// one. Used by the synchronous single-archetype-move spawn path, which never
// needs the two-phase Reserve-then-Flush indirection Flush provides for deferred
// command-buffer spawns.
func (d *Directory) Place(e Entity, loc location) {
	loc.pending = false
	d.entries[e.Index].loc = loc
	for i, idx := range d.pending {
		if idx == e.Index {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			break
		}
	}
}

// Get returns the entity's current location. ok is false if e is stale (the
// directory's generation at e.Index no longer matches e.Generation) or dead.
func (d *Directory) Get(e Entity) (location, bool) {
	if int(e.Index) >= len(d.entries) {
		return location{}, false
	}
	entry := d.entries[e.Index]
	if !entry.alive || entry.generation != e.Generation {
		return location{}, false
	}
	return entry.loc, true
}

// IsAlive reports whether e is still valid (spec.md §7 "Invalid entity").
func (d *Directory) IsAlive(e Entity) bool {
	_, ok := d.Get(e)
	return ok
}

// Despawn invalidates e: the generation at e.Index is bumped so no existing copy
// of e will ever again compare alive, and the index is recycled onto the free
// list (spec.md §4.4, "Idempotent despawn" law in spec.md §8). Returns false if e
// was already invalid.
func (d *Directory) Despawn(e Entity) bool {
	if !d.IsAlive(e) {
		return false
	}
	d.entries[e.Index].alive = false
	d.entries[e.Index].generation++
	d.entries[e.Index].loc = location{}
	d.freeList = append(d.freeList, e.Index)
	return true
}
