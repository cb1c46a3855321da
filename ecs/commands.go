package ecs

// CommandBuffer is a system's deferred structural-operation log (spec.md §4.6):
// spawn, despawn, insert, remove, add-resource. A system records into its own
// buffer during a parallel stage run; the executor drains buffers once, at the
// end of the stage run, in the systems' declared order, never in completion
// order (spec.md §5 "Command buffers are applied in original
// declared order"). Grounded on the teacher's commands.go, generalized from its
// storage.Spawn/AddComponent/RemoveComponent calls to this module's
// archetype-edge-walking World operations, and extended with resource inserts
// (spec.md §6 "insert resource").
type CommandBuffer struct {
	ops []func(*World)
}

// NewCommandBuffer creates an empty buffer. Systems own one each (spec.md §4.7).
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Spawn defers creation of an entity with the given component values.
func (c *CommandBuffer) Spawn(components ...any) {
	c.ops = append(c.ops, func(w *World) {
		w.Spawn(components...)
	})
}

// SpawnReserved immediately reserves a stable Entity id, so the caller can
// hand it to other components or observers before the entity actually has
// any data, and defers populating it until Apply (spec.md §4.4's two-phase
// reserve/flush, applied here to a command-buffer spawn as spec.md §4.6
// describes).
func (c *CommandBuffer) SpawnReserved(world *World, components ...any) Entity {
	e := world.ReserveEntity()
	c.ops = append(c.ops, func(w *World) {
		ids, values := expandComponents(w.Registry, components)
		w.placeNewEntity(e, ids, values)
	})
	return e
}

// SpawnBundleDeferred defers creation of an entity from a struct-shaped bundle value.
func SpawnBundleDeferred[T any](c *CommandBuffer, bundle T) {
	c.ops = append(c.ops, func(w *World) {
		Spawn(w, bundle)
	})
}

// Despawn defers removal of e. A no-op at apply time if e is already invalid
// (spec.md §8 "Idempotent despawn").
func (c *CommandBuffer) Despawn(e Entity) {
	c.ops = append(c.ops, func(w *World) {
		w.Despawn(e)
	})
}

// Insert defers adding one or more components to e.
func (c *CommandBuffer) Insert(e Entity, components ...any) {
	c.ops = append(c.ops, func(w *World) {
		_ = w.Insert(e, components...)
	})
}

// InsertDeferred is Insert's single-typed-component, generic-friendly form.
func InsertDeferred[T any](c *CommandBuffer, e Entity, value T) {
	c.ops = append(c.ops, func(w *World) {
		_ = InsertT(w, e, value)
	})
}

// Remove defers a lenient (no-op if absent) removal of a single component by id.
func (c *CommandBuffer) Remove(e Entity, id ComponentId) {
	c.ops = append(c.ops, func(w *World) {
		_ = w.RemoveByID(e, id)
	})
}

// RemoveDeferred is Remove's typed, generic form.
func RemoveDeferred[T any](c *CommandBuffer, e Entity) {
	c.ops = append(c.ops, func(w *World) {
		_ = RemoveT[T](w, e)
	})
}

// InsertResourceDeferred defers installing or overwriting the singleton value of type T.
func InsertResourceDeferred[T any](c *CommandBuffer, value T) {
	c.ops = append(c.ops, func(w *World) {
		InsertResource(w.Resources, value, w.tick.current())
	})
}

// Defer queues an arbitrary function to run against the world at apply time,
// for operations this buffer has no dedicated method for (mirrors the
// teacher's Commands.Defer escape hatch).
func (c *CommandBuffer) Defer(fn func(*World)) {
	c.ops = append(c.ops, fn)
}

// Len reports how many operations are queued.
func (c *CommandBuffer) Len() int { return len(c.ops) }

// Apply runs every queued operation against w, in the order they were recorded,
// then clears the buffer so it can be reused next run.
func (c *CommandBuffer) Apply(w *World) {
	for _, op := range c.ops {
		op(w)
	}
	c.ops = c.ops[:0]
}
