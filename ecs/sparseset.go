package ecs

import (
	"reflect"

	"github.com/kamstrup/intmap"
)

// sparseStorage is the type-erased interface for a per-component sparse store
// (spec.md §3 "Sparse set", §4.2). Unlike a table column, a sparse set's key space
// is the full live Entity population rather than a dense row range, so insertion
// and removal cost is independent of how many archetypes reference the component.
type sparseStorage interface {
	Insert(e Entity, value any, tick Tick)
	Remove(e Entity)
	Get(e Entity) (any, bool)
	Ticks(e Entity) (added Tick, changed Tick, ok bool)
	Touch(e Entity, tick Tick)
	Len() int
	// CopyFrom carries e's slot over from src verbatim, preserving its added/changed
	// ticks, rather than re-stamping them as of now. Used when an archetype move
	// leaves a sparse component untouched (spec.md §4.9: an unrelated structural
	// change must not look like a fresh write to Added/Changed filters).
	CopyFrom(src sparseStorage, e Entity)
}

func entityKey(e Entity) uint64 {
	return uint64(e.Index)<<32 | uint64(e.Generation)
}

type sparseSlot[T any] struct {
	value   T
	added   Tick
	changed Tick
}

// genericSparse is the compile-time-typed sparse set used by components registered
// through RegisterComponent[T](registry, ecs.SparseSet).
type genericSparse[T any] struct {
	slots *intmap.Map[uint64, *sparseSlot[T]]
}

func newGenericSparse[T any]() *genericSparse[T] {
	return &genericSparse[T]{slots: intmap.New[uint64, *sparseSlot[T]](16)}
}

func (s *genericSparse[T]) Insert(e Entity, value any, tick Tick) {
	s.slots.Put(entityKey(e), &sparseSlot[T]{value: coerce[T](value), added: tick, changed: tick})
}

func (s *genericSparse[T]) Remove(e Entity) {
	s.slots.Del(entityKey(e))
}

func (s *genericSparse[T]) Get(e Entity) (any, bool) {
	slot, ok := s.slots.Get(entityKey(e))
	if !ok {
		return nil, false
	}
	return &slot.value, true
}

func (s *genericSparse[T]) Ticks(e Entity) (Tick, Tick, bool) {
	slot, ok := s.slots.Get(entityKey(e))
	if !ok {
		return 0, 0, false
	}
	return slot.added, slot.changed, true
}

func (s *genericSparse[T]) Touch(e Entity, tick Tick) {
	if slot, ok := s.slots.Get(entityKey(e)); ok {
		slot.changed = tick
	}
}

func (s *genericSparse[T]) Len() int { return s.slots.Len() }

func (s *genericSparse[T]) CopyFrom(src sparseStorage, e Entity) {
	srcSlot, ok := src.(*genericSparse[T]).slots.Get(entityKey(e))
	if !ok {
		return
	}
	s.slots.Put(entityKey(e), &sparseSlot[T]{value: srcSlot.value, added: srcSlot.added, changed: srcSlot.changed})
}

// reflectSparse backs sparse components auto-registered from a runtime
// reflect.Type, mirroring reflectColumn's role for table storage.
type reflectSparse struct {
	typ   reflect.Type
	slots *intmap.Map[uint64, *reflectSlot]
}

type reflectSlot struct {
	value   reflect.Value
	added   Tick
	changed Tick
}

func newReflectSparse(t reflect.Type) *reflectSparse {
	return &reflectSparse{typ: t, slots: intmap.New[uint64, *reflectSlot](16)}
}

func (s *reflectSparse) valueOf(value any) reflect.Value {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	boxed := reflect.New(s.typ).Elem()
	boxed.Set(v)
	return boxed
}

func (s *reflectSparse) Insert(e Entity, value any, tick Tick) {
	s.slots.Put(entityKey(e), &reflectSlot{value: s.valueOf(value), added: tick, changed: tick})
}

func (s *reflectSparse) Remove(e Entity) {
	s.slots.Del(entityKey(e))
}

func (s *reflectSparse) Get(e Entity) (any, bool) {
	slot, ok := s.slots.Get(entityKey(e))
	if !ok {
		return nil, false
	}
	return slot.value.Addr().Interface(), true
}

func (s *reflectSparse) Ticks(e Entity) (Tick, Tick, bool) {
	slot, ok := s.slots.Get(entityKey(e))
	if !ok {
		return 0, 0, false
	}
	return slot.added, slot.changed, true
}

func (s *reflectSparse) Touch(e Entity, tick Tick) {
	if slot, ok := s.slots.Get(entityKey(e)); ok {
		slot.changed = tick
	}
}

func (s *reflectSparse) Len() int { return s.slots.Len() }

func (s *reflectSparse) CopyFrom(src sparseStorage, e Entity) {
	srcSlot, ok := src.(*reflectSparse).slots.Get(entityKey(e))
	if !ok {
		return
	}
	s.slots.Put(entityKey(e), &reflectSlot{value: srcSlot.value, added: srcSlot.added, changed: srcSlot.changed})
}
