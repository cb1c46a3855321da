package ecs_test

import (
	"testing"

	"github.com/forgelabs/ecsrt/ecs"
	"github.com/stretchr/testify/assert"
)

func TestObserveOnInsertFiresInRegistrationOrder(t *testing.T) {
	world := newTestWorld()

	var order []string
	ecs.Observe[Health](world, ecs.OnInsert, func(dw *ecs.DeferredWorld, e ecs.Entity) {
		order = append(order, "first")
	})
	ecs.Observe[Health](world, ecs.OnInsert, func(dw *ecs.DeferredWorld, e ecs.Entity) {
		order = append(order, "second")
	})

	world.Spawn(Health{Current: 10, Max: 10})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestObserveOnAddFiresOnceEvenWithMultipleComponents(t *testing.T) {
	world := newTestWorld()

	var fired int
	ecs.Observe[Health](world, ecs.OnAdd, func(dw *ecs.DeferredWorld, e ecs.Entity) {
		fired++
	})

	world.Spawn(Position{X: 1, Y: 2}, Health{Current: 10, Max: 10})
	assert.Equal(t, 1, fired)
}

func TestObserveOnRemoveFiresBeforeRemoval(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Health{Current: 10, Max: 10})

	var sawHealthBeforeRemoval bool
	ecs.Observe[Health](world, ecs.OnRemove, func(dw *ecs.DeferredWorld, ev ecs.Entity) {
		sawHealthBeforeRemoval = ecs.Has[Health](world, ev)
	})

	assert.True(t, world.Despawn(e))
	assert.True(t, sawHealthBeforeRemoval)
	// Despawning is idempotent and must not panic on a second call.
	assert.False(t, world.Despawn(e))
}

func TestObserverRegisteredAfterArchetypeExistsStillFires(t *testing.T) {
	world := newTestWorld()
	// The Health archetype is created (and its observer-flags cache primed
	// as "no observers") before any observer is registered.
	e := world.Spawn(Health{Current: 10, Max: 10})

	var fired bool
	ecs.Observe[Health](world, ecs.OnRemove, func(dw *ecs.DeferredWorld, ev ecs.Entity) {
		fired = true
	})

	assert.True(t, world.Despawn(e))
	assert.True(t, fired)
}

func TestObserverDeferredWriteIsVisibleAfterTriggeringOpReturns(t *testing.T) {
	world := newTestWorld()

	ecs.Observe[Health](world, ecs.OnAdd, func(dw *ecs.DeferredWorld, e ecs.Entity) {
		dw.Commands().Insert(e, Name{Value: "spawned"})
	})

	e := world.Spawn(Health{Current: 10, Max: 10})

	name, ok := ecs.Get[Name](world, e)
	assert.True(t, ok)
	assert.Equal(t, "spawned", name.Value)
}
