package ecs_test

import (
	"testing"

	"github.com/forgelabs/ecsrt/ecs"
	"github.com/stretchr/testify/assert"
)

func TestCommandBufferSpawnIsDeferredUntilApply(t *testing.T) {
	world := newTestWorld()
	buf := ecs.NewCommandBuffer()

	buf.Spawn(Position{X: 1, Y: 2})
	assert.Equal(t, 1, buf.Len())

	buf.Apply(world)
	assert.Equal(t, 0, buf.Len())

	q := ecs.NewQueryState[struct{ Pos ecs.Ref[Position] }, struct{}](world)
	q.UpdateArchetypes()
	assert.Equal(t, 1, q.Count())
}

func TestCommandBufferSpawnReservedEntityIsStableBeforeApply(t *testing.T) {
	world := newTestWorld()
	buf := ecs.NewCommandBuffer()

	e := buf.SpawnReserved(world, Health{Current: 5, Max: 5})
	assert.False(t, ecs.Has[Health](world, e)) // reserved, not yet placed

	buf.Apply(world)

	hp, ok := ecs.Get[Health](world, e)
	assert.True(t, ok)
	assert.Equal(t, int32(5), hp.Current)
}

func TestCommandBufferDespawnIsIdempotent(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 1, Y: 1})

	buf := ecs.NewCommandBuffer()
	buf.Despawn(e)
	buf.Despawn(e)
	buf.Apply(world)

	assert.False(t, world.IsAlive(e))
}

func TestCommandBufferInsertAndRemove(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 1, Y: 1})

	buf := ecs.NewCommandBuffer()
	ecs.InsertDeferred(buf, e, Health{Current: 1, Max: 1})
	buf.Apply(world)
	assert.True(t, ecs.Has[Health](world, e))

	ecs.RemoveDeferred[Health](buf, e)
	buf.Apply(world)
	assert.False(t, ecs.Has[Health](world, e))
}
