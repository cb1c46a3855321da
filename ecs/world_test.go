package ecs_test

import (
	"testing"

	"github.com/forgelabs/ecsrt/ecs"
	"github.com/stretchr/testify/assert"
)

func TestSpawnAndGet(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 1, Y: 2}, Velocity{X: 3, Y: 4})

	assert.True(t, world.IsAlive(e))
	pos, ok := ecs.Get[Position](world, e)
	assert.True(t, ok)
	assert.Equal(t, 1.0, pos.X)

	vel, ok := ecs.Get[Velocity](world, e)
	assert.True(t, ok)
	assert.Equal(t, 3.0, vel.X)
}

func TestDespawnIsIdempotentAndInvalidatesEntity(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 1, Y: 1})

	assert.True(t, world.Despawn(e))
	assert.False(t, world.IsAlive(e))
	assert.False(t, world.Despawn(e))

	_, ok := ecs.Get[Position](world, e)
	assert.False(t, ok)
}

func TestEntityGenerationIsBumpedOnReuse(t *testing.T) {
	world := newTestWorld()
	e1 := world.Spawn(Position{X: 1, Y: 1})
	world.Despawn(e1)
	e2 := world.Spawn(Position{X: 2, Y: 2})

	assert.Equal(t, e1.Index, e2.Index)
	assert.NotEqual(t, e1.Generation, e2.Generation)
	assert.False(t, world.IsAlive(e1))
	assert.True(t, world.IsAlive(e2))
}

func TestInsertMovesEntityToNewArchetype(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 0, Y: 0})

	assert.False(t, ecs.Has[Velocity](world, e))
	err := ecs.InsertT(world, e, Velocity{X: 5, Y: 5})
	assert.NoError(t, err)
	assert.True(t, ecs.Has[Velocity](world, e))

	pos, ok := ecs.Get[Position](world, e)
	assert.True(t, ok)
	assert.Equal(t, 0.0, pos.X)
}

func TestRemoveTMovesEntityBackAndIsLenientWhenAbsent(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 0, Y: 0}, Velocity{X: 1, Y: 1})

	assert.NoError(t, ecs.RemoveT[Velocity](world, e))
	assert.False(t, ecs.Has[Velocity](world, e))

	// Lenient remove of an already-absent component is a no-op, not an error.
	assert.NoError(t, ecs.RemoveT[Velocity](world, e))
}

func TestRemoveTStrictReturnsErrorWhenComponentAbsent(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 0, Y: 0})

	assert.Error(t, ecs.RemoveTStrict[Velocity](world, e))
}

func TestGetMutBumpsChangedTick(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Health{Current: 10, Max: 10})

	before := world.CurrentTick()
	world.AdvanceTick()
	hp, ok := ecs.GetMut[Health](world, e)
	assert.True(t, ok)
	hp.Current = 20

	got, _ := ecs.Get[Health](world, e)
	assert.Equal(t, int32(20), got.Current)
	assert.NotEqual(t, before, world.CurrentTick())

	// The row's changed tick is now newer than the tick before GetMut.
	q := ecs.NewQueryState[struct{ HP ecs.Ref[Health] }, changedHealthFilter](world)
	q.UpdateArchetypes()
	q.SetLastRunTick(before)
	changed := 0
	for range q.Iter() {
		changed++
	}
	assert.Equal(t, 1, changed)
}

func TestSparseComponentRoundTripsThroughInsertAndRemove(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Health{Current: 10, Max: 10})

	assert.NoError(t, ecs.InsertT(world, e, Stunned{Ticks: 3}))
	assert.True(t, ecs.Has[Stunned](world, e))

	stun, ok := ecs.Get[Stunned](world, e)
	assert.True(t, ok)
	assert.Equal(t, int32(3), stun.Ticks)

	assert.NoError(t, ecs.RemoveT[Stunned](world, e))
	assert.False(t, ecs.Has[Stunned](world, e))
	// The entity keeps its other (table-stored) components after a sparse
	// component is removed.
	assert.True(t, ecs.Has[Health](world, e))
}

func TestGenericSpawnFromBundleStruct(t *testing.T) {
	type Kinematics struct {
		Pos Position
		Vel Velocity
	}
	world := newTestWorld()
	e := ecs.Spawn(world, Kinematics{Pos: Position{X: 9, Y: 9}, Vel: Velocity{X: 1, Y: 1}})

	pos, ok := ecs.Get[Position](world, e)
	assert.True(t, ok)
	assert.Equal(t, 9.0, pos.X)
	assert.True(t, ecs.Has[Velocity](world, e))
}

func TestReserveEntityThenFlushReservationsPlacesItInEmptyArchetype(t *testing.T) {
	world := newTestWorld()
	e := world.ReserveEntity()

	assert.True(t, world.IsAlive(e))
	assert.False(t, ecs.Has[Position](world, e))

	world.FlushReservations()
	assert.True(t, world.IsAlive(e))
	assert.False(t, ecs.Has[Position](world, e))
}
